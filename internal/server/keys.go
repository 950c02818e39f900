package server

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
)

const keyBits = 1024

// sessionKeys is the per-run RSA keypair. Clients fetch the public half
// with obtain-public and send passwords as base64 PKCS#1 v1.5 ciphertext;
// nothing is persisted, so every restart forces a fresh key exchange.
type sessionKeys struct {
	priv   *rsa.PrivateKey
	pubPEM string
}

func newSessionKeys() (*sessionKeys, error) {
	priv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa keypair: %w", err)
	}
	block := &pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: x509.MarshalPKCS1PublicKey(&priv.PublicKey),
	}
	return &sessionKeys{priv: priv, pubPEM: string(pem.EncodeToMemory(block))}, nil
}

// decrypt unwraps one password field. A false return covers both bad
// base64 and bad ciphertext; callers answer with failed-decrypt either
// way.
func (k *sessionKeys) decrypt(encoded string) ([]byte, bool) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	plain, err := rsa.DecryptPKCS1v15(rand.Reader, k.priv, ciphertext)
	if err != nil {
		return nil, false
	}
	return plain, true
}
