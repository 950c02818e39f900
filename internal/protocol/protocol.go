package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MaxPayload is the largest datagram either side will read. Anything the
// server emits must fit or the client's recv buffer truncates it.
const MaxPayload = 1024

// Request kinds accepted by the dispatcher.
const (
	KindObtainPublic = "obtain-public"
	KindRegister     = "register"
	KindInitSession  = "init-session"
	KindEndSession   = "end-session"
	KindConfirm      = "confirm"
	KindPing         = "ping"
	KindMessage      = "message"
	KindMove         = "move"
	KindEndMove      = "end-move"
	KindUpdate       = "update"
)

// Top-level response names.
const (
	ResponseSuccess        = "success"
	ResponseError          = "error"
	ResponseInfo           = "info"
	ResponseConfirmPublic  = "confirm-public"
	ResponseClientJoined   = "client-joined"
	ResponseClientLeft     = "client-left"
	ResponseClientUpdate   = "client-update"
	ResponsePositionUpdate = "position-update"
	ResponseMessage        = "message"
)

// Error codes carried in the type field of error responses.
const (
	ErrMalformedData   = "malformed-data"
	ErrInvalidRequest  = "invalid-request"
	ErrMissingData     = "missing-data"
	ErrIncorrectData   = "incorrect-data"
	ErrInvalidInfo     = "invalid-info"
	ErrFailedDecrypt   = "failed-decrypt"
	ErrUsernameInUse   = "username-in-use"
	ErrUsernameIsEmpty = "username-is-empty"
	ErrPasswordIsEmpty = "password-is-empty"
	ErrAlreadyConn     = "already-connected"
	ErrUserNotConn     = "user-not-connected"
	ErrDataError       = "data-error"
	ErrInternalError   = "internal-error"
	ErrInvalidPacketID = "invalid-packet-id"
)

// Subtypes of success and info responses.
const (
	TypeLoginSuccess    = "login-success"
	TypeLogoutSuccess   = "logout-success"
	TypeRegisterSuccess = "register-success"
	TypeKicked          = "kicked"
)

// ErrNoRequest is returned by ParseRequest when the envelope carries no
// request kind.
var ErrNoRequest = errors.New("protocol: missing request kind")

// Request is the JSON envelope clients send over UDP or a bridge socket.
// Optional fields are pointers so handlers can tell absent from zero.
type Request struct {
	Request   string   `json:"request"`
	PacketID  string   `json:"packet-id,omitempty"`
	Timestamp float64  `json:"timestamp,omitempty"`
	SessionID *string  `json:"session-id,omitempty"`
	Username  *string  `json:"username,omitempty"`
	Password  *string  `json:"password,omitempty"` // base64 RSA ciphertext
	Message   *string  `json:"message,omitempty"`
	X         *float64 `json:"x,omitempty"` // velocity for move
	Y         *float64 `json:"y,omitempty"`
}

// ParseRequest decodes one datagram into a Request.
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if req.Request == "" {
		return nil, ErrNoRequest
	}
	return &req, nil
}

// Response is the JSON envelope the server sends back. One flat struct
// covers every response kind; the relay stamps PacketID and Timestamp on
// the way out. Intra-chunk and chunk coordinates are pointers because
// zero is a valid coordinate.
type Response struct {
	Response  string  `json:"response"`
	Type      string  `json:"type,omitempty"`
	Message   string  `json:"message,omitempty"`
	PacketID  string  `json:"packet-id,omitempty"`
	Timestamp float64 `json:"timestamp,omitempty"` // unix seconds

	Session     string `json:"session,omitempty"`
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
	ChunkWidth  int    `json:"chunk-width,omitempty"`
	ChunkHeight int    `json:"chunk-height,omitempty"`
	WorldWidth  int    `json:"world-width,omitempty"`
	WorldHeight int    `json:"world-height,omitempty"`

	PublicKey string `json:"public-key,omitempty"` // PKCS#1 PEM

	Origin string `json:"origin,omitempty"` // chat sender id

	Target    string `json:"target,omitempty"` // moved client id
	NewChunkX *int   `json:"new-chunk-x,omitempty"`
	NewChunkY *int   `json:"new-chunk-y,omitempty"`
	NewX      *int   `json:"new-x,omitempty"`
	NewY      *int   `json:"new-y,omitempty"`

	ClientID   string `json:"client-id,omitempty"`
	ClientName string `json:"client-name,omitempty"`
	ChunkX     *int   `json:"chunk-x,omitempty"`
	ChunkY     *int   `json:"chunk-y,omitempty"`
	X          *int   `json:"x,omitempty"`
	Y          *int   `json:"y,omitempty"`
}

// Generic builds the {response, type, message} triple used by error, info
// and success replies.
func Generic(name, typ, message string) *Response {
	return &Response{Response: name, Type: typ, Message: message}
}

// Error builds an error response with the given code.
func Error(code, message string) *Response {
	return Generic(ResponseError, code, message)
}

// Info builds an info response.
func Info(typ, message string) *Response {
	return Generic(ResponseInfo, typ, message)
}

// Success builds a success response.
func Success(typ, message string) *Response {
	return Generic(ResponseSuccess, typ, message)
}

// Kicked builds the info/kicked payload sent before a client is dropped.
func Kicked(message string) *Response {
	return Info(TypeKicked, message)
}

// PublicKeyResponse answers an obtain-public request.
func PublicKeyResponse(pemKey string) *Response {
	return &Response{Response: ResponseConfirmPublic, PublicKey: pemKey}
}

// LoginSuccess carries the session token plus the world dimensions the
// client needs to interpret coordinates.
func LoginSuccess(session, name, id string, chunkW, chunkH, worldW, worldH int) *Response {
	return &Response{
		Response:    ResponseSuccess,
		Type:        TypeLoginSuccess,
		Session:     session,
		Name:        name,
		ID:          id,
		ChunkWidth:  chunkW,
		ChunkHeight: chunkH,
		WorldWidth:  worldW,
		WorldHeight: worldH,
	}
}

// ClientJoined announces a new session to everyone already connected.
func ClientJoined(name, id string, x, y, chunkX, chunkY int) *Response {
	return &Response{
		Response:   ResponseClientJoined,
		ClientName: name,
		ClientID:   id,
		X:          intp(x),
		Y:          intp(y),
		ChunkX:     intp(chunkX),
		ChunkY:     intp(chunkY),
	}
}

// ClientLeft announces a departed session.
func ClientLeft(id string) *Response {
	return &Response{Response: ResponseClientLeft, ID: id}
}

// ClientUpdate is one row of a full world snapshot.
func ClientUpdate(id, name string, chunkX, chunkY, x, y int) *Response {
	return &Response{
		Response:   ResponseClientUpdate,
		ClientID:   id,
		ClientName: name,
		ChunkX:     intp(chunkX),
		ChunkY:     intp(chunkY),
		X:          intp(x),
		Y:          intp(y),
	}
}

// PositionUpdate carries one moved client's new position.
func PositionUpdate(target string, chunkX, chunkY, x, y int) *Response {
	return &Response{
		Response:  ResponsePositionUpdate,
		Target:    target,
		NewChunkX: intp(chunkX),
		NewChunkY: intp(chunkY),
		NewX:      intp(x),
		NewY:      intp(y),
	}
}

// ChatMessage is a chat line relayed to every connected client.
func ChatMessage(origin, message string) *Response {
	return &Response{Response: ResponseMessage, Origin: origin, Message: message}
}

func intp(v int) *int { return &v }
