package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mgrant26/clubcthulu/internal/core"
	"github.com/mgrant26/clubcthulu/internal/metrics"
	"github.com/mgrant26/clubcthulu/internal/protocol"
	"github.com/mgrant26/clubcthulu/internal/relay"
	"github.com/mgrant26/clubcthulu/internal/store"
	"github.com/mgrant26/clubcthulu/internal/vec"
)

const bcryptCost = 10

func (s *Server) handleObtainPublic(req *protocol.Request, addr *net.UDPAddr) bool {
	s.relay.Send(addr, protocol.PublicKeyResponse(s.keys.pubPEM), relay.DefaultRetries)
	return true
}

func (s *Server) handleRegister(ctx context.Context, req *protocol.Request, addr *net.UDPAddr) bool {
	if req.Username == nil || req.Password == nil {
		s.sendError(addr, protocol.ErrMissingData, "Required data is missing.")
		return false
	}
	username := *req.Username
	if strings.TrimSpace(username) == "" {
		s.sendError(addr, protocol.ErrUsernameIsEmpty, "Username cannot be blank.")
		return false
	}
	exists, err := s.store.UserExists(ctx, username)
	if err != nil {
		slog.Error("register lookup failed", "name", username, "error", err)
		s.sendError(addr, protocol.ErrInternalError, "An internal server error has occurred")
		return false
	}
	if exists {
		s.sendError(addr, protocol.ErrUsernameInUse, username+" is already in use.")
		return false
	}
	password, ok := s.keys.decrypt(*req.Password)
	if !ok {
		s.sendError(addr, protocol.ErrFailedDecrypt, "Failed to decrypt password: Try reconnecting.")
		return false
	}
	if strings.TrimSpace(string(password)) == "" {
		s.sendError(addr, protocol.ErrPasswordIsEmpty, "Password cannot be blank.")
		return false
	}
	hash, err := bcrypt.GenerateFromPassword(password, bcryptCost)
	if err != nil {
		s.sendError(addr, protocol.ErrDataError, "An error occurred")
		return false
	}
	if err := s.store.CreateUser(ctx, uuid.New(), username, hash); err != nil {
		slog.Error("register insert failed", "name", username, "error", err)
		s.sendError(addr, protocol.ErrDataError, "An error occurred")
		return false
	}
	s.relay.Send(addr, protocol.Success(protocol.TypeRegisterSuccess,
		fmt.Sprintf("User %s was created successfully!", username)), relay.DefaultRetries)
	slog.Info("user registered", "name", username)
	return true
}

func (s *Server) handleInitSession(ctx context.Context, req *protocol.Request, addr *net.UDPAddr) bool {
	if req.Username == nil || req.Password == nil {
		s.sendError(addr, protocol.ErrMissingData, "Required data is missing.")
		return false
	}
	user, err := s.store.UserByName(ctx, *req.Username)
	if errors.Is(err, store.ErrUserNotFound) {
		s.sendError(addr, protocol.ErrInvalidInfo, "Username was invalid.")
		return false
	}
	if err != nil {
		slog.Error("login lookup failed", "name", *req.Username, "error", err)
		s.sendError(addr, protocol.ErrInternalError, "An internal server error has occurred")
		return false
	}
	password, ok := s.keys.decrypt(*req.Password)
	if !ok {
		s.sendError(addr, protocol.ErrFailedDecrypt, "Failed to decrypt password: Try reconnecting.")
		return false
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, password) != nil {
		s.sendError(addr, protocol.ErrInvalidInfo, "Password was invalid.")
		return false
	}
	privilege, err := s.store.EnsurePrivilege(ctx, user.ID)
	if err != nil {
		slog.Error("privilege lookup failed", "name", user.Name, "error", err)
		s.sendError(addr, protocol.ErrDataError, "An error occurred")
		return false
	}
	client := core.NewClient(user.ID, user.Name, privilege)
	client.SetAddr(addr)
	if !s.registry.Add(client) {
		existing := s.registry.GetByName(user.Name)
		if existing == nil || existing.Addr() == nil || !existing.Addr().IP.Equal(addr.IP) {
			s.sendError(addr, protocol.ErrAlreadyConn, "User is already logged in.")
			return false
		}
		// Same host logging in again: refresh the address and hand back
		// the live session instead of minting a second one.
		client = existing
		client.SetAddr(addr)
	}
	client.Touch()
	s.relay.Send(addr, protocol.LoginSuccess(
		client.Session(), client.Name(), client.ID().String(),
		s.world.ChunkWidth(), s.world.ChunkHeight(), s.world.Width(), s.world.Height(),
	), relay.DefaultRetries)
	return true
}

func (s *Server) handleEndSession(req *protocol.Request, addr *net.UDPAddr) bool {
	if req.SessionID == nil {
		s.sendError(addr, protocol.ErrMissingData, "Required data is missing")
		return false
	}
	if s.registry.RemoveBySession(*req.SessionID) {
		s.relay.Send(addr, protocol.Success(protocol.TypeLogoutSuccess, "Successfully ended session"),
			relay.DefaultRetries)
		return true
	}
	s.sendError(addr, protocol.ErrUserNotConn, "Could not log out: User isn't connected.")
	return false
}

func (s *Server) handleConfirm(req *protocol.Request, addr *net.UDPAddr) bool {
	id, err := uuid.Parse(req.PacketID)
	if err != nil {
		s.sendError(addr, protocol.ErrInvalidPacketID, "Supplied packet id was invalid or missing.")
		return false
	}
	s.relay.Confirm(id)
	return true
}

// handlePing sends nothing back; the liveness piggyback already touched
// the session before dispatch.
func (s *Server) handlePing(req *protocol.Request, addr *net.UDPAddr) bool {
	return false
}

func (s *Server) handleMessage(ctx context.Context, req *protocol.Request, addr *net.UDPAddr) bool {
	if req.SessionID == nil || req.Message == nil {
		s.sendError(addr, protocol.ErrMissingData, "Required data is missing")
		return false
	}
	text := *req.Message
	if strings.TrimSpace(text) == "" {
		return false
	}
	client := s.registry.GetBySession(*req.SessionID)
	if client == nil {
		s.sendError(addr, protocol.ErrIncorrectData, "Important data is incorrect")
		return false
	}
	if err := s.store.InsertChatMessage(ctx, uuid.New(), time.Now(), text, client.ID()); err != nil {
		slog.Error("chat insert failed", "origin", client.Name(), "error", err)
		s.sendError(addr, protocol.ErrDataError, "An error occurred")
		return false
	}
	s.registry.Broadcast(protocol.ChatMessage(client.ID().String(), text))
	metrics.ChatMessages.Inc()
	return true
}

func (s *Server) handleMove(req *protocol.Request, addr *net.UDPAddr) bool {
	if req.SessionID == nil || req.X == nil || req.Y == nil {
		s.sendError(addr, protocol.ErrMissingData, "Required data is missing")
		return false
	}
	client := s.registry.GetBySession(*req.SessionID)
	if client == nil {
		return false
	}
	client.SetVelocity(vec.V2F{X: *req.X, Y: *req.Y})
	return true
}

func (s *Server) handleEndMove(req *protocol.Request, addr *net.UDPAddr) bool {
	if req.SessionID == nil {
		s.sendError(addr, protocol.ErrMissingData, "Required data is missing")
		return false
	}
	client := s.registry.GetBySession(*req.SessionID)
	if client == nil {
		return false
	}
	client.SetVelocity(vec.V2F{})
	return true
}

func (s *Server) handleUpdate(req *protocol.Request, addr *net.UDPAddr) bool {
	if req.SessionID == nil {
		s.sendError(addr, protocol.ErrMissingData, "Required data is missing")
		return false
	}
	client := s.registry.GetBySession(*req.SessionID)
	if client == nil {
		return false
	}
	s.world.FullUpdate(client)
	return true
}
