package websocket

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin allows connections from any origin.
	// In production, configure this based on your CORS policy.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ErrMissingUser is returned when the identity header is absent.
var ErrMissingUser = errors.New("missing X-User-ID header")

// Authenticator resolves the user identity for an upgrade request.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// HeaderAuthenticator reads the opaque user id from the X-User-ID header,
// the same identity contract the REST API uses.
type HeaderAuthenticator struct{}

// Authenticate extracts the user id or fails with ErrMissingUser.
func (HeaderAuthenticator) Authenticate(r *http.Request) (string, error) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		return "", ErrMissingUser
	}
	return userID, nil
}

// Handler handles WebSocket upgrade requests and manages connections
type Handler struct {
	hub    *Hub
	auth   Authenticator
	logger zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, auth Authenticator, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		auth:   auth,
		logger: logger,
	}
}

// ServeHTTP handles the WebSocket upgrade request
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Authenticate the user
	userID, err := h.auth.Authenticate(r)
	if err != nil {
		h.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket authentication failed")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	// Create a new client
	clientID := uuid.New().String()
	client := NewClient(clientID, userID, h.hub, conn)

	h.logger.Info().Str("client_id", clientID).Str("user_id", userID).
		Str("remote_addr", r.RemoteAddr).Msg("websocket client connected")

	// Register client with hub
	h.hub.register <- client

	// Start client pumps in separate goroutines
	go client.writePump()
	go client.readPump()
}
