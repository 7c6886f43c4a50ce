package websocket

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/dennisdiepolder/monti/wfm/internal/auth"
	"github.com/dennisdiepolder/monti/wfm/internal/config"
	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// BoardSource provides the latest presence board for newly connected clients
type BoardSource interface {
	Board() *types.Board
}

// Handler handles WebSocket upgrade requests
type Handler struct {
	hub      *Hub
	boards   BoardSource
	config   *config.Config
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. boards may be nil.
func NewHandler(hub *Hub, boards BoardSource, cfg *config.Config, logger zerolog.Logger) *Handler {
	h := &Handler{
		hub:    hub,
		boards: boards,
		config: cfg,
		logger: logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts requests without an Origin header and origins from ALLOWED_ORIGINS
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.config.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(h.config.AllowedOrigins, origin)
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	claims, _ := auth.GetUserFromContext(r.Context())
	client := NewClient(h.hub, conn, h.config, h.logger, claims)

	// Queue the current board before registering so the client does not wait
	// for the next broadcast
	if h.boards != nil {
		if board := h.boards.Board(); board != nil {
			if filtered := client.FilterBoard(board); filtered != nil {
				if data, err := json.Marshal(filtered); err == nil {
					client.send <- data
				}
			}
		}
	}

	h.hub.register <- client
	client.Start()
}
