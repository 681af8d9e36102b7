// Package ws serves the live chat socket: one upgraded connection per
// client, subscribed to exactly one room for its whole lifetime.
package ws

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ljpprojects/kolloquy/auth"
	"github.com/ljpprojects/kolloquy/errors"
	"github.com/ljpprojects/kolloquy/observability"
	"github.com/ljpprojects/kolloquy/runtime"
	"github.com/ljpprojects/kolloquy/services"
	"github.com/ljpprojects/kolloquy/storage"
)

// Handler upgrades authenticated requests and wires the resulting
// connection into the room hub.
type Handler struct {
	sessions *auth.SessionStore
	chats    services.IChatService
	avatars  storage.ObjectStore
	hub      *runtime.Hub
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(sessions *auth.SessionStore, chats services.IChatService,
	avatars storage.ObjectStore, hub *runtime.Hub, log *slog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		chats:    chats,
		avatars:  avatars,
		hub:      hub,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP authenticates the request, checks that the requested room
// exists, then upgrades. Both checks happen before the upgrade so that
// failures stay ordinary HTTP responses.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.SessionCookieName)
	if err != nil {
		http.Error(w, "missing session", http.StatusUnauthorized)
		return
	}

	user, _, err := h.sessions.Get(cookie.Value)
	if err != nil {
		http.Error(w, "invalid session", http.StatusUnauthorized)
		return
	}

	roomID := r.URL.Query().Get("chat")
	if roomID == "" {
		http.Error(w, "missing chat parameter", http.StatusBadRequest)
		return
	}

	if _, err := h.chats.Load(r.Context(), roomID); err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			http.Error(w, "unknown chat", http.StatusNotFound)
			return
		}
		h.log.Error("Room lookup failed", "room", roomID, "error", err)
		http.Error(w, "chat unavailable", http.StatusInternalServerError)
		return
	}

	avatar, err := h.loadAvatar(r, user.AvatarKey())
	if err != nil {
		h.log.Warn("Avatar unavailable, sending frames without one",
			"user", user.UserID, "error", err)
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Upgrade failed", "error", err)
		return
	}

	observability.ActiveConnections.Inc()
	defer observability.ActiveConnections.Dec()

	conn := newConnection(socket, h.hub, roomID, user, avatar, h.log)
	conn.run(r.Context())
}

func (h *Handler) loadAvatar(r *http.Request, key string) (string, error) {
	compressed, err := h.avatars.Get(r.Context(), key)
	if err != nil {
		return "", err
	}
	svg, err := storage.Decompress(compressed)
	if err != nil {
		return "", fmt.Errorf("avatar %s: %w", key, err)
	}
	return string(svg), nil
}
