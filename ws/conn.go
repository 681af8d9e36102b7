package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ljpprojects/kolloquy/contract"
	"github.com/ljpprojects/kolloquy/domain"
	"github.com/ljpprojects/kolloquy/errors"
	"github.com/ljpprojects/kolloquy/runtime"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 8192
)

// connection owns one upgraded socket. The read pump validates and
// enriches inbound envelopes before publishing them to the hub; the
// write pump drains the room subscription back out. A single context
// cancels both pumps as soon as either one exits.
type connection struct {
	socket *websocket.Conn
	hub    *runtime.Hub
	sub    *runtime.Subscription
	roomID string
	user   domain.User
	avatar string
	frames chan []byte
	log    *slog.Logger
}

func newConnection(socket *websocket.Conn, hub *runtime.Hub,
	roomID string, user domain.User, avatar string, log *slog.Logger) *connection {
	return &connection{
		socket: socket,
		hub:    hub,
		sub:    hub.Subscribe(roomID),
		roomID: roomID,
		user:   user,
		avatar: avatar,
		frames: make(chan []byte, 8),
		log:    log.With("room", roomID, "user", user.UserID),
	}
}

func (c *connection) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer c.sub.Close()
	defer c.socket.Close()

	go func() {
		defer cancel()
		// Closing the socket is the only thing that unblocks a read
		// pump parked in ReadMessage.
		defer c.socket.Close()
		c.writePump(ctx)
	}()

	c.readPump()
}

func (c *connection) readPump() {
	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("Read pump stopping", "error", err)
			}
			return
		}

		var env domain.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			// Malformed frames are dropped, the connection survives.
			c.log.Debug("Malformed frame dropped", "error", err)
			continue
		}

		if err := env.Validate(); err != nil {
			if stderrors.Is(err, errors.ErrUnknownAction) {
				c.reject(contract.CodeUnknownAction, "Unsupported action.",
					fmt.Sprintf("action %q is not supported", env.Action))
			} else {
				c.log.Debug("Malformed frame dropped", "error", err)
			}
			continue
		}

		if env.Chat == nil || *env.Chat != c.roomID {
			c.reject(contract.CodeRoomMismatch, "Envelope addressed to another chat.", "")
			continue
		}

		// The author block is server-populated; whatever the client
		// claimed is discarded.
		env.Author = domain.Author{
			Avatar: c.avatar,
			ID:     c.user.UserID,
			IsSelf: false,
			Handle: c.user.Handle,
		}

		c.hubPublish(env)
	}
}

func (c *connection) hubPublish(env domain.Envelope) {
	delivered := c.hub.Publish(c.roomID, env)
	c.log.Debug("Envelope published", "delivered", delivered)
}

// reject queues a structured error frame without blocking the read pump.
func (c *connection) reject(code int, message, details string) {
	select {
	case c.frames <- contract.Frame(code, message, details):
	default:
		c.log.Warn("Error frame dropped, outbound queue full", "code", code)
	}
}

func (c *connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case frame := <-c.frames:
			if !c.write(frame) {
				return
			}

		case env := <-c.sub.C():
			if missed := c.sub.Lagged(); missed > 0 {
				if !c.write(contract.Frame(contract.CodeLagged,
					"Messages dropped, connection too slow.",
					fmt.Sprintf("%d envelopes missed", missed))) {
					return
				}
			}
			data, err := json.Marshal(env)
			if err != nil {
				c.log.Error("Envelope marshal failed", "error", err)
				continue
			}
			if !c.write(data) {
				return
			}

		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) write(data []byte) bool {
	_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.socket.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Debug("Write pump stopping", "error", err)
		return false
	}
	return true
}
