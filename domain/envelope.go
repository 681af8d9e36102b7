package domain

import (
	"fmt"

	"github.com/ljpprojects/kolloquy/errors"
)

// ActionPut is the only meaningful envelope action. Anything else is
// rejected rather than silently mis-dispatched.
const ActionPut = "PUT"

// Author describes the sender of an envelope. Avatar and IsSelf are
// always re-derived server-side before re-broadcast; client-supplied
// values are never trusted or forwarded.
type Author struct {
	Avatar string `json:"avatar"`
	ID     string `json:"id"`
	IsSelf bool   `json:"is_self"`
	Handle string `json:"handle"`
}

// Envelope is the wire-level unit exchanged over the live channel.
// Content is absent for non-content control actions.
type Envelope struct {
	Content *string `json:"content"`
	Action  string  `json:"action"`
	Author  Author  `json:"author"`
	Chat    *string `json:"chat"`
}

// Validate checks the parts of an inbound envelope the server relies on.
func (e Envelope) Validate() error {
	if e.Action != ActionPut {
		return fmt.Errorf("%w: %q", errors.ErrUnknownAction, e.Action)
	}
	if e.Chat == nil || *e.Chat == "" {
		return fmt.Errorf("%w: missing chat id", errors.ErrInvalidEnvelope)
	}
	if e.Content == nil {
		return fmt.Errorf("%w: missing content", errors.ErrInvalidEnvelope)
	}
	return nil
}
