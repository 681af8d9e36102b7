// Package domain contains core concepts of the chat system.
// This file defines chats and their message log. No runtime, network,
// or storage logic should be added here.
package domain

import (
	"fmt"
	"time"
)

// Message is one entry of a chat's log. Content holds the revision
// history in most-recent-first order: Content[0] is the displayed text,
// older entries are an audit trail and are never removed or sent to
// clients.
type Message struct {
	Content []string  `json:"content"`
	Author  string    `json:"author"`
	Sent    time.Time `json:"sent"`
	ID      uint64    `json:"id"`
}

// NewMessage builds a single-revision message.
func NewMessage(id uint64, author, text string, sent time.Time) Message {
	return Message{
		Content: []string{text},
		Author:  author,
		Sent:    sent,
		ID:      id,
	}
}

// Current returns the displayed revision.
func (m Message) Current() string {
	if len(m.Content) == 0 {
		return ""
	}
	return m.Content[0]
}

// Edit prepends a new revision. Older revisions stay in place.
func (m *Message) Edit(text string) {
	m.Content = append([]string{text}, m.Content...)
}

// Chat is the authoritative in-memory representation of a room.
// ID is immutable after creation and determines both the icon key and
// the durable storage key. Messages are ordered most-recent-first.
//
// A chat carries no participant list of its own: membership lives on
// the user records (User.EnrolledChats), which are the single source
// of truth.
type Chat struct {
	Name      string    `json:"name"`
	ID        string    `json:"id"`
	IconURL   string    `json:"icon_url"`
	Messages  []Message `json:"messages"`
	RemoteURL string    `json:"remote_url"`
}

// NewChat builds an empty chat with keys derived from id.
func NewChat(name, id string) *Chat {
	return &Chat{
		Name:      name,
		ID:        id,
		IconURL:   IconKey(id),
		RemoteURL: RemoteKey(id),
	}
}

// RemoteKey derives the object-store key of a chat snapshot.
func RemoteKey(id string) string {
	return fmt.Sprintf("/%s.json.br", id)
}

// IconKey derives the object-store key of a chat icon.
func IconKey(id string) string {
	return fmt.Sprintf("/chats/%s.svg.br", id)
}

// AppendMessage prepends m so that Messages[0] is always the latest.
// The chat is mutated in memory only; persisting is a separate,
// caller-controlled step.
func (c *Chat) AppendMessage(m Message) {
	c.Messages = append([]Message{m}, c.Messages...)
}

// NextMessageID returns an identifier one past the highest in the log.
func (c *Chat) NextMessageID() uint64 {
	var max uint64
	for _, m := range c.Messages {
		if m.ID >= max {
			max = m.ID + 1
		}
	}
	return max
}
