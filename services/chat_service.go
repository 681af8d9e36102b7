// Package services holds the chat state manager: the component that
// owns the lifecycle of a chat and keeps it synchronized with the
// object store.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ljpprojects/kolloquy/domain"
	"github.com/ljpprojects/kolloquy/errors"
	"github.com/ljpprojects/kolloquy/icon"
	"github.com/ljpprojects/kolloquy/repositories"
	"github.com/ljpprojects/kolloquy/storage"
)

type IChatService interface {
	Create(name string) (*domain.Chat, string)
	Persist(ctx context.Context, chat *domain.Chat) error
	Load(ctx context.Context, id string) (*domain.Chat, error)
	AppendMessage(chat *domain.Chat, msg domain.Message)
	AddParticipant(ctx context.Context, chat *domain.Chat, user *domain.User) error
	RemoveParticipant(ctx context.Context, chat *domain.Chat, user *domain.User) error
	PutIcon(ctx context.Context, chat *domain.Chat, svg string) error
	Delete(ctx context.Context, chat *domain.Chat) error
}

// ChatService synchronizes in-memory chats with the chats bucket and
// chat icons with the avatar bucket. It never retries and never caches:
// persistence is explicit and every load re-fetches.
type ChatService struct {
	chats   storage.ObjectStore
	avatars storage.ObjectStore
	users   repositories.IUserRepository
	log     *slog.Logger
}

func NewChatService(chats, avatars storage.ObjectStore,
	users repositories.IUserRepository, log *slog.Logger) *ChatService {
	return &ChatService{chats: chats, avatars: avatars, users: users, log: log}
}

// Create builds an empty chat with a fresh id and its generated icon.
// Nothing is persisted; the caller decides when to call Persist and
// PutIcon.
func (s *ChatService) Create(name string) (*domain.Chat, string) {
	return domain.NewChat(name, domain.NewID()), icon.NewChatIcon()
}

// Persist serializes, compresses and uploads a full chat snapshot.
// Last write wins; there is no merge with the stored version.
func (s *ChatService) Persist(ctx context.Context, chat *domain.Chat) error {
	serialized, err := json.Marshal(chat)
	if err != nil {
		return fmt.Errorf("%w: encode chat %s: %v", errors.ErrStorageWrite, chat.ID, err)
	}

	compressed, err := storage.Compress(serialized)
	if err != nil {
		return fmt.Errorf("%w: compress chat %s: %v", errors.ErrStorageWrite, chat.ID, err)
	}

	return s.chats.Put(ctx, chat.RemoteURL, compressed)
}

// Load fetches and decodes the snapshot stored for id.
func (s *ChatService) Load(ctx context.Context, id string) (*domain.Chat, error) {
	compressed, err := s.chats.Get(ctx, domain.RemoteKey(id))
	if err != nil {
		return nil, err
	}

	serialized, err := storage.Decompress(compressed)
	if err != nil {
		return nil, err
	}

	var chat domain.Chat
	if err := json.Unmarshal(serialized, &chat); err != nil {
		return nil, fmt.Errorf("%w: decode chat %s: %v", errors.ErrDeserialization, id, err)
	}
	return &chat, nil
}

// AppendMessage mutates the in-memory chat only. Batching several
// mutations before one Persist call is the intended usage.
func (s *ChatService) AppendMessage(chat *domain.Chat, msg domain.Message) {
	chat.AppendMessage(msg)
}

// AddParticipant enrolls user into chat and pushes the user record to
// the relational store. The two writes are not atomic: when the remote
// update fails the in-memory half has already been applied, which is
// reported as a consistency gap and logged here.
func (s *ChatService) AddParticipant(ctx context.Context, chat *domain.Chat, user *domain.User) error {
	user.Enroll(chat.ID)

	if err := s.users.Update(ctx, *user); err != nil {
		s.log.Error("membership diverged from user record",
			"chat", chat.ID, "user", user.UserID, "op", "add", "error", err)
		return fmt.Errorf("%w: add %s to %s: %v", errors.ErrConsistencyGap, user.UserID, chat.ID, err)
	}
	return nil
}

// RemoveParticipant is the inverse of AddParticipant, with the same
// consistency caveat.
func (s *ChatService) RemoveParticipant(ctx context.Context, chat *domain.Chat, user *domain.User) error {
	user.Withdraw(chat.ID)

	if err := s.users.Update(ctx, *user); err != nil {
		s.log.Error("membership diverged from user record",
			"chat", chat.ID, "user", user.UserID, "op", "remove", "error", err)
		return fmt.Errorf("%w: remove %s from %s: %v", errors.ErrConsistencyGap, user.UserID, chat.ID, err)
	}
	return nil
}

// PutIcon compresses and uploads the chat icon at its derived key.
func (s *ChatService) PutIcon(ctx context.Context, chat *domain.Chat, svg string) error {
	compressed, err := storage.Compress([]byte(svg))
	if err != nil {
		return fmt.Errorf("%w: compress icon %s: %v", errors.ErrStorageWrite, chat.ID, err)
	}
	return s.avatars.Put(ctx, chat.IconURL, compressed)
}

// Delete removes the chat snapshot. Administrative action only.
func (s *ChatService) Delete(ctx context.Context, chat *domain.Chat) error {
	return s.chats.Delete(ctx, chat.RemoteURL)
}
