// Package api exposes the account and chat endpoints. Replies follow
// one shape: success payloads inline, failures as numeric-coded errors.
package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ljpprojects/kolloquy/auth"
	"github.com/ljpprojects/kolloquy/contract"
	"github.com/ljpprojects/kolloquy/domain"
	"github.com/ljpprojects/kolloquy/errors"
	"github.com/ljpprojects/kolloquy/icon"
	"github.com/ljpprojects/kolloquy/repositories"
	"github.com/ljpprojects/kolloquy/services"
	"github.com/ljpprojects/kolloquy/storage"
)

const registerSchema = `{"email": "string", "handle": "string", "age": "u8", "password": "string"}`
const authenticateSchema = `{"email": "string", "password": "string", "redirect": "url"}`

type Handler struct {
	users    repositories.IUserRepository
	chats    services.IChatService
	sessions *auth.SessionStore
	avatars  storage.ObjectStore
	log      *slog.Logger
}

func NewHandler(users repositories.IUserRepository, chats services.IChatService,
	sessions *auth.SessionStore, avatars storage.ObjectStore, log *slog.Logger) *Handler {
	return &Handler{
		users:    users,
		chats:    chats,
		sessions: sessions,
		avatars:  avatars,
		log:      log,
	}
}

// Register creates an account: validation, duplicate checks, server-side
// re-hash of the client digest, generated avatar, fresh session.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, contract.Failure(contract.CodeBadSchema,
			"Invalid schema for JSON body",
			fmt.Sprintf("Expected JSON to match schema: %s", registerSchema)))
		return
	}

	if err := auth.ValidateRegister(req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	ctx := r.Context()

	if _, err := h.users.GetByEmail(ctx, req.Email); err == nil {
		h.writeJSON(w, http.StatusBadRequest, contract.Failure(contract.CodeEmailConflict,
			"A user with this email already exists.", ""))
		return
	} else if !stderrors.Is(err, errors.ErrNotFound) {
		h.writeStoreFailure(w, err)
		return
	}

	if _, err := h.users.GetByHandle(ctx, req.Handle); err == nil {
		h.writeJSON(w, http.StatusBadRequest, contract.Failure(contract.CodeHandleConflict,
			"A user with this handle already exists.", ""))
		return
	} else if !stderrors.Is(err, errors.ErrNotFound) {
		h.writeStoreFailure(w, err)
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		h.log.Error("Password hash failed", "error", err)
		h.writeStoreFailure(w, err)
		return
	}

	user := domain.User{
		Email:     req.Email,
		Handle:    req.Handle,
		Password:  hashed,
		Age:       int(req.Age),
		UserID:    domain.NewID(),
		Joined:    time.Now().UTC(),
		LastAgent: r.UserAgent(),
	}
	user.AvatarURL = user.UserID + ".svg.br"

	avatar := icon.NewAvatar()
	compressed, err := storage.Compress([]byte(avatar))
	if err != nil {
		h.writeStoreFailure(w, err)
		return
	}
	if err := h.avatars.Put(ctx, user.AvatarKey(), compressed); err != nil {
		h.log.Error("Avatar upload failed", "user", user.UserID, "error", err)
		h.writeStoreFailure(w, err)
		return
	}

	if err := h.users.Insert(ctx, user); err != nil {
		switch {
		case stderrors.Is(err, errors.ErrUserAlreadyExists):
			h.writeJSON(w, http.StatusBadRequest, contract.Failure(contract.CodeEmailConflict,
				"A user with this email already exists.", ""))
		case stderrors.Is(err, errors.ErrHandleAlreadyTaken):
			h.writeJSON(w, http.StatusBadRequest, contract.Failure(contract.CodeHandleConflict,
				"A user with this handle already exists.", ""))
		default:
			h.writeStoreFailure(w, err)
		}
		return
	}

	h.setSessionCookie(w, h.sessions.Create(user))
	h.writeJSON(w, http.StatusCreated, contract.Response{
		Success: true,
		ID:      user.UserID,
		Avatar:  avatar,
	})
}

// Authenticate opens a session for an existing account.
func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req auth.AuthenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, contract.Failure(contract.CodeBadSchema,
			"Invalid schema for JSON body",
			fmt.Sprintf("Expected JSON to match schema: %s", authenticateSchema)))
		return
	}

	if err := auth.ValidateAuthenticate(req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	// An already-valid session short-circuits straight to the account.
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil {
		if _, _, err := h.sessions.Get(cookie.Value); err == nil {
			w.Header().Set("Location", "/account")
			h.writeJSON(w, http.StatusOK, contract.Response{Success: true})
			return
		}
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			h.writeJSON(w, http.StatusBadRequest, contract.Failure(contract.CodeEmailConflict,
				"A user with this email does not exist.", ""))
			return
		}
		h.writeStoreFailure(w, err)
		return
	}

	ok, err := auth.ComparePassword(req.Password, user.Password)
	if err != nil || !ok {
		h.writeJSON(w, http.StatusForbidden, contract.Failure(contract.CodeWrongPassword,
			"Incorrect password.", ""))
		return
	}

	h.setSessionCookie(w, h.sessions.Create(user))
	w.Header().Set("Location", "/account")
	h.writeJSON(w, http.StatusOK, contract.Response{Success: true, ID: user.UserID})
}

// Logout drops the session and expires the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil {
		h.sessions.Invalidate(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	h.writeJSON(w, http.StatusOK, contract.Response{Success: true})
}

type createChatRequest struct {
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
}

// CreateChat builds a room, uploads its icon, persists the snapshot and
// enrolls the creator plus any named participants.
func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	creator, ok := h.authenticated(w, r)
	if !ok {
		return
	}

	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		h.writeJSON(w, http.StatusBadRequest, contract.Failure(contract.CodeBadSchema,
			"Invalid schema for JSON body",
			`Expected JSON to match schema: {"name": "string", "participants": ["string"]}`))
		return
	}

	ctx := r.Context()
	chat, chatIcon := h.chats.Create(req.Name)

	if err := h.chats.PutIcon(ctx, chat, chatIcon); err != nil {
		h.writeStoreFailure(w, err)
		return
	}
	if err := h.chats.Persist(ctx, chat); err != nil {
		h.writeStoreFailure(w, err)
		return
	}

	if err := h.chats.AddParticipant(ctx, chat, &creator); err != nil {
		h.writeStoreFailure(w, err)
		return
	}
	for _, id := range req.Participants {
		participant, err := h.users.GetByID(ctx, id)
		if err != nil {
			h.log.Warn("Participant skipped", "chat", chat.ID, "user", id, "error", err)
			continue
		}
		if err := h.chats.AddParticipant(ctx, chat, &participant); err != nil {
			h.writeStoreFailure(w, err)
			return
		}
	}

	h.writeJSON(w, http.StatusCreated, contract.Response{
		Success: true,
		Chat:    chat.ID,
		Avatar:  chatIcon,
	})
}

// authenticated resolves the request's session or writes a 401.
func (h *Handler) authenticated(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	cookie, err := r.Cookie(auth.SessionCookieName)
	if err != nil {
		http.Error(w, "missing session", http.StatusUnauthorized)
		return domain.User{}, false
	}
	user, _, err := h.sessions.Get(cookie.Value)
	if err != nil {
		http.Error(w, "invalid session", http.StatusUnauthorized)
		return domain.User{}, false
	}
	return user, true
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(auth.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) writeValidationError(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, errors.ErrInvalidEmail):
		h.writeJSON(w, http.StatusBadRequest, contract.Failure(contract.CodeBadEmail,
			"Invalid email address.",
			"Email address did not match the (partial) RFC 5233 regex."))
	case stderrors.Is(err, errors.ErrInvalidHandle):
		h.writeJSON(w, http.StatusBadRequest, contract.Failure(contract.CodeBadHandle,
			"Invalid handle.",
			`Handle did not match the handle regex (/^@?[\w!$-.\\\/]{3,15}$/)`))
	case stderrors.Is(err, errors.ErrInvalidPasswordHash):
		h.writeJSON(w, http.StatusBadRequest, contract.Failure(contract.CodeBadPasswordHash,
			"Invalid password hash.",
			"Hash did not match required length and encoding."))
	case stderrors.Is(err, errors.ErrInvalidRedirect):
		h.writeJSON(w, http.StatusBadRequest, contract.Failure(contract.CodeBadRedirect,
			"Invalid redirect URL.", ""))
	default:
		h.writeJSON(w, http.StatusBadRequest, contract.Failure(contract.CodeBadSchema,
			"Invalid schema for JSON body", err.Error()))
	}
}

func (h *Handler) writeStoreFailure(w http.ResponseWriter, err error) {
	h.writeJSON(w, http.StatusInternalServerError, contract.Failure(contract.CodeStoreFailure,
		"Could not access database.", err.Error()))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body contract.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Response encode failed", "error", err)
	}
}
