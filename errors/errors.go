package errors

import "fmt"

var (
	// ErrNotFound reports a missing room, user, object or session.
	ErrNotFound = fmt.Errorf("not found")

	// ErrStorageRead and ErrStorageWrite surface adapter failures against
	// the object or relational store. Callers decide whether to retry.
	ErrStorageRead  = fmt.Errorf("storage read failed")
	ErrStorageWrite = fmt.Errorf("storage write failed")

	// ErrDeserialization reports a blob that was fetched but could not be
	// decompressed or decoded.
	ErrDeserialization = fmt.Errorf("deserialization failed")

	// ErrSessionExpired is returned once per expired session; the entry is
	// evicted on the access that observes the expiry.
	ErrSessionExpired = fmt.Errorf("session expired")

	// ErrConsistencyGap reports the non-atomic dual write between a chat's
	// membership and the user record. The in-memory half has already been
	// applied when this is returned; it must be logged, never swallowed.
	ErrConsistencyGap = fmt.Errorf("membership and user record diverged")

	ErrInvalidEnvelope = fmt.Errorf("malformed wire envelope")
	ErrUnknownAction   = fmt.Errorf("unknown envelope action")
	ErrRoomMismatch    = fmt.Errorf("envelope targets another room")

	ErrUserAlreadyExists   = fmt.Errorf("user already exists")
	ErrHandleAlreadyTaken  = fmt.Errorf("handle already taken")
	ErrInvalidCredentials  = fmt.Errorf("invalid credentials")
	ErrInvalidEmail        = fmt.Errorf("invalid email address")
	ErrInvalidHandle       = fmt.Errorf("invalid handle")
	ErrInvalidPasswordHash = fmt.Errorf("invalid password hash")
	ErrInvalidRedirect     = fmt.Errorf("invalid redirect url")

	// ErrSubscriberLagged marks a subscription that fell behind the room
	// channel and resumed at the current position.
	ErrSubscriberLagged = fmt.Errorf("subscriber lagged")

	// ErrSubscriptionClosed is returned by receives on a subscription after
	// Close.
	ErrSubscriptionClosed = fmt.Errorf("subscription closed")
)
