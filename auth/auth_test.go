package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ljpprojects/kolloquy/errors"
)

// clientDigest is what a browser actually sends: base64 of a sha-256
// digest, 43 characters plus padding.
const clientDigest = "qX9h2kD8mP4vL7eRtYcB1nJ6wZ5sA3gF0oUiVxMdKbE="

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword(clientDigest)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(clientDigest, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("wrong-digest", hash)
	req.NoError(err)
	req.False(match)
}

func TestComparePassword_MalformedHash(t *testing.T) {
	req := require.New(t)

	_, err := ComparePassword(clientDigest, "not-an-encoded-hash")
	req.Error(err)
}

func TestValidateRegister(t *testing.T) {
	valid := RegisterRequest{
		Email:    "someone@example.com",
		Handle:   "@someone",
		Age:      21,
		Password: clientDigest,
	}

	tests := []struct {
		name    string
		mutate  func(*RegisterRequest)
		wantErr error
	}{
		{"valid", func(r *RegisterRequest) {}, nil},
		{"bad email", func(r *RegisterRequest) { r.Email = "not-an-email" }, errors.ErrInvalidEmail},
		{"handle too short", func(r *RegisterRequest) { r.Handle = "@x" }, errors.ErrInvalidHandle},
		{"handle too long", func(r *RegisterRequest) { r.Handle = "@" + strings.Repeat("a", 16) }, errors.ErrInvalidHandle},
		{"raw password", func(r *RegisterRequest) { r.Password = "hunter2" }, errors.ErrInvalidPasswordHash},
		{"unpadded digest", func(r *RegisterRequest) { r.Password = strings.TrimSuffix(clientDigest, "=") }, errors.ErrInvalidPasswordHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			r := valid
			tt.mutate(&r)

			err := ValidateRegister(r)
			if tt.wantErr == nil {
				req.NoError(err)
			} else {
				req.ErrorIs(err, tt.wantErr)
			}
		})
	}
}

func TestValidateAuthenticate(t *testing.T) {
	valid := AuthenticateRequest{
		Email:    "someone@example.com",
		Password: clientDigest,
		Redirect: "https://kolloquy.com/account",
	}

	tests := []struct {
		name    string
		mutate  func(*AuthenticateRequest)
		wantErr error
	}{
		{"valid", func(r *AuthenticateRequest) {}, nil},
		{"plain http", func(r *AuthenticateRequest) { r.Redirect = "http://dev.kolloquy.com/account" }, nil},
		{"javascript scheme", func(r *AuthenticateRequest) { r.Redirect = "javascript:alert(1)" }, errors.ErrInvalidRedirect},
		{"no host", func(r *AuthenticateRequest) { r.Redirect = "https:///account" }, errors.ErrInvalidRedirect},
		{"bad email", func(r *AuthenticateRequest) { r.Email = "@@" }, errors.ErrInvalidEmail},
		{"raw password", func(r *AuthenticateRequest) { r.Password = "hunter2" }, errors.ErrInvalidPasswordHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			r := valid
			tt.mutate(&r)

			err := ValidateAuthenticate(r)
			if tt.wantErr == nil {
				req.NoError(err)
			} else {
				req.ErrorIs(err, tt.wantErr)
			}
		})
	}
}
