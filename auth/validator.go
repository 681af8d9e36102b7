package auth

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/ljpprojects/kolloquy/errors"
)

var validate = validator.New()

var (
	handleShape = regexp.MustCompile(`^@?[\w!$-.\\/]{3,15}$`)

	// Clients send the base64 form of a 256-bit digest, never the raw
	// password: 43 alphabet characters and one padding byte.
	passwordShape = regexp.MustCompile(`^[a-zA-Z0-9+/]{43}=$`)

	redirectShape = regexp.MustCompile(`^https?://[a-zA-Z0-9]+(?:\.[a-zA-Z0-9]+)+/?(?:/[\w.\-~!$&'()*+,;=:@]+)*$`)
)

// RegisterRequest is the payload of POST /register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Handle   string `json:"handle" validate:"required"`
	Age      uint8  `json:"age" validate:"gte=13"`
	Password string `json:"password" validate:"required"`
}

// AuthenticateRequest is the payload of POST /auth.
type AuthenticateRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Redirect string `json:"redirect" validate:"required"`
}

// ValidateRegister checks a registration payload and maps each failing
// field to its dedicated error.
func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		if fieldFailed(err, "Email") {
			return errors.ErrInvalidEmail
		}
		return err
	}
	if !handleShape.MatchString(req.Handle) {
		return errors.ErrInvalidHandle
	}
	if !passwordShape.MatchString(req.Password) {
		return errors.ErrInvalidPasswordHash
	}
	return nil
}

// ValidateAuthenticate checks an authentication payload.
func ValidateAuthenticate(req AuthenticateRequest) error {
	if !redirectShape.MatchString(req.Redirect) {
		return errors.ErrInvalidRedirect
	}
	if err := validate.Struct(req); err != nil {
		if fieldFailed(err, "Email") {
			return errors.ErrInvalidEmail
		}
		return err
	}
	if !passwordShape.MatchString(req.Password) {
		return errors.ErrInvalidPasswordHash
	}
	return nil
}

func fieldFailed(err error, field string) bool {
	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}
	for _, fe := range fieldErrors {
		if fe.Field() == field {
			return true
		}
	}
	return false
}
