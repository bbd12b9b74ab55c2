// Package auth guards the admin API's mutating routes with a shared token.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Validator validates an admin token.
type Validator interface {
	Validate(token string) error
}

// StaticToken accepts exactly one configured token. An empty Token rejects
// everything.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(token string) error

func (f FuncValidator) Validate(token string) error {
	return f(token)
}

// TokenFile accepts the token stored in the file at path. The file is read
// on every call so the token can be rotated without a restart.
func TokenFile(path string) Validator {
	return FuncValidator(func(token string) error {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: token file: %v", ErrUnauthorized, err)
		}
		return StaticToken{Token: strings.TrimSpace(string(raw))}.Validate(token)
	})
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// CheckHeader validates the bearer token carried by header.
func CheckHeader(v Validator, header string) error {
	token, ok := BearerToken(header)
	if !ok {
		return ErrUnauthorized
	}
	return v.Validate(token)
}
