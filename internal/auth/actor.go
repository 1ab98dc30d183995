package auth

import (
	"errors"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/lifecycle"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role")
)

// Actor is the authenticated caller of an order operation.
type Actor struct {
	ID   string         `json:"id"`
	Role lifecycle.Role `json:"role"`
}
