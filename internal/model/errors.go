package model

import "errors"

var (
	// Identity errors surfaced by the access core.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid refresh token")
	ErrForbidden          = errors.New("forbidden")

	// Errors owned by collaborators.
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)
