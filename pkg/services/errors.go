package services

import "errors"

// Error taxonomy surfaced across component boundaries. The api frontend maps
// these to HTTP statuses; everything else is treated as a fatal store error.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrAlreadyMember = errors.New("already a member")
	ErrNotMember     = errors.New("not a member")
	ErrInvalidID     = errors.New("invalid identifier")
	ErrUnauthorized  = errors.New("invalid credentials")
)
