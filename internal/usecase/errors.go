package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrArchived              = errors.New("tournament is archived")
	ErrAlreadyResolved       = errors.New("submission already resolved")
	ErrCodeCollision         = errors.New("could not allocate a unique access code")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
