package errors

import "errors"

var (
	ErrNotFound          = errors.New("checkpoint not found")
	ErrInvalidID         = errors.New("invalid checkpoint ID format")
	ErrTokenNotFound     = errors.New("checkpoint token not found")
	ErrInvalidTransition = errors.New("invalid checkpoint transition")
)
