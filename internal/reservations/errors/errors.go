package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrInvalidID = errors.New("invalid reservation ID format")

	ErrTimeConflict = errors.New("reservation window conflicts with an existing reservation")

	ErrInvalidWindow = errors.New("end time must be after start time")

	ErrInvalidTransition = errors.New("reservation status transition not allowed")
)
