package errors

import "errors"

var (
	ErrNotFound = errors.New("recommendation not found")

	ErrInvalidID = errors.New("invalid recommendation ID format")

	ErrInvalidPeriod = errors.New("period end must be after period start")

	ErrNoScores = errors.New("no fairness scores computed for this group and vehicle")
)
