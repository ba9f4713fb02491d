package model

import "errors"

var (
	// ErrInvalidInput is returned for non-finite or out-of-range numeric input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoSubjects is returned when an assessment carries no subjects.
	ErrNoSubjects = errors.New("assessment has no subjects")
)
