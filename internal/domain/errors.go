package domain

import "errors"

var (
	// ErrConfig marks a missing or invalid configuration value (workflow ids, interview id).
	ErrConfig = errors.New("configuration error")

	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)
