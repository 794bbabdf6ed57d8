package queuectl

import "errors"

var (
	// Store errors.
	ErrStoreUnavailable = errors.New("queuectl: store unavailable")
	ErrMigrationFailed  = errors.New("queuectl: migration failed")

	// Not found errors.
	ErrJobNotFound = errors.New("queuectl: job not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("queuectl: job already exists")

	// Input errors.
	ErrEmptyCommand = errors.New("queuectl: empty command")
	ErrInvalidState = errors.New("queuectl: invalid job state")
)
