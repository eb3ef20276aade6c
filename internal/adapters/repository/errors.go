package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("document not found")
	ErrAlreadyExists  = errors.New("document already exists")
	ErrConflict       = errors.New("transaction conflict")
	ErrTooManyRetries = errors.New("transaction retries exhausted")
	ErrAlreadyClaimed = errors.New("reward already claimed")
	ErrForbidden      = errors.New("not the owner")
	ErrClosed         = errors.New("store closed")
)
