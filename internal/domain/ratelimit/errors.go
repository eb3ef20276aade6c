package ratelimit

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is matched by every *RateLimitedError via errors.Is.
	ErrRateLimited = errors.New("rate limited")
	ErrEmptyUser   = errors.New("user id must not be empty")
)

// RateLimitedError reports how long the caller must wait.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("please wait %d seconds before posting again", e.RetryAfterSeconds)
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }
