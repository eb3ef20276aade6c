package rewards

import "errors"

var (
	ErrRewardNotFound = errors.New("reward not found")
	ErrAlreadyClaimed = errors.New("reward already claimed")
	ErrEmptyUser      = errors.New("user id must not be empty")

	// errAlreadyAwarded aborts an award transaction that found the badge.
	errAlreadyAwarded = errors.New("badge already awarded")
)
