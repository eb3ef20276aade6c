package publication

import "errors"

var (
	// ErrVerificationFailed means an uploaded asset could not be read back and
	// the post was removed.
	ErrVerificationFailed = errors.New("publication verification failed")
	// ErrPersistFailed means the post could not be written.
	ErrPersistFailed = errors.New("publication write failed")
	ErrNoIdentity    = errors.New("identity is required")
	ErrNoAssets      = errors.New("post has no assets")
)
