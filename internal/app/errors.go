package service

import (
	"errors"

	"github.com/okian/postflow/internal/adapters/repository"
	"github.com/okian/postflow/internal/domain/publication"
	"github.com/okian/postflow/internal/domain/ratelimit"
	"github.com/okian/postflow/internal/domain/rewards"
	"github.com/okian/postflow/internal/domain/upload"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrNotStarted       = errors.New("service not started")
)

// ErrorKind is the caller-facing failure class of a publish.
type ErrorKind string

const (
	KindRateLimited                   ErrorKind = "rate_limited"
	KindNotAuthenticated              ErrorKind = "not_authenticated"
	KindAssetUploadFailed             ErrorKind = "asset_upload_failed"
	KindPublicationVerificationFailed ErrorKind = "publication_verification_failed"
	KindUnknown                       ErrorKind = "unknown"
)

// PublishError is what Publish returns for every surfaced failure.
type PublishError struct {
	Kind              ErrorKind
	Message           string
	RetryAfterSeconds int
	Err               error
}

func (e *PublishError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *PublishError) Unwrap() error { return e.Err }

// KindOf classifies err. A nil error has no kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var pe *PublishError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	switch {
	case errors.Is(err, ratelimit.ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrNotAuthenticated):
		return KindNotAuthenticated
	case errors.Is(err, upload.ErrUploadFailed):
		return KindAssetUploadFailed
	case errors.Is(err, publication.ErrVerificationFailed):
		return KindPublicationVerificationFailed
	}
	return KindUnknown
}

// classify wraps err into a PublishError carrying its kind.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pe *PublishError
	if errors.As(err, &pe) {
		return err
	}
	kind := KindOf(err)
	out := &PublishError{Kind: kind, Err: err}
	switch kind {
	case KindRateLimited:
		out.Message = "publishing too often"
		var rl *ratelimit.RateLimitedError
		if errors.As(err, &rl) {
			out.RetryAfterSeconds = rl.RetryAfterSeconds
		}
	case KindNotAuthenticated:
		out.Message = "sign in to publish"
	case KindAssetUploadFailed:
		out.Message = "an asset failed to upload"
	case KindPublicationVerificationFailed:
		out.Message = "the post could not be verified and was removed"
	default:
		out.Message = "publish failed"
		if errors.Is(err, ErrInvalidRequest) {
			out.Message = "the submission was rejected"
		}
	}
	return out
}

// outcome labels the publish metric.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	default:
		return string(KindOf(err))
	}
}

// mapStoreError turns repository and reward errors into service sentinels.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, rewards.ErrRewardNotFound):
		return errors.Join(ErrNotFound, err)
	case errors.Is(err, repository.ErrForbidden):
		return errors.Join(ErrForbidden, err)
	}
	return err
}
