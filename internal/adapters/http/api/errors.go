package api

import (
	"errors"
	"net/http"
	"strconv"

	service "github.com/okian/postflow/internal/app"
	"github.com/okian/postflow/internal/domain/rewards"
	"github.com/okian/postflow/internal/domain/types"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrInvalidToken = errors.New("invalid token")
	ErrAuthDisabled = errors.New("token authentication is not configured")
)

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, types.ErrorBody{Code: code, Message: msg})
}

// writeServiceError maps a service error to its status and envelope.
func writeServiceError(w http.ResponseWriter, err error) {
	body := types.ErrorBody{Code: string(service.KindUnknown), Message: "internal error"}
	var pe *service.PublishError
	if errors.As(err, &pe) {
		body.Code = string(pe.Kind)
		body.Message = pe.Message
		body.RetryAfterSeconds = pe.RetryAfterSeconds
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, ErrBadRequest):
		status = http.StatusBadRequest
		body.Code = "bad_request"
		body.Message = err.Error()
		if pe != nil && pe.Err != nil {
			body.Message = pe.Err.Error()
		}
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
		body.Code, body.Message = "not_found", "not found"
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
		body.Code, body.Message = "forbidden", "not the owner"
	case errors.Is(err, rewards.ErrAlreadyClaimed):
		status = http.StatusConflict
		body.Code, body.Message = "already_claimed", "reward already claimed"
	case errors.Is(err, service.ErrNotStarted):
		status = http.StatusServiceUnavailable
		body.Code, body.Message = "unavailable", "service is starting"
	default:
		switch service.KindOf(err) {
		case service.KindRateLimited:
			status = http.StatusTooManyRequests
			if body.RetryAfterSeconds > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfterSeconds))
			}
		case service.KindNotAuthenticated:
			status = http.StatusUnauthorized
			body.Code = string(service.KindNotAuthenticated)
			if pe == nil {
				body.Message = "sign in required"
			}
		case service.KindAssetUploadFailed:
			status = http.StatusBadGateway
		case service.KindPublicationVerificationFailed:
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, body)
}
