package router

import (
	"errors"
	"net/http"

	"github.com/BaSui01/agentflow/llm"
)

// EnvelopeType maps an error into one of the five OpenAI error-envelope
// types named by spec §4.7 step 5 / §7.
func EnvelopeType(err error) string {
	var e *llm.Error
	if !errors.As(err, &e) {
		return "server_error"
	}
	switch e.Code {
	case llm.ErrValidation:
		return "validation_error"
	case llm.ErrProviderNotFound, llm.ErrSessionMissing:
		return "not_found_error"
	case llm.ErrProviderDisabled, llm.ErrConfigInvalid:
		return "conflict_error"
	case llm.ErrProviderNotLoaded:
		return "provider_not_loaded_error"
	default:
		return "server_error"
	}
}

// HTTPStatus maps err to the HTTP status the front end should return,
// preferring an explicit status the error already carries.
func HTTPStatus(err error) int {
	var e *llm.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	switch e.Code {
	case llm.ErrValidation, llm.ErrUpstreamClient4xx:
		return http.StatusBadRequest
	case llm.ErrProviderNotFound, llm.ErrSessionMissing:
		return http.StatusNotFound
	case llm.ErrProviderDisabled, llm.ErrConfigInvalid:
		return http.StatusConflict
	case llm.ErrProviderNotLoaded:
		return http.StatusServiceUnavailable
	case llm.ErrUpstreamRateLimited:
		return http.StatusTooManyRequests
	case llm.ErrUpstreamServerError, llm.ErrUpstreamNetworkError:
		return http.StatusBadGateway
	default:
		// credentials_missing/expired and the generic server_error
		// catch-all surface as 500 (spec §8 scenario 4).
		return http.StatusInternalServerError
	}
}

// Code extracts the wire error code string (e.g. "credentials_missing"),
// or "server_error" for an error this gateway didn't originate.
func Code(err error) string {
	var e *llm.Error
	if errors.As(err, &e) {
		return string(e.Code)
	}
	return string(llm.ErrServerError)
}

// Message extracts a client-safe message, falling back to err.Error() for
// errors this gateway didn't originate.
func Message(err error) string {
	var e *llm.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
