// Package httputil maps domain errors onto HTTP responses and handles
// request decoding, so handlers never inspect error strings or repeat
// boilerplate.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "finreg/pkg/domain-errors"
)

// Validatable is implemented by request DTOs that validate and normalize
// themselves after decoding.
type Validatable interface {
	Validate() error
}

type errorBody struct {
	Error            string   `json:"error"`
	ErrorDescription string   `json:"error_description,omitempty"`
	Details          []string `json:"details,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError renders a domain error as JSON. Server-side failures (5xx)
// omit the description so storage internals never reach a client;
// validation errors carry the ordered per-rule messages.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := statusFor(code)

	body := errorBody{Error: string(code)}
	if status < http.StatusInternalServerError {
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			body.ErrorDescription = domainErr.Message
		} else {
			body.ErrorDescription = err.Error()
		}
		body.Details = dErrors.DetailsOf(err)
	}
	WriteJSON(w, status, body)
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeInvalidTransition, dErrors.CodeAlreadyProcessed, dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeStorage, dErrors.CodeTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DecodeAndPrepare decodes the request body into T and runs its
// validation, writing the error response itself on failure. Handlers
// proceed only when ok is true.
func DecodeAndPrepare[T any, PT validatablePtr[T]](
	w http.ResponseWriter,
	r *http.Request,
	logger *slog.Logger,
	ctx context.Context,
	requestID string,
) (PT, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "request body undecodable",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "request body must be valid JSON"))
		return nil, false
	}

	pt := PT(&req)
	if err := pt.Validate(); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		WriteError(w, err)
		return nil, false
	}
	return pt, true
}

type validatablePtr[T any] interface {
	*T
	Validatable
}
