// Package httpx holds the HTTP plumbing shared by every handler: JSON
// responses, the error envelope, identity middleware, request ids, access
// logging and metrics.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"eternalflame/internal/apperr"
	"eternalflame/internal/locale"
)

// Error codes in the {"error": {"code", "message"}} envelope.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeConflict           = "CONFLICT"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeRateLimited        = "RATE_LIMITED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// internalMessage is the only message an internal error ever shows,
// whatever the caller's locale.
const internalMessage = "Internal server error"

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err onto a status code and a localized envelope. Internal
// errors are logged and answered with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, loc string, err error) {
	kind := apperr.KindOf(err)
	status, code := statusFor(kind)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("code", code).Msg("request failed")
	}

	message := internalMessage
	if kind != apperr.KindInternal {
		message = locale.Message(apperr.KeyOf(err), loc)
	}
	WriteJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func statusFor(kind apperr.Kind) (int, string) {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, CodeValidationError
	case apperr.KindConflict:
		return http.StatusConflict, CodeConflict
	case apperr.KindAuth:
		return http.StatusUnauthorized, CodeUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden, CodeForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound, CodeNotFound
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests, CodeRateLimited
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable, CodeServiceUnavailable
	default:
		return http.StatusInternalServerError, CodeInternalError
	}
}

// DecodeJSON reads a JSON object body into dst. An empty body leaves dst
// untouched.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return &apperr.Error{Kind: apperr.KindValidation, Key: "invalid_request", Err: err}
}
