package web

// errors.go renders every API error the same way: the technical error is
// logged with the request id, and the client receives the mapped
// core.UserMessage as JSON.

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/JonMunkholm/encounters/internal/core"
	"github.com/JonMunkholm/encounters/internal/logging"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Action  string   `json:"action,omitempty"`
	Code    string   `json:"code"`
	Missing []string `json:"missing_columns,omitempty"`
}

var (
	errNoFile     = errors.New("no file provided")
	errFileTooBig = errors.New("file too large or invalid form")
)

// statusFor picks the HTTP status for a pipeline or request error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrSchema):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrEmptySource), errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case errors.Is(err, errFileTooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyIngests):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrPartialWrite):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped user message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var se *core.SchemaError
	if errors.As(err, &se) {
		resp.Missing = se.Missing
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	writeJSON(w, r, status, resp)
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
