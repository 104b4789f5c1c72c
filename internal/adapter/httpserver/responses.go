// Package httpserver exposes the thin trigger surface: background
// pipelines are enqueued fire-and-forget, only match queries and status
// changes run synchronously.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jobintel/jobintel/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error, details any) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		code = http.StatusBadRequest
		codeStr = "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
		codeStr = "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		code = http.StatusConflict
		codeStr = "CONFLICT"
	case errors.Is(err, domain.ErrNoEmbedding):
		code = http.StatusConflict
		codeStr = "NO_EMBEDDING"
	case errors.Is(err, domain.ErrNoResumes):
		code = http.StatusConflict
		codeStr = "NO_RESUMES"
	case errors.Is(err, domain.ErrConfigMissing):
		code = http.StatusPreconditionFailed
		codeStr = "CONFIG_MISSING"
	case errors.Is(err, domain.ErrRateLimited):
		code = http.StatusTooManyRequests
		codeStr = "RATE_LIMITED"
	case errors.Is(err, domain.ErrFetchFailed):
		code = http.StatusBadGateway
		codeStr = "FETCH_FAILED"
	case errors.Is(err, domain.ErrUpstreamTimeout):
		code = http.StatusServiceUnavailable
		codeStr = "UPSTREAM_TIMEOUT"
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: err.Error(), Details: details}})
}
