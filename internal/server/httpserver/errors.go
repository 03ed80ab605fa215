package httpserver

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophtoken/internal/common"
	"github.com/getsentry/sentry-go"
)

// OAuth style error codes returned in the "error" field.
const (
	codeInvalidRequest       = "invalid_request"
	codeInvalidGrant         = "invalid_grant"
	codeTokenReuseDetected   = "token_reuse_detected"
	codeUnsupportedGrantType = "unsupported_grant_type"
	codeInvalidIdentity      = "invalid_identity"
	codeWindowsAuthRequired  = "windows_auth_required"
	codeConcurrentRequest    = "concurrent_request"
	codeServerError          = "server_error"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Error: code})
}

// statusFor maps a service error to a status and code. Unknown lookups,
// expired tokens and missing users share one answer.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrUserNotFound):
		return http.StatusUnauthorized, codeInvalidGrant
	case errors.Is(err, common.ErrTokenReuseDetected):
		return http.StatusUnauthorized, codeTokenReuseDetected
	case errors.Is(err, common.ErrUnsupportedGrantType):
		return http.StatusBadRequest, codeUnsupportedGrantType
	case errors.Is(err, common.ErrInvalidIdentity):
		return http.StatusBadRequest, codeInvalidIdentity
	case errors.Is(err, common.ErrConcurrentModification):
		return http.StatusServiceUnavailable, codeConcurrentRequest
	}
	return http.StatusInternalServerError, codeServerError
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)

	switch {
	case status == http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
	case status >= http.StatusInternalServerError:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		} else {
			sentry.CaptureException(err)
		}
	}

	writeError(w, status, code)
}
