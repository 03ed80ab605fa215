package httpserver

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophtoken/internal/common"
	"github.com/dmitrijs2005/gophtoken/internal/logging"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

// RequestIDHeader is echoed back and attached to every log line.
const RequestIDHeader = "X-Request-ID"

type ctxKey string

const principalKey ctxKey = "principal"

func principalFromContext(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(principalKey).(string)
	return p, ok && p != ""
}

// principalMiddleware attaches the authenticated principal. The trusted
// header wins over the development header; the request body is never used.
func (s *HTTPServer) principalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var principal string
		if h := s.opts.TrustedIdentityHeader; h != "" {
			principal = strings.TrimSpace(r.Header.Get(h))
		}
		if principal == "" && s.opts.DevIdentityHeader {
			principal = strings.TrimSpace(r.Header.Get(common.DevIdentityHeader))
		}
		if principal != "" {
			r = r.WithContext(context.WithValue(r.Context(), principalKey, principal))
		}
		next.ServeHTTP(w, r)
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.statusCode = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// recoverMiddleware turns a panic into a 500 and reports it to Sentry on a
// per-request hub.
func (s *HTTPServer) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetRequest(r)
		ctx := sentry.SetHubOnContext(r.Context(), hub)

		defer func() {
			if rec := recover(); rec != nil {
				hub.WithScope(func(scope *sentry.Scope) {
					scope.SetExtra("stack", string(debug.Stack()))
					hub.RecoverWithContext(ctx, rec)
				})
				s.logger.Error(ctx, "panic recovered", "path", r.URL.Path, "method", r.Method, "panic", rec)
				writeError(w, http.StatusInternalServerError, codeServerError)
			}
		}()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
