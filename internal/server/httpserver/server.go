// Package httpserver exposes the token service over HTTP.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophtoken/internal/logging"
	"github.com/dmitrijs2005/gophtoken/internal/server/auth"
	"github.com/dmitrijs2005/gophtoken/internal/server/services"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

const shutdownTimeout = 5 * time.Second

// TokenService is the part of services.TokenService served over HTTP.
type TokenService interface {
	Issue(ctx context.Context, grantType, principal string) (*services.TokenPair, error)
	Rotate(ctx context.Context, rawSecret string) (*services.TokenPair, error)
	LogoutEverywhere(ctx context.Context, principal string) (int64, error)
}

// KeySet publishes verification keys.
type KeySet interface {
	JWKS() auth.JWKSet
}

// Probe reports whether the backing stores are reachable.
type Probe func(ctx context.Context) error

// Options tune the transport.
type Options struct {
	// TrustedIdentityHeader names the header a fronting proxy sets to the
	// authenticated principal. Empty disables it.
	TrustedIdentityHeader string
	// DevIdentityHeader accepts common.DevIdentityHeader as the principal.
	DevIdentityHeader  bool
	CORSAllowedOrigins []string
}

type HTTPServer struct {
	address string
	tokens  TokenService
	keys    KeySet
	probe   Probe
	opts    Options
	logger  logging.Logger
}

func NewHTTPServer(address string, l logging.Logger, tokens TokenService, keys KeySet, probe Probe, opts Options) *HTTPServer {
	return &HTTPServer{
		address: address,
		tokens:  tokens,
		keys:    keys,
		probe:   probe,
		opts:    opts,
		logger:  l.With("module", "http_server"),
	}
}

// Handler builds the routed handler with its middleware chain.
func (s *HTTPServer) Handler() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/token").Subrouter()
	api.Use(s.principalMiddleware)
	api.HandleFunc("", s.handleToken).Methods(http.MethodPost)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/revoke-all", s.handleRevokeAll).Methods(http.MethodPost)

	r.HandleFunc("/.well-known/jwks.json", s.handleJWKS).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.opts.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	var h http.Handler = r
	h = c.Handler(h)
	h = s.recoverMiddleware(h)
	h = s.loggingMiddleware(h)
	h = requestIDMiddleware(h)
	return h
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
