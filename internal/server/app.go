// Package server wires the configuration, stores, signing key and token
// service together and runs the HTTP and gRPC servers with the purge worker.
package server

import (
	"context"
	"crypto/rsa"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophtoken/internal/logging"
	"github.com/dmitrijs2005/gophtoken/internal/server/auth"
	"github.com/dmitrijs2005/gophtoken/internal/server/config"
	"github.com/dmitrijs2005/gophtoken/internal/server/httpserver"
	"github.com/dmitrijs2005/gophtoken/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophtoken/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophtoken/internal/server/services"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/gophtoken/internal/server/grpc"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const healthProbeInterval = 15 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	redis   *redis.Client
	manager repomanager.RepositoryManager
	issuer  *auth.Issuer
	tokens  *services.TokenService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, err := logging.New(c.LogBackend, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	if err := initSentry(c.SentryDSN, c.Environment); err != nil {
		return nil, fmt.Errorf("sentry init error: %w", err)
	}

	app := &App{config: c, logger: logger}

	if c.TokenStore != config.TokenStoreMemory {
		app.db, err = sql.Open("pgx", c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
	}

	switch c.TokenStore {
	case config.TokenStoreMemory:
		app.manager = repomanager.NewMemoryRepositoryManager()
	case config.TokenStoreRedis:
		app.redis = redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		app.manager = repomanager.NewRedisRepositoryManager(app.redis, refreshtokens.DefaultRedisPrefix)
	default:
		app.manager = repomanager.NewPostgresRepositoryManager()
	}

	if app.db != nil {
		if err := app.manager.RunMigrations(ctx, app.db); err != nil {
			app.close()
			return nil, fmt.Errorf("migration error: %w", err)
		}
	}

	if c.SeedDemoUsers {
		n, err := services.SeedDemoUsers(ctx, app.db, app.manager, time.Now().UTC())
		if err != nil {
			app.close()
			return nil, fmt.Errorf("seeding error: %w", err)
		}
		if n > 0 {
			logger.Info(ctx, "demo users seeded", "count", n)
		}
	}

	key, err := app.signingKey(ctx)
	if err != nil {
		app.close()
		return nil, err
	}

	app.issuer, err = auth.NewIssuer(key, auth.IssuerConfig{
		Issuer:   c.JWTIssuer,
		Audience: c.JWTAudience,
		KeyID:    c.JWTKeyID,
		Validity: c.AccessTokenValidityDuration,
	})
	if err != nil {
		app.close()
		return nil, fmt.Errorf("issuer init error: %w", err)
	}

	app.tokens = services.NewTokenService(app.db, app.manager, app.issuer, c, logger)

	return app, nil
}

func (app *App) signingKey(ctx context.Context) (*rsa.PrivateKey, error) {
	if app.config.PrivateKeyLocation == "" {
		app.logger.Warn(ctx, "no private key configured, generating an ephemeral signing key")
		return auth.GenerateDevKey()
	}

	return auth.LoadPrivateKey(ctx, app.config.PrivateKeyLocation, auth.S3Settings{
		User:         app.config.S3RootUser,
		Password:     app.config.S3RootPassword,
		Region:       app.config.S3Region,
		BaseEndpoint: app.config.S3BaseEndpoint,
	})
}

// probe pings every backing store in use.
func (app *App) probe(ctx context.Context) error {
	var errs []error
	if app.db != nil {
		if err := app.db.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if app.redis != nil {
		if err := app.redis.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (app *App) close() {
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := httpserver.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.tokens, app.issuer, app.probe, httpserver.Options{
		TrustedIdentityHeader: app.config.TrustedIdentityHeader,
		DevIdentityHeader:     app.config.DevIdentityHeader,
		CORSAllowedOrigins:    app.config.CORSAllowedOrigins,
	})

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.probe, healthProbeInterval)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	defer flushSentry()
	defer app.close()

	app.logger.Info(ctx, "Starting app...", "token_store", app.config.TokenStore)

	if app.config.DevIdentityHeader {
		app.logger.Warn(ctx, "development identity header is enabled")
	}

	app.initSignalHandler(cancelFunc)

	purger := services.NewPurger(app.manager.RefreshTokens(app.db), app.config.PurgeInterval, app.config.PurgeRetention, app.logger)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		purger.Run(ctx)
	}()

	wg.Wait()

}
