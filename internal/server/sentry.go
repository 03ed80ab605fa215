package server

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// initSentry configures the global hub. An empty DSN leaves reporting off.
func initSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

func flushSentry() {
	sentry.Flush(2 * time.Second)
}
