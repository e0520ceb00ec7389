// Package sentryutil wires Sentry error tracking for the sync pipeline.
package sentryutil

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

type Config struct {
	DSN         string
	Environment string
	Release     string
	ServerName  string
}

// Init initializes Sentry. With an empty DSN error tracking is disabled and
// all capture helpers become no-ops.
func Init(cfg Config, logger *slog.Logger) error {
	if cfg.DSN == "" {
		if logger != nil {
			logger.Warn("Sentry DSN not configured - error tracking disabled")
		}
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		ServerName:  cfg.ServerName,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			// Strip credentials before events leave the process.
			if event.Request != nil && event.Request.Headers != nil {
				delete(event.Request.Headers, "Authorization")
				delete(event.Request.Headers, "X-Custom-Authorization")
				delete(event.Request.Headers, "Cookie")
			}
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}

	if logger != nil {
		logger.Info("Sentry initialized", "environment", cfg.Environment, "release", cfg.Release)
	}
	return nil
}

// CaptureException reports err with optional key/value context attached to
// the event scope.
func CaptureException(err error, context map[string]interface{}) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for key, value := range context {
			scope.SetContext(key, sentry.Context(map[string]interface{}{
				"value": value,
			}))
		}
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events to be delivered. Call before shutdown.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
