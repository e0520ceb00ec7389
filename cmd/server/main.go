// Command server runs the challenge backend: the public API, the Strava
// webhook, and the push endpoints consuming the sync topics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pacelap/server/functions/activitysync"
	"github.com/pacelap/server/functions/api"
	"github.com/pacelap/server/functions/athletesync"
	"github.com/pacelap/server/functions/recalc"
	"github.com/pacelap/server/functions/webhook"
	"github.com/pacelap/server/pkg/bootstrap"
	sentryutil "github.com/pacelap/server/pkg/infrastructure/sentry"
)

func main() {
	ctx := context.Background()

	svc, err := bootstrap.NewService(ctx)
	if err != nil {
		slog.Error("Service initialization failed", "error", err)
		os.Exit(1)
	}

	err = sentryutil.Init(sentryutil.Config{
		DSN:         os.Getenv("SENTRY_DSN"),
		Environment: os.Getenv("SENTRY_ENVIRONMENT"),
		Release:     os.Getenv("SENTRY_RELEASE"),
	}, slog.Default())
	if err != nil {
		slog.Error("Sentry initialization failed", "error", err)
		os.Exit(1)
	}
	defer sentryutil.Flush(2 * time.Second)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/webhook", webhook.NewVerifyHandler(svc))
	r.Post("/webhook", webhook.NewPushHandler(svc))

	r.Mount("/api", api.New(svc).Routes())

	rc := recalc.New(svc)
	r.Route("/events", func(r chi.Router) {
		r.Post("/activity-sync", activitysync.New(svc).HTTP())
		r.Post("/athlete-sync", athletesync.New(svc).HTTP())
		r.Post("/recalculate", rc.HTTP())
	})
	r.Post("/internal/update-states", rc.States())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", svc.Config.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "port", svc.Config.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
}
