// Package framework wraps HTTP handlers and event consumers with the
// cross-cutting plumbing: structured logging, error mapping, panic capture
// and authentication.
package framework

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	shared "github.com/pacelap/server/pkg"
	"github.com/pacelap/server/pkg/bootstrap"
	sentryutil "github.com/pacelap/server/pkg/infrastructure/sentry"
	"github.com/pacelap/server/pkg/types"
)

// SessionHeader carries the session token issued at login.
const SessionHeader = "X-Custom-Authorization"

// EventAuthParam is the query parameter guarding consumer endpoints.
const EventAuthParam = "x-custom-auth"

// ErrNotAuthenticated covers every auth failure: missing or stale session,
// an athlete outside the allowlist, and a non-owner calling an admin
// operation. All map to a 401 so clients re-authenticate.
var ErrNotAuthenticated = errors.New("not authenticated")

// StatusError carries an explicit HTTP status for the response writer.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string { return e.Err.Error() }
func (e *StatusError) Unwrap() error { return e.Err }

// BadRequest wraps a validation failure so it maps to a 400.
func BadRequest(err error) error {
	return &StatusError{Code: http.StatusBadRequest, Err: err}
}

// Context carries the per-request dependencies into handlers.
type Context struct {
	Service *bootstrap.Service
	Logger  *slog.Logger
}

// HandlerFunc is an API operation. Returning (nil, nil) writes a 204; any
// other value is JSON encoded with a 200.
type HandlerFunc func(ctx context.Context, r *http.Request, fw *Context) (interface{}, error)

// WrapHTTP adapts an operation into an http.HandlerFunc with logging, error
// mapping and panic capture.
func WrapHTTP(operation string, svc *bootstrap.Service, handler HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := bootstrap.NewLogger(operation)
		fw := &Context{Service: svc, Logger: logger}

		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic in %s: %v", operation, rec)
				logger.Error("Handler panicked", "error", err)
				sentryutil.CaptureException(err, map[string]interface{}{"operation": operation})
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()

		result, err := handler(r.Context(), r, fw)
		if err != nil {
			writeMappedError(w, logger, operation, err)
			return
		}
		if result == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			logger.Error("Response encoding failed", "error", err)
		}
	}
}

func writeMappedError(w http.ResponseWriter, logger *slog.Logger, operation string, err error) {
	var statusErr *StatusError
	var notFound *shared.ErrNotFound
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "not authenticated")
	case errors.As(err, &statusErr):
		logger.Warn("Request rejected", "error", err)
		writeError(w, statusErr.Code, statusErr.Err.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		logger.Error("Handler failed", "error", err)
		sentryutil.CaptureException(err, map[string]interface{}{"operation": operation})
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// Authenticate resolves the session token on r to an athlete.
func Authenticate(ctx context.Context, r *http.Request, svc *bootstrap.Service) (*types.Athlete, error) {
	header := r.Header.Get(SessionHeader)
	session, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || session == "" {
		return nil, ErrNotAuthenticated
	}

	athlete, err := svc.DB.GetAthleteBySession(ctx, session)
	if err != nil {
		var notFound *shared.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}
	if !svc.Config.AllowedAthletes[athlete.ID] {
		return nil, ErrNotAuthenticated
	}
	return athlete, nil
}

// RequireAdmin restricts an operation to the owner athlete.
func RequireAdmin(athlete *types.Athlete, svc *bootstrap.Service) error {
	if athlete.ID != svc.Config.OwnerAthleteID {
		return ErrNotAuthenticated
	}
	return nil
}

// EventHandlerFunc consumes one delivered envelope batch.
type EventHandlerFunc func(ctx context.Context, envelopes []types.Envelope, fw *Context) error

// WrapEvents adapts an event consumer into a push endpoint. The transport
// retries on any non-2xx, so handler errors become a 500 on purpose.
func WrapEvents(operation string, svc *bootstrap.Service, handler EventHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := bootstrap.NewLogger(operation)

		if r.URL.Query().Get(EventAuthParam) != svc.Config.EventAuthToken {
			logger.Warn("Event push with bad auth token rejected")
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		var envelopes []types.Envelope
		if err := json.NewDecoder(r.Body).Decode(&envelopes); err != nil {
			logger.Warn("Undecodable event batch", "error", err)
			writeError(w, http.StatusBadRequest, "bad payload")
			return
		}

		fw := &Context{Service: svc, Logger: logger}
		if err := handler(r.Context(), envelopes, fw); err != nil {
			logger.Error("Event batch failed", "error", err, "envelopes", len(envelopes))
			sentryutil.CaptureException(err, map[string]interface{}{"operation": operation})
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
