// Package api exposes rules and transactions over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/spice-ledger/internal/apply"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/rules"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Store is the persistence the handlers need.
type Store interface {
	service.RuleStore
	service.TransactionStore
}

// Handler serves the HTTP API.
type Handler struct {
	store   Store
	applier *apply.Service
	matcher *rules.Matcher
}

// NewHandler creates a Handler. The matcher's location decides how date
// filters are read by the test endpoint.
func NewHandler(store Store, applier *apply.Service, matcher *rules.Matcher) *Handler {
	if matcher == nil {
		matcher = rules.NewMatcher(nil)
	}
	if applier == nil {
		applier = apply.NewService(store, apply.WithMatcher(matcher))
	}
	return &Handler{store: store, applier: applier, matcher: matcher}
}

// Router builds the chi router for h.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.listRules)
			r.Post("/", h.createRule)
			r.Post("/apply", h.applyRules)
			r.Post("/test", h.testRule)
			r.Get("/{ruleID}", h.getRule)
			r.Put("/{ruleID}", h.updateRule)
			r.Delete("/{ruleID}", h.deleteRule)
			r.Post("/{ruleID}/apply", h.applyRule)
		})

		r.Get("/transactions", h.listTransactions)
		r.Get("/transactions/{transactionID}", h.getTransaction)
		r.Get("/transactions/{transactionID}/applications", h.getApplications)
	})

	return r
}

// requestLogger attaches a request-scoped logger to the context and logs
// each completed request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		logger := slog.Default().With(
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path)
		ctx := common.WithLogger(r.Context(), logger)

		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.Info("Handled request",
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}

// Serve runs an HTTP server on addr until ctx is cancelled, then shuts it
// down, waiting up to shutdownTimeout for in-flight requests.
func Serve(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("Server stopped gracefully")
	return nil
}
