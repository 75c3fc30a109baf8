package main

import (
	"context"
	"net/http"
	"time"

	"libraryloans/internal/httpx"
	"libraryloans/internal/inventory"
	"libraryloans/internal/loan"
	"libraryloans/internal/query"
	"libraryloans/internal/reconcile"

	"github.com/go-chi/chi/v5"
)

type routerDeps struct {
	jwtSecret      string
	corsOrigins    []string
	maxBodyBytes   int64
	enableHSTS     bool
	rateLimiter    *httpx.RateLimitMiddleware
	loans          *loan.HTTPHandler
	queries        *query.HTTPHandler
	books          *inventory.HTTPHandler
	reconciliation *reconcile.HTTPHandler
	// ready reports whether the stores can serve traffic.
	ready func(ctx context.Context) error
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(httpx.RequestIDMiddleware)
	r.Use(httpx.AccessLogMiddleware)
	r.Use(httpx.RecoveryMiddleware)
	r.Use(httpx.SecurityHeadersMiddleware(d.enableHSTS))
	r.Use(httpx.CORSMiddleware(d.corsOrigins))
	r.Use(httpx.RequestSizeLimitMiddleware(d.maxBodyBytes))
	if d.rateLimiter != nil {
		r.Use(d.rateLimiter.Middleware)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.JSONError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := d.ready(ctx); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Get("/catalog", d.queries.Catalog)

	r.Route("/loans", func(r chi.Router) {
		r.Use(httpx.AuthMiddleware(d.jwtSecret))
		r.Get("/", d.queries.Loans)
		r.Post("/", d.loans.Borrow)
		r.Post("/{id}/return", d.loans.Return)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(httpx.AuthMiddleware(d.jwtSecret))
		r.Use(httpx.RequireAdmin)
		r.Post("/books", d.books.Create)
		r.Put("/books/{bookID}", d.books.Update)
		r.Get("/books/{bookID}/consistency", d.reconciliation.Consistency)
		r.Get("/reconcile/tasks", d.reconciliation.PendingTasks)
	})

	return r
}
