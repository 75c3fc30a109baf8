package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"libraryloans/internal/platform/config"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer app.Close()

	go app.worker.Run(ctx, cfg.ReconcileInterval)
	go app.rateLimiter.RunCleanup(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      app.handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("level=info msg=\"starting server\" addr=%s driver=%s loan_max_days=%d", cfg.Addr, cfg.StoreDriver, cfg.LoanMaxDays)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("level=error msg=\"server error\" err=%v", err)
		}
	case <-ctx.Done():
		log.Printf("level=info msg=\"shutting down\"")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=error msg=\"graceful shutdown failed\" err=%v", err)
	}
}
