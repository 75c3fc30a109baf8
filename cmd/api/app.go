package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"libraryloans/internal/httpx"
	"libraryloans/internal/inventory"
	"libraryloans/internal/ledger"
	"libraryloans/internal/loan"
	"libraryloans/internal/platform/config"
	"libraryloans/internal/platform/database"
	"libraryloans/internal/policy"
	"libraryloans/internal/query"
	"libraryloans/internal/reconcile"
)

// stores is the pair of systems of record plus the ledger read side.
type stores struct {
	inventory inventory.Store
	ledger    ledger.Repository
	ping      func(ctx context.Context) error
	close     func()
}

type application struct {
	handler     http.Handler
	worker      *reconcile.Worker
	rateLimiter *httpx.RateLimitMiddleware
	closers     []func()
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func openStores(ctx context.Context, cfg config.Config, p policy.Policy) (stores, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		inv, err := inventory.NewMemoryStore()
		if err != nil {
			return stores{}, err
		}
		log.Printf("level=warn msg=\"using in-memory stores, data is lost on exit\"")
		return stores{
			inventory: inv,
			ledger:    ledger.NewMemoryRepo(p),
			ping:      func(context.Context) error { return nil },
			close:     func() {},
		}, nil
	case config.DriverPostgres:
		pool, err := database.Open(ctx, cfg.DSN)
		if err != nil {
			return stores{}, err
		}
		log.Printf("level=info msg=\"database connection OK\" dsn=%s", database.RedactDSN(cfg.DSN))
		return stores{
			inventory: inventory.NewPostgresRepo(pool, cfg.DBTimeout),
			ledger:    ledger.NewPostgresRepo(pool, cfg.DBTimeout, p),
			ping:      pool.Ping,
			close:     pool.Close,
		}, nil
	default:
		return stores{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func openJournal(ctx context.Context, path string) (*reconcile.SQLiteJournal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	return reconcile.OpenSQLiteJournal(ctx, path)
}

func buildApp(ctx context.Context, cfg config.Config) (*application, error) {
	p := policy.FromDays(cfg.LoanMaxDays)

	st, err := openStores(ctx, cfg, p)
	if err != nil {
		return nil, err
	}
	app := &application{closers: []func(){st.close}}

	journal, err := openJournal(ctx, cfg.ReconcileDBPath)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.closers = append(app.closers, func() {
		if err := journal.Close(); err != nil {
			log.Printf("level=error msg=\"close journal\" err=%v", err)
		}
	})

	engine := loan.NewEngine(st.inventory, st.ledger,
		loan.WithPolicy(p),
		loan.WithJournal(journal),
		loan.WithCompensation(cfg.CompensationMaxTries, nil),
	)
	app.worker = reconcile.NewWorker(journal, st.inventory)
	app.rateLimiter = httpx.NewRateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst)

	app.handler = newRouter(routerDeps{
		jwtSecret:      cfg.JWTSecret,
		corsOrigins:    cfg.CORSAllowedOrigins,
		maxBodyBytes:   cfg.MaxBodyBytes,
		enableHSTS:     cfg.EnableHSTS,
		rateLimiter:    app.rateLimiter,
		loans:          loan.NewHTTPHandler(engine),
		queries:        query.NewHTTPHandler(query.NewService(st.inventory, st.ledger)),
		books:          inventory.NewHTTPHandler(st.inventory),
		reconciliation: reconcile.NewHTTPHandler(reconcile.NewChecker(st.inventory, st.ledger), journal),
		ready: func(ctx context.Context) error {
			return errors.Join(st.ping(ctx), journal.Ping(ctx))
		},
	})
	return app, nil
}
