package loan

//go:generate mockgen -destination=mocks/mock_ports.go -package=mocks libraryloans/internal/loan Inventory,Ledger,Journal

import (
	"context"

	"libraryloans/internal/inventory"
	"libraryloans/internal/ledger"
	"libraryloans/internal/reconcile"
)

type Inventory interface {
	ReserveCopy(ctx context.Context, bookID string) (inventory.Book, error)
	ReleaseCopy(ctx context.Context, bookID string) (inventory.Book, error)
}

type Ledger interface {
	CreateActive(ctx context.Context, nt ledger.NewTransaction) (ledger.Transaction, error)
	MarkReturned(ctx context.Context, id string) (ledger.Transaction, error)
	Get(ctx context.Context, id string) (ledger.Transaction, error)
}

type Journal interface {
	Record(ctx context.Context, task reconcile.Task) (reconcile.Task, error)
}
