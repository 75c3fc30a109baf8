// Package query serves the read side: the catalog with live availability
// and a patron's loans. It holds no state of its own.
package query

import (
	"context"
	"errors"

	"libraryloans/internal/inventory"
	"libraryloans/internal/ledger"
)

var (
	// ErrInconsistentBook is returned when a stored book violates
	// 0 <= available <= total.
	ErrInconsistentBook = errors.New("inconsistent book record")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// CatalogFilter narrows the catalog view. Limit <= 0 means the store default.
type CatalogFilter struct {
	Genre         string
	AvailableOnly bool
	Q             string
	Limit         int
	Offset        int
}

// LoanView is a transaction joined with its book.
type LoanView struct {
	ledger.Transaction
	BookTitle  string `json:"book_title"`
	BookAuthor string `json:"book_author"`
	Overdue    bool   `json:"is_overdue"`
}

type BookReader interface {
	Get(ctx context.Context, bookID string) (inventory.Book, error)
	List(ctx context.Context, f inventory.Filter) ([]inventory.Book, int, error)
}

type LoanReader interface {
	ListActiveForPatron(ctx context.Context, patronID string) ([]ledger.Transaction, error)
	ListAllForPatron(ctx context.Context, patronID string) ([]ledger.Transaction, error)
}
