package inventory

import (
	"context"
)

// Store is the system of record for copy counts. ReserveCopy and ReleaseCopy
// must be atomic per book id and must not serialize unrelated books.
type Store interface {
	ReserveCopy(ctx context.Context, bookID string) (Book, error)
	ReleaseCopy(ctx context.Context, bookID string) (Book, error)
	Get(ctx context.Context, bookID string) (Book, error)
	List(ctx context.Context, f Filter) ([]Book, int, error)
	Upsert(ctx context.Context, book *Book) error
}
