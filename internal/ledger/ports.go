package ledger

import "context"

// Repository stores loan transactions. Records are never deleted.
type Repository interface {
	CreateActive(ctx context.Context, nt NewTransaction) (Transaction, error)
	// MarkReturned moves an ACTIVE transaction to RETURNED. Exactly one of
	// any number of concurrent callers succeeds; the rest get
	// ErrAlreadyReturned.
	MarkReturned(ctx context.Context, id string) (Transaction, error)
	Get(ctx context.Context, id string) (Transaction, error)
	ListActiveForPatron(ctx context.Context, patronID string) ([]Transaction, error)
	ListAllForPatron(ctx context.Context, patronID string) ([]Transaction, error)
	CountActiveForBook(ctx context.Context, bookID string) (int, error)
}
