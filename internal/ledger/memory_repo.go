package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"libraryloans/internal/policy"

	"github.com/google/uuid"
)

// MemoryRepo is an in-process ledger. MarkReturned is a compare-and-set
// under the repo lock.
type MemoryRepo struct {
	mu     sync.RWMutex
	txs    map[string]Transaction
	policy policy.Policy
	now    func() time.Time
}

type MemoryOption func(*MemoryRepo)

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(r *MemoryRepo) { r.now = now }
}

func NewMemoryRepo(p policy.Policy, opts ...MemoryOption) *MemoryRepo {
	r := &MemoryRepo{
		txs:    make(map[string]Transaction),
		policy: p,
		now:    time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *MemoryRepo) CreateActive(ctx context.Context, nt NewTransaction) (Transaction, error) {
	if err := ctx.Err(); err != nil {
		return Transaction{}, err
	}
	if nt.BorrowedAt.IsZero() {
		nt.BorrowedAt = r.now()
	}
	if err := validateNew(nt, r.policy); err != nil {
		return Transaction{}, err
	}

	tx := Transaction{
		ID:         uuid.NewString(),
		BookID:     nt.BookID,
		PatronID:   nt.PatronID,
		BorrowedAt: nt.BorrowedAt,
		DueDate:    nt.DueDate,
		Status:     StatusActive,
	}

	r.mu.Lock()
	r.txs[tx.ID] = tx
	r.mu.Unlock()
	return tx, nil
}

func (r *MemoryRepo) MarkReturned(ctx context.Context, id string) (Transaction, error) {
	if err := ctx.Err(); err != nil {
		return Transaction{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.txs[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if tx.Status != StatusActive {
		return Transaction{}, ErrAlreadyReturned
	}
	now := r.now()
	tx.Status = StatusReturned
	tx.ReturnedAt = &now
	r.txs[id] = tx
	return tx, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Transaction, error) {
	if err := ctx.Err(); err != nil {
		return Transaction{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	tx, ok := r.txs[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return tx, nil
}

func (r *MemoryRepo) ListActiveForPatron(ctx context.Context, patronID string) ([]Transaction, error) {
	return r.listForPatron(ctx, patronID, true)
}

func (r *MemoryRepo) ListAllForPatron(ctx context.Context, patronID string) ([]Transaction, error) {
	return r.listForPatron(ctx, patronID, false)
}

func (r *MemoryRepo) listForPatron(ctx context.Context, patronID string, activeOnly bool) ([]Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var out []Transaction
	for _, tx := range r.txs {
		if tx.PatronID != patronID {
			continue
		}
		if activeOnly && !tx.Active() {
			continue
		}
		out = append(out, tx)
	}
	r.mu.RUnlock()

	// newest first, same as the postgres ordering
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BorrowedAt.Equal(out[j].BorrowedAt) {
			return out[i].BorrowedAt.After(out[j].BorrowedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepo) CountActiveForBook(ctx context.Context, bookID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, tx := range r.txs {
		if tx.BookID == bookID && tx.Active() {
			n++
		}
	}
	return n, nil
}
