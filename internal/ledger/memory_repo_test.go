package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"libraryloans/internal/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newRepo() *MemoryRepo {
	return NewMemoryRepo(policy.New(policy.DefaultMaxWindow), WithMemoryClock(func() time.Time { return fixedNow }))
}

func TestMemoryRepo_CreateActive(t *testing.T) {
	ctx := context.Background()

	t.Run("stores an active transaction", func(t *testing.T) {
		r := newRepo()
		tx, err := r.CreateActive(ctx, NewTransaction{
			BookID:     "b1",
			PatronID:   "p1",
			BorrowedAt: fixedNow,
			DueDate:    fixedNow.Add(72 * time.Hour),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, tx.ID)
		assert.Equal(t, StatusActive, tx.Status)
		assert.Nil(t, tx.ReturnedAt)

		got, err := r.Get(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, tx, got)
	})

	t.Run("zero borrowed_at uses the ledger clock", func(t *testing.T) {
		r := newRepo()
		tx, err := r.CreateActive(ctx, NewTransaction{BookID: "b1", PatronID: "p1", DueDate: fixedNow})
		require.NoError(t, err)
		assert.Equal(t, fixedNow, tx.BorrowedAt)
	})

	tests := []struct {
		name string
		nt   NewTransaction
	}{
		{name: "missing book", nt: NewTransaction{PatronID: "p1", BorrowedAt: fixedNow, DueDate: fixedNow}},
		{name: "missing patron", nt: NewTransaction{BookID: "b1", BorrowedAt: fixedNow, DueDate: fixedNow}},
		{name: "due before borrow", nt: NewTransaction{BookID: "b1", PatronID: "p1", BorrowedAt: fixedNow, DueDate: fixedNow.Add(-time.Second)}},
		{name: "due beyond window", nt: NewTransaction{BookID: "b1", PatronID: "p1", BorrowedAt: fixedNow, DueDate: fixedNow.Add(policy.DefaultMaxWindow + time.Second)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newRepo().CreateActive(ctx, tt.nt)
			assert.ErrorIs(t, err, ErrConstraint)
		})
	}
}

func TestMemoryRepo_MarkReturned(t *testing.T) {
	ctx := context.Background()
	r := newRepo()
	tx, err := r.CreateActive(ctx, NewTransaction{BookID: "b1", PatronID: "p1", BorrowedAt: fixedNow, DueDate: fixedNow})
	require.NoError(t, err)

	returned, err := r.MarkReturned(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)
	assert.Equal(t, fixedNow, *returned.ReturnedAt)

	_, err = r.MarkReturned(ctx, tx.ID)
	assert.ErrorIs(t, err, ErrAlreadyReturned)

	got, err := r.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, returned, got, "a returned transaction must not change again")

	_, err = r.MarkReturned(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepo_ConcurrentReturnHasOneWinner(t *testing.T) {
	ctx := context.Background()
	r := newRepo()
	tx, err := r.CreateActive(ctx, NewTransaction{BookID: "b1", PatronID: "p1", BorrowedAt: fixedNow, DueDate: fixedNow})
	require.NoError(t, err)

	const callers = 20
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.MarkReturned(ctx, tx.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, already int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyReturned):
			already++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, already)
}

func TestMemoryRepo_Listing(t *testing.T) {
	ctx := context.Background()
	r := newRepo()

	older, err := r.CreateActive(ctx, NewTransaction{BookID: "b1", PatronID: "p1", BorrowedAt: fixedNow.Add(-time.Hour), DueDate: fixedNow})
	require.NoError(t, err)
	newer, err := r.CreateActive(ctx, NewTransaction{BookID: "b2", PatronID: "p1", BorrowedAt: fixedNow, DueDate: fixedNow})
	require.NoError(t, err)
	_, err = r.CreateActive(ctx, NewTransaction{BookID: "b1", PatronID: "p2", BorrowedAt: fixedNow, DueDate: fixedNow})
	require.NoError(t, err)

	_, err = r.MarkReturned(ctx, older.ID)
	require.NoError(t, err)

	all, err := r.ListAllForPatron(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)
	assert.Equal(t, older.ID, all[1].ID)

	active, err := r.ListActiveForPatron(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, newer.ID, active[0].ID)

	n, err := r.CountActiveForBook(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	none, err := r.ListAllForPatron(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTransaction_IsOverdue(t *testing.T) {
	due := fixedNow
	active := Transaction{Status: StatusActive, DueDate: due}
	returnedAt := fixedNow.Add(48 * time.Hour)
	returned := Transaction{Status: StatusReturned, DueDate: due, ReturnedAt: &returnedAt}

	assert.False(t, active.IsOverdue(due))
	assert.True(t, active.IsOverdue(due.Add(time.Second)))
	assert.False(t, returned.IsOverdue(due.Add(72*time.Hour)))
}
