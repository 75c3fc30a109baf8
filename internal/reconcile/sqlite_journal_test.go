package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := OpenSQLiteJournal(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestSQLiteJournal_Lifecycle(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return clock }

	first, err := j.Record(ctx, Task{BookID: "b1", TransactionID: "t1", Reason: ReasonReturnRelease, LastError: "timeout"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	clock = clock.Add(time.Second)
	second, err := j.Record(ctx, Task{BookID: "b2", Reason: ReasonBorrowCompensation})
	require.NoError(t, err)

	pending, err := j.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID, "oldest first")
	assert.Equal(t, "t1", pending[0].TransactionID)
	assert.Equal(t, ReasonReturnRelease, pending[0].Reason)
	assert.Equal(t, "timeout", pending[0].LastError)

	require.NoError(t, j.MarkAttempt(ctx, first.ID, errors.New("still down")))
	pending, err = j.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "still down", pending[0].LastError)

	require.NoError(t, j.Resolve(ctx, first.ID))
	pending, err = j.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	assert.ErrorIs(t, j.Resolve(ctx, first.ID), ErrTaskNotFound)
	assert.ErrorIs(t, j.MarkAttempt(ctx, "missing", nil), ErrTaskNotFound)
}

func TestSQLiteJournal_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := OpenSQLiteJournal(ctx, path)
	require.NoError(t, err)
	_, err = j.Record(ctx, Task{BookID: "b1", Reason: ReasonReturnRelease})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = OpenSQLiteJournal(ctx, path)
	require.NoError(t, err)
	defer j.Close()

	pending, err := j.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestSQLiteJournal_InMemory(t *testing.T) {
	ctx := context.Background()
	j, err := OpenSQLiteJournal(ctx, ":memory:")
	require.NoError(t, err)
	defer j.Close()

	_, err = j.Record(ctx, Task{BookID: "b1", Reason: ReasonBorrowCompensation})
	require.NoError(t, err)

	pending, err := j.Pending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestSQLiteJournal_RecordValidation(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	_, err := j.Record(ctx, Task{Reason: ReasonReturnRelease})
	assert.Error(t, err)

	_, err = j.Record(ctx, Task{BookID: "b1", Reason: "lost"})
	assert.Error(t, err)

	_, err = j.Pending(ctx, 0)
	assert.Error(t, err)

	_, err = OpenSQLiteJournal(ctx, "  ")
	assert.Error(t, err)
}
