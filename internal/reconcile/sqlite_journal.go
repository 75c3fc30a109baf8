package reconcile

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const memoryPath = ":memory:"

// SQLiteJournal keeps reconciliation tasks in a local SQLite file so they
// survive restarts even when the primary store is the one failing.
type SQLiteJournal struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteJournal opens (creating if needed) the journal at path and
// applies its migrations. ":memory:" gives a private in-memory journal.
func OpenSQLiteJournal(ctx context.Context, path string) (*SQLiteJournal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	dsn := memoryPath
	if path != memoryPath {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite journal: %w", err)
	}
	if path == memoryPath {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite journal: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteJournal{db: db, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("journal migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("journal migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply journal migrations: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Ping reports whether the journal is usable.
func (j *SQLiteJournal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

func (j *SQLiteJournal) Record(ctx context.Context, task Task) (Task, error) {
	task.BookID = strings.TrimSpace(task.BookID)
	if task.BookID == "" {
		return Task{}, fmt.Errorf("book id is required")
	}
	switch task.Reason {
	case ReasonBorrowCompensation, ReasonReturnRelease:
	default:
		return Task{}, fmt.Errorf("unknown reason %q", task.Reason)
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := j.now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	task.ResolvedAt = nil

	_, err := j.db.ExecContext(ctx, `
INSERT INTO reconciliation_tasks (
	id,
	book_id,
	transaction_id,
	reason,
	attempts,
	last_error,
	created_at,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		task.ID,
		task.BookID,
		task.TransactionID,
		string(task.Reason),
		task.Attempts,
		task.LastError,
		task.CreatedAt.UnixMilli(),
		task.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return Task{}, fmt.Errorf("record task: %w", err)
	}
	return task, nil
}

// Pending lists unresolved tasks, oldest first.
func (j *SQLiteJournal) Pending(ctx context.Context, limit int) ([]Task, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT
	id,
	book_id,
	transaction_id,
	reason,
	attempts,
	last_error,
	created_at,
	updated_at
FROM reconciliation_tasks
WHERE resolved_at IS NULL
ORDER BY created_at ASC, id ASC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]Task, 0, limit)
	for rows.Next() {
		var (
			t                    Task
			reason               string
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&t.ID, &t.BookID, &t.TransactionID, &reason, &t.Attempts, &t.LastError, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Reason = Reason(reason)
		t.CreatedAt = time.UnixMilli(createdAt).UTC()
		t.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func (j *SQLiteJournal) MarkAttempt(ctx context.Context, id string, attemptErr error) error {
	msg := ""
	if attemptErr != nil {
		msg = attemptErr.Error()
	}
	res, err := j.db.ExecContext(ctx, `
UPDATE reconciliation_tasks
SET attempts = attempts + 1, last_error = ?, updated_at = ?
WHERE id = ? AND resolved_at IS NULL
`, msg, j.now().UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("mark attempt: %w", err)
	}
	return requireOneRow(res)
}

func (j *SQLiteJournal) Resolve(ctx context.Context, id string) error {
	now := j.now().UTC().UnixMilli()
	res, err := j.db.ExecContext(ctx, `
UPDATE reconciliation_tasks
SET resolved_at = ?, updated_at = ?
WHERE id = ? AND resolved_at IS NULL
`, now, now, id)
	if err != nil {
		return fmt.Errorf("resolve task: %w", err)
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

