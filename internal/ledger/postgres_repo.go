package ledger

import (
	"context"
	"errors"
	"time"

	"libraryloans/internal/policy"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgInvalidTextRepresentation = "22P02"
	pgForeignKeyViolation       = "23503"
	pgCheckViolation            = "23514"
)

type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
	policy  policy.Policy
	now     func() time.Time
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration, p policy.Policy) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout, policy: p, now: time.Now}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

const txColumns = `id, book_id, patron_id, borrowed_at, due_date, returned_at, status`

func scanTx(row pgx.Row) (Transaction, error) {
	var t Transaction
	var status string
	err := row.Scan(&t.ID, &t.BookID, &t.PatronID, &t.BorrowedAt, &t.DueDate, &t.ReturnedAt, &status)
	t.Status = Status(status)
	return t, err
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgInvalidTextRepresentation:
			return ErrNotFound
		case pgCheckViolation, pgForeignKeyViolation:
			return errors.Join(ErrConstraint, err)
		}
	}
	return err
}

func (r *PostgresRepo) CreateActive(ctx context.Context, nt NewTransaction) (Transaction, error) {
	if nt.BorrowedAt.IsZero() {
		nt.BorrowedAt = r.now()
	}
	if err := validateNew(nt, r.policy); err != nil {
		return Transaction{}, err
	}

	const query = `
		INSERT INTO loan_transactions (book_id, patron_id, borrowed_at, due_date, status)
		VALUES ($1, $2, $3, $4, 'ACTIVE')
		RETURNING ` + txColumns

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := scanTx(r.db.QueryRow(timeoutCtx, query, nt.BookID, nt.PatronID, nt.BorrowedAt.UTC(), nt.DueDate.UTC()))
	if err != nil {
		return Transaction{}, mapError(err)
	}
	return tx, nil
}

// MarkReturned relies on the status guard in the WHERE clause: of two
// concurrent returns only one UPDATE matches a row.
func (r *PostgresRepo) MarkReturned(ctx context.Context, id string) (Transaction, error) {
	const query = `
		UPDATE loan_transactions
		SET status = 'RETURNED', returned_at = $2
		WHERE id = $1 AND status = 'ACTIVE'
		RETURNING ` + txColumns

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := scanTx(r.db.QueryRow(timeoutCtx, query, id, r.now().UTC()))
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, mapError(err)
	}

	if _, err := r.Get(ctx, id); err != nil {
		return Transaction{}, err
	}
	return Transaction{}, ErrAlreadyReturned
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM loan_transactions WHERE id = $1`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := scanTx(r.db.QueryRow(timeoutCtx, query, id))
	if err != nil {
		return Transaction{}, mapError(err)
	}
	return tx, nil
}

func (r *PostgresRepo) ListActiveForPatron(ctx context.Context, patronID string) ([]Transaction, error) {
	query := `SELECT ` + txColumns + `
		FROM loan_transactions
		WHERE patron_id = $1 AND status = 'ACTIVE'
		ORDER BY borrowed_at DESC, id`
	return r.list(ctx, query, patronID)
}

func (r *PostgresRepo) ListAllForPatron(ctx context.Context, patronID string) ([]Transaction, error) {
	query := `SELECT ` + txColumns + `
		FROM loan_transactions
		WHERE patron_id = $1
		ORDER BY borrowed_at DESC, id`
	return r.list(ctx, query, patronID)
}

func (r *PostgresRepo) list(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(timeoutCtx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CountActiveForBook(ctx context.Context, bookID string) (int, error) {
	const query = `SELECT COUNT(*) FROM loan_transactions WHERE book_id = $1 AND status = 'ACTIVE'`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	var n int
	if err := r.db.QueryRow(timeoutCtx, query, bookID).Scan(&n); err != nil {
		if errors.Is(mapError(err), ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}
