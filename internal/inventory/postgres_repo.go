package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	tableBooks = "books"

	pgInvalidTextRepresentation = "22P02"
	pgCheckViolation            = "23514"
)

var bookColumns = []any{
	"id", "title", "author", "genre", "description",
	"total_copies", "available_copies", "created_at", "updated_at",
}

type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func scanBook(row pgx.Row) (Book, error) {
	var b Book
	err := row.Scan(
		&b.ID, &b.Title, &b.Author, &b.Genre, &b.Description,
		&b.TotalCopies, &b.AvailableCopies, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

// mapError turns driver errors into package errors. An id that is not a
// valid uuid cannot name a book, so it is reported as not found.
func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgInvalidTextRepresentation:
			return ErrNotFound
		case pgCheckViolation:
			return fmt.Errorf("%w: %s", ErrInvalidBook, pgErr.ConstraintName)
		}
	}
	return err
}

// ReserveCopy decrements available_copies in a single guarded UPDATE so two
// borrowers can never both take the last copy.
func (r *PostgresRepo) ReserveCopy(ctx context.Context, bookID string) (Book, error) {
	const query = `
		UPDATE books
		SET available_copies = available_copies - 1, updated_at = NOW()
		WHERE id = $1 AND available_copies > 0
		RETURNING id, title, author, genre, description,
		          total_copies, available_copies, created_at, updated_at
	`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	b, err := scanBook(r.db.QueryRow(timeoutCtx, query, bookID))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Book{}, mapError(err)
	}
	exists, err := r.exists(timeoutCtx, bookID)
	if err != nil {
		return Book{}, err
	}
	if !exists {
		return Book{}, ErrNotFound
	}
	return Book{}, ErrOutOfStock
}

// ReleaseCopy increments available_copies, refusing to go above total_copies.
func (r *PostgresRepo) ReleaseCopy(ctx context.Context, bookID string) (Book, error) {
	const query = `
		UPDATE books
		SET available_copies = available_copies + 1, updated_at = NOW()
		WHERE id = $1 AND available_copies < total_copies
		RETURNING id, title, author, genre, description,
		          total_copies, available_copies, created_at, updated_at
	`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	b, err := scanBook(r.db.QueryRow(timeoutCtx, query, bookID))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Book{}, mapError(err)
	}
	exists, err := r.exists(timeoutCtx, bookID)
	if err != nil {
		return Book{}, err
	}
	if !exists {
		return Book{}, ErrNotFound
	}
	log.Printf("level=error msg=\"release overflow\" book_id=%s", bookID)
	return Book{}, ErrReleaseOverflow
}

func (r *PostgresRepo) exists(ctx context.Context, bookID string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM books WHERE id = $1)`, bookID).Scan(&ok)
	if err != nil {
		if errors.Is(mapError(err), ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

func (r *PostgresRepo) Get(ctx context.Context, bookID string) (Book, error) {
	const query = `
		SELECT id, title, author, genre, description,
		       total_copies, available_copies, created_at, updated_at
		FROM books
		WHERE id = $1
	`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	b, err := scanBook(r.db.QueryRow(timeoutCtx, query, bookID))
	if err != nil {
		return Book{}, mapError(err)
	}
	return b, nil
}

func (r *PostgresRepo) buildListQueries(f Filter) (countSQL string, countArgs []any, dataSQL string, dataArgs []any, err error) {
	ds := goqu.Dialect("postgres").From(tableBooks).Prepared(true)

	if f.Genre != "" {
		ds = ds.Where(goqu.C("genre").Eq(f.Genre))
	}
	if f.AvailableOnly {
		ds = ds.Where(goqu.C("available_copies").Gt(0))
	}
	if f.Q != "" {
		pattern := "%" + f.Q + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("title").ILike(pattern),
			goqu.C("author").ILike(pattern),
			goqu.C("genre").ILike(pattern),
		))
	}

	countSQL, countArgs, err = ds.Select(goqu.COUNT(goqu.Star())).ToSQL()
	if err != nil {
		return "", nil, "", nil, fmt.Errorf("build count query: %w", err)
	}

	page := ds.Select(bookColumns...).Order(goqu.I("title").Asc(), goqu.I("id").Asc())
	if f.Limit > 0 {
		page = page.Limit(uint(f.Limit))
	}
	if f.Offset > 0 {
		page = page.Offset(uint(f.Offset))
	}
	dataSQL, dataArgs, err = page.ToSQL()
	if err != nil {
		return "", nil, "", nil, fmt.Errorf("build list query: %w", err)
	}
	return countSQL, countArgs, dataSQL, dataArgs, nil
}

func (r *PostgresRepo) List(ctx context.Context, f Filter) ([]Book, int, error) {
	countSQL, countArgs, dataSQL, dataArgs, err := r.buildListQueries(f)
	if err != nil {
		return nil, 0, err
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	var total int
	if err := r.db.QueryRow(timeoutCtx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(timeoutCtx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

// Upsert creates a book with every copy on the shelf, or updates its details.
// On update a change of total_copies shifts available_copies by the same
// amount so copies on loan stay accounted for; the CHECK constraints reject
// a total below the number currently on loan.
func (r *PostgresRepo) Upsert(ctx context.Context, book *Book) error {
	if book.TotalCopies < 0 {
		return fmt.Errorf("%w: negative total_copies", ErrInvalidBook)
	}
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	if book.ID == "" {
		const insert = `
			INSERT INTO books (title, author, genre, description, total_copies, available_copies, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5, NOW(), NOW())
			RETURNING id, title, author, genre, description,
			          total_copies, available_copies, created_at, updated_at
		`
		b, err := scanBook(r.db.QueryRow(timeoutCtx, insert,
			book.Title, book.Author, book.Genre, book.Description, book.TotalCopies))
		if err != nil {
			return mapError(err)
		}
		*book = b
		return nil
	}

	const upsert = `
		INSERT INTO books (id, title, author, genre, description, total_copies, available_copies, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			author = EXCLUDED.author,
			genre = EXCLUDED.genre,
			description = EXCLUDED.description,
			available_copies = books.available_copies + (EXCLUDED.total_copies - books.total_copies),
			total_copies = EXCLUDED.total_copies,
			updated_at = NOW()
		RETURNING id, title, author, genre, description,
		          total_copies, available_copies, created_at, updated_at
	`
	b, err := scanBook(r.db.QueryRow(timeoutCtx, upsert,
		book.ID, book.Title, book.Author, book.Genre, book.Description, book.TotalCopies))
	if err != nil {
		return mapError(err)
	}
	*book = b
	return nil
}
