package reconcile

import (
	"context"
	"fmt"

	"libraryloans/internal/inventory"
)

type BookGetter interface {
	Get(ctx context.Context, bookID string) (inventory.Book, error)
}

type ActiveCounter interface {
	CountActiveForBook(ctx context.Context, bookID string) (int, error)
}

// Report is the outcome of one consistency check.
type Report struct {
	BookID          string `json:"book_id"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
	OnLoan          int    `json:"on_loan"`
	ActiveLoans     int    `json:"active_loans"`
	Consistent      bool   `json:"consistent"`
}

// Checker compares a book's on-loan count with the ledger.
type Checker struct {
	books  BookGetter
	ledger ActiveCounter
}

func NewChecker(books BookGetter, ledger ActiveCounter) *Checker {
	return &Checker{books: books, ledger: ledger}
}

// Check returns the report and, when the counts disagree, an error
// wrapping ErrInvariantViolated. The two reads are not atomic, so a check
// racing a borrow or return may report a transient mismatch.
func (c *Checker) Check(ctx context.Context, bookID string) (Report, error) {
	b, err := c.books.Get(ctx, bookID)
	if err != nil {
		return Report{}, err
	}
	active, err := c.ledger.CountActiveForBook(ctx, bookID)
	if err != nil {
		return Report{}, err
	}

	r := Report{
		BookID:          b.ID,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		OnLoan:          b.OnLoan(),
		ActiveLoans:     active,
	}
	r.Consistent = r.OnLoan == r.ActiveLoans
	if !r.Consistent {
		return r, fmt.Errorf("%w: book %s has %d on loan but %d active transactions",
			ErrInvariantViolated, bookID, r.OnLoan, r.ActiveLoans)
	}
	return r, nil
}
