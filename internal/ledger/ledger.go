package ledger

import (
	"errors"
	"fmt"
	"time"

	"libraryloans/internal/policy"
)

var (
	ErrNotFound        = errors.New("transaction not found")
	ErrAlreadyReturned = errors.New("transaction already returned")
	// ErrConstraint is returned when a new transaction breaks a record
	// constraint: empty ids or a due date outside the borrowing window.
	ErrConstraint = errors.New("transaction constraint violated")
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusReturned Status = "RETURNED"
)

// Transaction is one loan of one copy. ReturnedAt is set iff Status is
// StatusReturned, and a returned transaction never changes again.
type Transaction struct {
	ID         string     `json:"id"`
	BookID     string     `json:"book_id"`
	PatronID   string     `json:"patron_id"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueDate    time.Time  `json:"due_date"`
	ReturnedAt *time.Time `json:"returned_at"`
	Status     Status     `json:"status"`
}

func (t Transaction) Active() bool {
	return t.Status == StatusActive
}

// IsOverdue is only ever true for a loan that still holds a copy.
func (t Transaction) IsOverdue(now time.Time) bool {
	return t.Active() && policy.IsOverdue(t.DueDate, now)
}

// NewTransaction is the input to CreateActive. A zero BorrowedAt means
// "now" according to the ledger's clock.
type NewTransaction struct {
	BookID     string
	PatronID   string
	BorrowedAt time.Time
	DueDate    time.Time
}

func validateNew(nt NewTransaction, p policy.Policy) error {
	if nt.BookID == "" {
		return fmt.Errorf("%w: book id is required", ErrConstraint)
	}
	if nt.PatronID == "" {
		return fmt.Errorf("%w: patron id is required", ErrConstraint)
	}
	if err := p.ValidateDueDate(nt.DueDate, nt.BorrowedAt); err != nil {
		return fmt.Errorf("%w: %w", ErrConstraint, err)
	}
	return nil
}
