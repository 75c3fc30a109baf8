package reconcile

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTaskNotFound = errors.New("reconciliation task not found")
	// ErrInvariantViolated is returned by Checker.Check when a book's
	// on-loan count differs from its number of active transactions.
	ErrInvariantViolated = errors.New("inventory and ledger disagree")
)

// Reason says which engine step left a copy unreleased.
type Reason string

const (
	// ReasonBorrowCompensation: a copy was reserved but the transaction
	// was never recorded.
	ReasonBorrowCompensation Reason = "borrow_compensation"
	// ReasonReturnRelease: the transaction was returned but its copy was
	// not put back.
	ReasonReturnRelease Reason = "return_release"
)

// Task is a copy release that still has to be applied to the inventory.
type Task struct {
	ID            string     `json:"id"`
	BookID        string     `json:"book_id"`
	TransactionID string     `json:"transaction_id,omitempty"`
	Reason        Reason     `json:"reason"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// Journal durably stores release tasks until they are resolved.
type Journal interface {
	Record(ctx context.Context, task Task) (Task, error)
	Pending(ctx context.Context, limit int) ([]Task, error)
	MarkAttempt(ctx context.Context, id string, attemptErr error) error
	Resolve(ctx context.Context, id string) error
}
