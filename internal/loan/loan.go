package loan

import (
	"errors"
	"time"
)

var (
	// ErrInvalidDueDate wraps a *policy.RejectedError.
	ErrInvalidDueDate      = errors.New("invalid due date")
	ErrNoCopiesAvailable   = errors.New("no copies available")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrNotAuthorized       = errors.New("not authorized")
	ErrAlreadyReturned     = errors.New("transaction already returned")
	ErrBookNotFound        = errors.New("book not found")
	ErrInvalidRequest      = errors.New("invalid request")
	// ErrStoreUnavailable marks infrastructure failures. Callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Requester is the authenticated caller.
type Requester struct {
	ID    string
	Admin bool
}

// CanActFor reports whether the requester may act on patronID's loans.
func (r Requester) CanActFor(patronID string) bool {
	return r.Admin || (r.ID != "" && r.ID == patronID)
}

type BorrowRequest struct {
	BookID   string
	PatronID string
	DueDate  time.Time
	// DateOnly means only DueDate's calendar day is meaningful; the engine
	// places it at the borrow instant's time of day.
	DateOnly  bool
	Requester Requester
}

type ReturnRequest struct {
	TransactionID string
	Requester     Requester
}
