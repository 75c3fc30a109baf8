package loan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"libraryloans/internal/inventory"
	"libraryloans/internal/ledger"
	"libraryloans/internal/policy"
	"libraryloans/internal/reconcile"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultCompensationTries   = 5
	defaultCompensationTimeout = 10 * time.Second
)

// Engine runs borrow and return as two-step sagas over the inventory and
// the ledger. Each step is atomic on its own; a failed second step is
// undone by releasing the reserved copy.
type Engine struct {
	inventory Inventory
	ledger    Ledger
	journal   Journal
	policy    policy.Policy
	now       func() time.Time

	compensationTries   uint
	compensationTimeout time.Duration
	newBackOff          func() backoff.BackOff
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithPolicy(p policy.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithJournal sets where releases that could not be applied are recorded.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithCompensation bounds the release retries. newBackOff is called once
// per compensation; nil keeps the exponential default.
func WithCompensation(maxTries uint, newBackOff func() backoff.BackOff) Option {
	return func(e *Engine) {
		if maxTries > 0 {
			e.compensationTries = maxTries
		}
		if newBackOff != nil {
			e.newBackOff = newBackOff
		}
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

func NewEngine(inv Inventory, led Ledger, opts ...Option) *Engine {
	e := &Engine{
		inventory:           inv,
		ledger:              led,
		policy:              policy.New(policy.DefaultMaxWindow),
		now:                 time.Now,
		compensationTries:   defaultCompensationTries,
		compensationTimeout: defaultCompensationTimeout,
		newBackOff:          defaultBackOff,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Policy() policy.Policy {
	return e.policy
}

// Borrow reserves one copy of the book and records an ACTIVE transaction.
func (e *Engine) Borrow(ctx context.Context, req BorrowRequest) (ledger.Transaction, error) {
	if req.BookID == "" || req.PatronID == "" {
		return ledger.Transaction{}, fmt.Errorf("%w: book and patron are required", ErrInvalidRequest)
	}
	if !req.Requester.CanActFor(req.PatronID) {
		return ledger.Transaction{}, ErrNotAuthorized
	}

	now := e.now()
	due := req.DueDate
	if req.DateOnly {
		due = policy.OnDay(req.DueDate, now)
	}
	if err := e.policy.ValidateDueDate(due, now); err != nil {
		return ledger.Transaction{}, fmt.Errorf("%w: %w", ErrInvalidDueDate, err)
	}

	if _, err := e.inventory.ReserveCopy(ctx, req.BookID); err != nil {
		switch {
		case errors.Is(err, inventory.ErrOutOfStock):
			log.Printf("level=info msg=\"borrow refused\" reason=no_copies book_id=%s patron_id=%s", req.BookID, req.PatronID)
			return ledger.Transaction{}, ErrNoCopiesAvailable
		case errors.Is(err, inventory.ErrNotFound):
			return ledger.Transaction{}, ErrBookNotFound
		default:
			return ledger.Transaction{}, fmt.Errorf("%w: reserve copy: %w", ErrStoreUnavailable, err)
		}
	}

	tx, err := e.ledger.CreateActive(ctx, ledger.NewTransaction{
		BookID:     req.BookID,
		PatronID:   req.PatronID,
		BorrowedAt: now,
		DueDate:    due,
	})
	if err != nil {
		log.Printf("level=warn msg=\"ledger write failed, releasing copy\" book_id=%s patron_id=%s err=%v", req.BookID, req.PatronID, err)
		e.releaseCopy(ctx, req.BookID, "", reconcile.ReasonBorrowCompensation)

		if errors.Is(err, ledger.ErrConstraint) {
			return ledger.Transaction{}, fmt.Errorf("%w: %w", ErrInvalidDueDate, err)
		}
		return ledger.Transaction{}, fmt.Errorf("%w: create transaction: %w", ErrStoreUnavailable, err)
	}

	log.Printf("level=info msg=\"borrowed\" transaction_id=%s book_id=%s patron_id=%s due_date=%s",
		tx.ID, tx.BookID, tx.PatronID, tx.DueDate.UTC().Format(time.RFC3339))
	return tx, nil
}

// Return marks the transaction RETURNED and puts its copy back. The ledger
// is authoritative: once the status change commits, Return succeeds even if
// the copy release has to be finished by the reconcile worker.
func (e *Engine) Return(ctx context.Context, req ReturnRequest) (ledger.Transaction, error) {
	if req.TransactionID == "" {
		return ledger.Transaction{}, ErrTransactionNotFound
	}

	current, err := e.ledger.Get(ctx, req.TransactionID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ledger.Transaction{}, ErrTransactionNotFound
		}
		return ledger.Transaction{}, fmt.Errorf("%w: load transaction: %w", ErrStoreUnavailable, err)
	}
	if !req.Requester.CanActFor(current.PatronID) {
		return ledger.Transaction{}, ErrNotAuthorized
	}

	tx, err := e.ledger.MarkReturned(ctx, req.TransactionID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrAlreadyReturned):
			return ledger.Transaction{}, ErrAlreadyReturned
		case errors.Is(err, ledger.ErrNotFound):
			return ledger.Transaction{}, ErrTransactionNotFound
		default:
			return ledger.Transaction{}, fmt.Errorf("%w: mark returned: %w", ErrStoreUnavailable, err)
		}
	}

	e.releaseCopy(ctx, tx.BookID, tx.ID, reconcile.ReasonReturnRelease)

	log.Printf("level=info msg=\"returned\" transaction_id=%s book_id=%s patron_id=%s", tx.ID, tx.BookID, tx.PatronID)
	return tx, nil
}

// releaseCopy puts one copy back, retrying with backoff. It runs detached
// from the caller's cancellation: a reserved copy must not leak because the
// client went away. What cannot be applied is journaled for the worker.
func (e *Engine) releaseCopy(ctx context.Context, bookID, txID string, reason reconcile.Reason) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.compensationTimeout)
	defer cancel()

	var tries uint
	_, err := backoff.Retry(ctx, func() (inventory.Book, error) {
		tries++
		b, err := e.inventory.ReleaseCopy(ctx, bookID)
		if errors.Is(err, inventory.ErrReleaseOverflow) || errors.Is(err, inventory.ErrNotFound) {
			return b, backoff.Permanent(err)
		}
		return b, err
	}, backoff.WithBackOff(e.newBackOff()), backoff.WithMaxTries(e.compensationTries))
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, inventory.ErrReleaseOverflow):
		log.Printf("level=error msg=\"consistency error: release overflow\" book_id=%s transaction_id=%s reason=%s", bookID, txID, reason)
		return
	case errors.Is(err, inventory.ErrNotFound):
		log.Printf("level=error msg=\"consistency error: release on unknown book\" book_id=%s transaction_id=%s reason=%s", bookID, txID, reason)
		return
	}

	if e.journal != nil {
		// the retry budget may have used up ctx's deadline
		task, jerr := e.journal.Record(context.WithoutCancel(ctx), reconcile.Task{
			BookID:        bookID,
			TransactionID: txID,
			Reason:        reason,
			Attempts:      int(tries),
			LastError:     err.Error(),
		})
		if jerr == nil {
			log.Printf("level=warn msg=\"release deferred to reconciliation\" task_id=%s book_id=%s transaction_id=%s reason=%s tries=%d err=%v",
				task.ID, bookID, txID, reason, tries, err)
			return
		}
		err = errors.Join(err, jerr)
	}
	log.Printf("level=alert msg=\"copy release lost, manual reconciliation required\" book_id=%s transaction_id=%s reason=%s tries=%d err=%v",
		bookID, txID, reason, tries, err)
}
