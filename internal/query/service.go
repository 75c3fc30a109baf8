package query

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"libraryloans/internal/inventory"
)

type Service struct {
	books BookReader
	loans LoanReader
	now   func() time.Time
}

func NewService(books BookReader, loans LoanReader) *Service {
	return &Service{books: books, loans: loans, now: time.Now}
}

// WithClock replaces the clock used for is_overdue.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CatalogView lists books with their current availability. The whole page
// fails if any record on it is malformed.
func (s *Service) CatalogView(ctx context.Context, f CatalogFilter) ([]inventory.Book, int, error) {
	books, total, err := s.books.List(ctx, inventory.Filter{
		Genre:         f.Genre,
		AvailableOnly: f.AvailableOnly,
		Q:             f.Q,
		Limit:         f.Limit,
		Offset:        f.Offset,
	})
	if err != nil {
		if errors.Is(err, inventory.ErrInvalidBook) {
			return nil, 0, fmt.Errorf("%w: %w", ErrInconsistentBook, err)
		}
		return nil, 0, fmt.Errorf("%w: list books: %w", ErrStoreUnavailable, err)
	}

	for _, b := range books {
		if err := b.Validate(); err != nil {
			log.Printf("level=error msg=\"consistency error in catalog\" book_id=%s total=%d available=%d", b.ID, b.TotalCopies, b.AvailableCopies)
			return nil, 0, fmt.Errorf("%w: %w", ErrInconsistentBook, err)
		}
	}
	return books, total, nil
}

// MyLoans returns the patron's transactions, newest first, each joined with
// book title and author. is_overdue is computed against the current time.
func (s *Service) MyLoans(ctx context.Context, patronID string, activeOnly bool) ([]LoanView, error) {
	list := s.loans.ListAllForPatron
	if activeOnly {
		list = s.loans.ListActiveForPatron
	}
	txs, err := list(ctx, patronID)
	if err != nil {
		return nil, fmt.Errorf("%w: list loans: %w", ErrStoreUnavailable, err)
	}

	now := s.now()
	cache := make(map[string]inventory.Book)
	views := make([]LoanView, 0, len(txs))
	for _, tx := range txs {
		b, ok := cache[tx.BookID]
		if !ok {
			b, err = s.books.Get(ctx, tx.BookID)
			switch {
			case errors.Is(err, inventory.ErrNotFound):
				log.Printf("level=warn msg=\"loan references unknown book\" transaction_id=%s book_id=%s", tx.ID, tx.BookID)
			case err != nil:
				return nil, fmt.Errorf("%w: get book: %w", ErrStoreUnavailable, err)
			}
			cache[tx.BookID] = b
		}
		views = append(views, LoanView{
			Transaction: tx,
			BookTitle:   b.Title,
			BookAuthor:  b.Author,
			Overdue:     tx.IsOverdue(now),
		})
	}
	return views, nil
}
