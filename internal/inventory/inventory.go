package inventory

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a book is not found.
	ErrNotFound = errors.New("book not found")
	// ErrOutOfStock is returned by ReserveCopy when no copy is left.
	ErrOutOfStock = errors.New("no copies available")
	// ErrReleaseOverflow is returned by ReleaseCopy when available_copies is
	// already equal to total_copies. It means the ledger and the inventory
	// disagree and must be reconciled.
	ErrReleaseOverflow = errors.New("release would exceed total copies")
	// ErrInvalidBook is returned for records violating 0 <= available <= total.
	ErrInvalidBook = errors.New("invalid book record")
)

// Book is a catalog title together with its copy counts.
type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Genre           string    `json:"genre"`
	Description     string    `json:"description"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// OnLoan is the number of copies currently reserved by active loans.
func (b Book) OnLoan() int {
	return b.TotalCopies - b.AvailableCopies
}

// Validate checks the copy-count invariant. Bad records are reported, never
// coerced into range.
func (b Book) Validate() error {
	switch {
	case b.TotalCopies < 0:
		return fmt.Errorf("%w: book %s has negative total_copies %d", ErrInvalidBook, b.ID, b.TotalCopies)
	case b.AvailableCopies < 0:
		return fmt.Errorf("%w: book %s has negative available_copies %d", ErrInvalidBook, b.ID, b.AvailableCopies)
	case b.AvailableCopies > b.TotalCopies:
		return fmt.Errorf("%w: book %s has available_copies %d above total_copies %d", ErrInvalidBook, b.ID, b.AvailableCopies, b.TotalCopies)
	}
	return nil
}

// Filter narrows catalog listings.
type Filter struct {
	Genre         string
	AvailableOnly bool
	Q             string
	Limit         int
	Offset        int
}
