package inventory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type bookSlot struct {
	mu   sync.Mutex
	book Book
}

// MemoryStore keeps books in process. Each book has its own lock, so
// reservations on different books proceed in parallel.
type MemoryStore struct {
	mu    sync.RWMutex
	books map[string]*bookSlot
	now   func() time.Time
}

// NewMemoryStore seeds the store with books. Every book must pass Validate.
func NewMemoryStore(books ...Book) (*MemoryStore, error) {
	s := &MemoryStore{books: make(map[string]*bookSlot), now: time.Now}
	for _, b := range books {
		if b.ID == "" {
			return nil, fmt.Errorf("%w: missing id", ErrInvalidBook)
		}
		if err := b.Validate(); err != nil {
			return nil, err
		}
		s.books[b.ID] = &bookSlot{book: b}
	}
	return s, nil
}

func (s *MemoryStore) slot(id string) (*bookSlot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.books[id]
	return sl, ok
}

func (s *MemoryStore) ReserveCopy(ctx context.Context, bookID string) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, err
	}
	sl, ok := s.slot(bookID)
	if !ok {
		return Book{}, ErrNotFound
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.book.AvailableCopies <= 0 {
		return Book{}, ErrOutOfStock
	}
	sl.book.AvailableCopies--
	sl.book.UpdatedAt = s.now()
	return sl.book, nil
}

func (s *MemoryStore) ReleaseCopy(ctx context.Context, bookID string) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, err
	}
	sl, ok := s.slot(bookID)
	if !ok {
		return Book{}, ErrNotFound
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.book.AvailableCopies >= sl.book.TotalCopies {
		log.Printf("level=error msg=\"release overflow\" book_id=%s total=%d", bookID, sl.book.TotalCopies)
		return Book{}, ErrReleaseOverflow
	}
	sl.book.AvailableCopies++
	sl.book.UpdatedAt = s.now()
	return sl.book, nil
}

func (s *MemoryStore) Get(ctx context.Context, bookID string) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, err
	}
	sl, ok := s.slot(bookID)
	if !ok {
		return Book{}, ErrNotFound
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.book, nil
}

func (s *MemoryStore) List(ctx context.Context, f Filter) ([]Book, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	slots := make([]*bookSlot, 0, len(s.books))
	for _, sl := range s.books {
		slots = append(slots, sl)
	}
	s.mu.RUnlock()

	q := strings.ToLower(f.Q)
	var matched []Book
	for _, sl := range slots {
		sl.mu.Lock()
		b := sl.book
		sl.mu.Unlock()

		if f.Genre != "" && b.Genre != f.Genre {
			continue
		}
		if f.AvailableOnly && b.AvailableCopies <= 0 {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(b.Title), q) &&
			!strings.Contains(strings.ToLower(b.Author), q) &&
			!strings.Contains(strings.ToLower(b.Genre), q) {
			continue
		}
		matched = append(matched, b)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Title != matched[j].Title {
			return matched[i].Title < matched[j].Title
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	start := min(max(f.Offset, 0), total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return matched[start:end], total, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, book *Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if book.TotalCopies < 0 {
		return fmt.Errorf("%w: negative total_copies", ErrInvalidBook)
	}
	now := s.now()

	s.mu.Lock()
	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	sl, ok := s.books[book.ID]
	if !ok {
		b := *book
		b.AvailableCopies = b.TotalCopies
		b.CreatedAt = now
		b.UpdatedAt = now
		s.books[b.ID] = &bookSlot{book: b}
		s.mu.Unlock()
		*book = b
		return nil
	}
	s.mu.Unlock()

	sl.mu.Lock()
	defer sl.mu.Unlock()

	next := sl.book
	next.Title = book.Title
	next.Author = book.Author
	next.Genre = book.Genre
	next.Description = book.Description
	next.AvailableCopies += book.TotalCopies - next.TotalCopies
	next.TotalCopies = book.TotalCopies
	next.UpdatedAt = now
	if err := next.Validate(); err != nil {
		return err
	}
	sl.book = next
	*book = next
	return nil
}
