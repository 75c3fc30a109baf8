package reconcile

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"libraryloans/internal/httpx"
	"libraryloans/internal/inventory"

	"github.com/go-chi/chi/v5"
)

type HTTPHandler struct {
	checker *Checker
	journal Journal
}

func NewHTTPHandler(checker *Checker, journal Journal) *HTTPHandler {
	return &HTTPHandler{checker: checker, journal: journal}
}

// Consistency handles GET /admin/books/{bookID}/consistency
func (h *HTTPHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")

	report, err := h.checker.Check(r.Context(), bookID)
	switch {
	case err == nil:
		httpx.JSONSuccess(w, r, report, nil)
	case errors.Is(err, ErrInvariantViolated):
		log.Printf("level=error msg=\"invariant violated\" book_id=%s on_loan=%d active=%d",
			bookID, report.OnLoan, report.ActiveLoans)
		httpx.JSONSuccess(w, r, report, nil)
	case errors.Is(err, inventory.ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "BOOK_NOT_FOUND", "Book not found", nil)
	default:
		log.Printf("level=error msg=\"consistency check failed\" book_id=%s err=%v", bookID, err)
		httpx.JSONError(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Store unavailable, retry later", nil)
	}
}

// PendingTasks handles GET /admin/reconcile/tasks
func (h *HTTPHandler) PendingTasks(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	tasks, err := h.journal.Pending(r.Context(), limit)
	if err != nil {
		log.Printf("level=error msg=\"list pending tasks\" err=%v", err)
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		return
	}
	httpx.JSONSuccess(w, r, tasks, map[string]any{"count": len(tasks)})
}
