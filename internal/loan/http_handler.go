package loan

import (
	"errors"
	"log"
	"net/http"
	"time"

	"libraryloans/internal/httpx"
	"libraryloans/internal/ledger"
	"libraryloans/internal/policy"

	"github.com/go-chi/chi/v5"
)

type HTTPHandler struct {
	engine *Engine
}

func NewHTTPHandler(engine *Engine) *HTTPHandler {
	return &HTTPHandler{engine: engine}
}

type BorrowBody struct {
	BookID string `json:"book_id" validate:"required,max=64"`
	// PatronID defaults to the caller.
	PatronID string `json:"patron_id" validate:"omitempty,max=128"`
	DueDate  string `json:"due_date" validate:"required,due_date"`
}

type transactionResponse struct {
	ledger.Transaction
	Overdue bool `json:"is_overdue"`
}

func newTransactionResponse(tx ledger.Transaction, now time.Time) transactionResponse {
	return transactionResponse{Transaction: tx, Overdue: tx.IsOverdue(now)}
}

func requesterFrom(r *http.Request) Requester {
	return Requester{ID: httpx.UserIDFrom(r), Admin: httpx.IsAdmin(r)}
}

// Borrow handles POST /loans
func (h *HTTPHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	var body BorrowBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "INVALID_JSON", "Request body must be a JSON object", nil)
		return
	}
	if details := httpx.ValidateStruct(body); details != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", details)
		return
	}

	due, dateOnly, err := httpx.ParseDueDate(body.DueDate)
	if err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	requester := requesterFrom(r)
	patronID := body.PatronID
	if patronID == "" {
		patronID = requester.ID
	}

	tx, err := h.engine.Borrow(r.Context(), BorrowRequest{
		BookID:    body.BookID,
		PatronID:  patronID,
		DueDate:   due,
		DateOnly:  dateOnly,
		Requester: requester,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, newTransactionResponse(tx, h.engine.now()))
}

// Return handles POST /loans/{id}/return
func (h *HTTPHandler) Return(w http.ResponseWriter, r *http.Request) {
	tx, err := h.engine.Return(r.Context(), ReturnRequest{
		TransactionID: chi.URLParam(r, "id"),
		Requester:     requesterFrom(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, newTransactionResponse(tx, h.engine.now()), nil)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rejected *policy.RejectedError
	switch {
	case errors.Is(err, ErrInvalidRequest):
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, ErrNotAuthorized):
		httpx.JSONError(w, r, http.StatusForbidden, "NOT_AUTHORIZED", "Not authorized for this patron's loans", nil)
	case errors.Is(err, ErrInvalidDueDate):
		var details []httpx.ErrorDetail
		if errors.As(err, &rejected) {
			details = []httpx.ErrorDetail{{Field: "due_date", Message: string(rejected.Reason)}}
		}
		httpx.JSONError(w, r, http.StatusUnprocessableEntity, "INVALID_DUE_DATE", err.Error(), details)
	case errors.Is(err, ErrNoCopiesAvailable):
		httpx.JSONError(w, r, http.StatusConflict, "NO_COPIES_AVAILABLE", "No copies available", nil)
	case errors.Is(err, ErrBookNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "BOOK_NOT_FOUND", "Book not found", nil)
	case errors.Is(err, ErrTransactionNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "TRANSACTION_NOT_FOUND", "Transaction not found", nil)
	case errors.Is(err, ErrAlreadyReturned):
		httpx.JSONError(w, r, http.StatusConflict, "ALREADY_RETURNED", "Transaction already returned", nil)
	case errors.Is(err, ErrStoreUnavailable):
		log.Printf("level=error msg=\"store unavailable\" request_id=%s err=%v", httpx.RequestIDFrom(r), err)
		w.Header().Set("Retry-After", "1")
		httpx.JSONError(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Store unavailable, retry later", nil)
	default:
		log.Printf("level=error msg=\"unhandled loan error\" request_id=%s err=%v", httpx.RequestIDFrom(r), err)
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}
