package inventory

import (
	"errors"
	"log"
	"net/http"

	"libraryloans/internal/httpx"

	"github.com/go-chi/chi/v5"
)

type HTTPHandler struct {
	store Store
}

func NewHTTPHandler(store Store) *HTTPHandler {
	return &HTTPHandler{store: store}
}

type BookBody struct {
	Title       string `json:"title" validate:"required,max=255"`
	Author      string `json:"author" validate:"max=255"`
	Genre       string `json:"genre" validate:"max=64"`
	Description string `json:"description" validate:"max=4000"`
	TotalCopies int    `json:"total_copies" validate:"min=0"`
}

// Create handles POST /admin/books
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, "")
}

// Update handles PUT /admin/books/{bookID}
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, chi.URLParam(r, "bookID"))
}

func (h *HTTPHandler) upsert(w http.ResponseWriter, r *http.Request, id string) {
	var body BookBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "INVALID_JSON", "Request body must be a JSON object", nil)
		return
	}
	if details := httpx.ValidateStruct(body); details != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", details)
		return
	}

	book := Book{
		ID:          id,
		Title:       body.Title,
		Author:      body.Author,
		Genre:       body.Genre,
		Description: body.Description,
		TotalCopies: body.TotalCopies,
	}
	if err := h.store.Upsert(r.Context(), &book); err != nil {
		switch {
		case errors.Is(err, ErrInvalidBook):
			httpx.JSONError(w, r, http.StatusConflict, "INVALID_BOOK", "total_copies is below the copies currently on loan", nil)
		case errors.Is(err, ErrNotFound):
			httpx.JSONError(w, r, http.StatusNotFound, "BOOK_NOT_FOUND", "Book not found", nil)
		default:
			log.Printf("level=error msg=\"upsert book\" request_id=%s book_id=%s err=%v", httpx.RequestIDFrom(r), id, err)
			httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		}
		return
	}

	log.Printf("level=info msg=\"book saved\" book_id=%s total=%d available=%d by=%s", book.ID, book.TotalCopies, book.AvailableCopies, httpx.UserIDFrom(r))
	if id == "" {
		httpx.JSONCreated(w, r, book)
		return
	}
	httpx.JSONSuccess(w, r, book, nil)
}
