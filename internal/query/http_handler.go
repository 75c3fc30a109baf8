package query

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"libraryloans/internal/httpx"
	"libraryloans/internal/inventory"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type HTTPHandler struct {
	svc *Service
}

func NewHTTPHandler(svc *Service) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

// Catalog handles GET /catalog
// @Summary List catalog
// @Description Books with live availability, filterable by genre and availability
// @Tags catalog
// @Produce json
// @Param genre query string false "Exact genre"
// @Param available query bool false "Only books with a free copy"
// @Param q query string false "Search title, author or genre"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page" default(20)
// @Success 200 {object} httpx.SuccessResponse
// @Failure 500 {object} httpx.ErrorResponse
// @Router /catalog [get]
func (h *HTTPHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(query.Get("page_size"))
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	available, _ := strconv.ParseBool(query.Get("available"))

	books, total, err := h.svc.CatalogView(r.Context(), CatalogFilter{
		Genre:         query.Get("genre"),
		AvailableOnly: available,
		Q:             query.Get("q"),
		Limit:         pageSize,
		Offset:        (page - 1) * pageSize,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if books == nil {
		books = []inventory.Book{}
	}

	httpx.JSONSuccess(w, r, books, map[string]any{
		"page":        page,
		"page_size":   pageSize,
		"total":       total,
		"total_pages": (total + pageSize - 1) / pageSize,
	})
}

// Loans handles GET /loans
// @Summary List a patron's loans
// @Description Defaults to the caller; other patrons require the admin role
// @Tags loans
// @Produce json
// @Param patron query string false "Patron id"
// @Param active query bool false "Only loans not yet returned"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Router /loans [get]
func (h *HTTPHandler) Loans(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	caller := httpx.UserIDFrom(r)

	patronID := query.Get("patron")
	if patronID == "" {
		patronID = caller
	}
	if patronID == "" {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "patron is required", nil)
		return
	}
	if patronID != caller && !httpx.IsAdmin(r) {
		httpx.JSONError(w, r, http.StatusForbidden, "NOT_AUTHORIZED", "Not authorized for this patron's loans", nil)
		return
	}
	activeOnly, _ := strconv.ParseBool(query.Get("active"))

	loans, err := h.svc.MyLoans(r.Context(), patronID, activeOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, loans, map[string]any{"count": len(loans)})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInconsistentBook):
		log.Printf("level=error msg=\"catalog consistency fault\" request_id=%s err=%v", httpx.RequestIDFrom(r), err)
		httpx.JSONError(w, r, http.StatusInternalServerError, "INCONSISTENT_BOOK", "Catalog data is inconsistent", nil)
	case errors.Is(err, ErrStoreUnavailable):
		log.Printf("level=error msg=\"store unavailable\" request_id=%s err=%v", httpx.RequestIDFrom(r), err)
		w.Header().Set("Retry-After", "1")
		httpx.JSONError(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Store unavailable, retry later", nil)
	default:
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}
