package loan

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"libraryloans/internal/httpx"
	"libraryloans/internal/inventory"

	"github.com/go-chi/chi/v5"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string              `json:"code"`
		Details []httpx.ErrorDetail `json:"details"`
	} `json:"error"`
}

func newLoanRouter(h *HTTPHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/loans", h.Borrow)
	r.Post("/loans/{id}/return", h.Return)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, body, userID, role string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(httpx.ContextWithUser(req.Context(), userID, role))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestHTTPHandler_BorrowAndReturn(t *testing.T) {
	f := newFixture(t, inventory.Book{ID: "b1", Title: "Dune", TotalCopies: 1, AvailableCopies: 1})
	router := newLoanRouter(NewHTTPHandler(f.engine))

	w, env := doRequest(t, router, http.MethodPost, "/loans", `{"book_id":"b1","due_date":"2026-03-12"}`, "A", "")
	require.Equal(t, http.StatusCreated, w.Code)

	var tx struct {
		ID       string `json:"id"`
		PatronID string `json:"patron_id"`
		Status   string `json:"status"`
		DueDate  string `json:"due_date"`
		Overdue  bool   `json:"is_overdue"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tx))
	assert.Equal(t, "A", tx.PatronID)
	assert.Equal(t, "ACTIVE", tx.Status)
	assert.Equal(t, "2026-03-12T12:00:00Z", tx.DueDate)
	assert.False(t, tx.Overdue)
	assert.Equal(t, 0, f.available(t, "b1"))

	w, env = doRequest(t, router, http.MethodPost, "/loans", `{"book_id":"b1","due_date":"2026-03-12"}`, "B", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NO_COPIES_AVAILABLE", env.Error.Code)

	w, env = doRequest(t, router, http.MethodPost, "/loans/"+tx.ID+"/return", "", "B", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "NOT_AUTHORIZED", env.Error.Code)

	w, _ = doRequest(t, router, http.MethodPost, "/loans/"+tx.ID+"/return", "", "A", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.available(t, "b1"))

	w, env = doRequest(t, router, http.MethodPost, "/loans/"+tx.ID+"/return", "", "A", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_RETURNED", env.Error.Code)
	f.assertInvariant(t, "b1")
}

func TestHTTPHandler_BorrowErrors(t *testing.T) {
	f := newFixture(t, inventory.Book{ID: "b1", Title: "Dune", TotalCopies: 2, AvailableCopies: 2})
	router := newLoanRouter(NewHTTPHandler(f.engine))

	tests := []struct {
		name     string
		body     string
		userID   string
		role     string
		wantCode int
		wantErr  string
	}{
		{name: "malformed json", body: `{"book_id":`, userID: "A", wantCode: http.StatusBadRequest, wantErr: "INVALID_JSON"},
		{name: "unknown field", body: `{"book_id":"b1","due_date":"2026-03-12","x":1}`, userID: "A", wantCode: http.StatusBadRequest, wantErr: "INVALID_JSON"},
		{name: "missing due date", body: `{"book_id":"b1"}`, userID: "A", wantCode: http.StatusBadRequest, wantErr: "VALIDATION_ERROR"},
		{name: "garbage due date", body: `{"book_id":"b1","due_date":"next week"}`, userID: "A", wantCode: http.StatusBadRequest, wantErr: "VALIDATION_ERROR"},
		{name: "past due date", body: `{"book_id":"b1","due_date":"2026-03-09"}`, userID: "A", wantCode: http.StatusUnprocessableEntity, wantErr: "INVALID_DUE_DATE"},
		{name: "beyond window", body: `{"book_id":"b1","due_date":"2026-03-18"}`, userID: "A", wantCode: http.StatusUnprocessableEntity, wantErr: "INVALID_DUE_DATE"},
		{name: "unknown book", body: `{"book_id":"nope","due_date":"2026-03-12"}`, userID: "A", wantCode: http.StatusNotFound, wantErr: "BOOK_NOT_FOUND"},
		{name: "other patron", body: `{"book_id":"b1","patron_id":"B","due_date":"2026-03-12"}`, userID: "A", wantCode: http.StatusForbidden, wantErr: "NOT_AUTHORIZED"},
		{name: "no caller", body: `{"book_id":"b1","due_date":"2026-03-12"}`, wantCode: http.StatusBadRequest, wantErr: "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := doRequest(t, router, http.MethodPost, "/loans", tt.body, tt.userID, tt.role)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, env.Error.Code)
			assert.False(t, env.Success)
		})
	}
	assert.Equal(t, 2, f.available(t, "b1"))
}

func TestHTTPHandler_InvalidDueDateDetails(t *testing.T) {
	f := newFixture(t, inventory.Book{ID: "b1", Title: "Dune", TotalCopies: 1, AvailableCopies: 1})
	router := newLoanRouter(NewHTTPHandler(f.engine))

	_, env := doRequest(t, router, http.MethodPost, "/loans", `{"book_id":"b1","due_date":"2026-03-30"}`, "A", "")
	require.Len(t, env.Error.Details, 1)
	assert.Equal(t, "due_date", env.Error.Details[0].Field)
	assert.Equal(t, "EXCEEDS_MAX_WINDOW", env.Error.Details[0].Message)
}

func TestHTTPHandler_AdminBorrowsForPatron(t *testing.T) {
	f := newFixture(t, inventory.Book{ID: "b1", Title: "Dune", TotalCopies: 1, AvailableCopies: 1})
	router := newLoanRouter(NewHTTPHandler(f.engine))

	w, env := doRequest(t, router, http.MethodPost, "/loans", `{"book_id":"b1","patron_id":"B","due_date":"2026-03-12T18:00:00Z"}`, "admin-1", httpx.RoleAdmin)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, string(env.Data), `"patron_id":"B"`)
}

func TestHTTPHandler_ReturnUnknownTransaction(t *testing.T) {
	f := newFixture(t)
	router := newLoanRouter(NewHTTPHandler(f.engine))

	w, env := doRequest(t, router, http.MethodPost, "/loans/missing/return", "", "A", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "TRANSACTION_NOT_FOUND", env.Error.Code)
}

func TestHTTPHandler_StoreUnavailable(t *testing.T) {
	m := newMockSet(t)
	router := newLoanRouter(NewHTTPHandler(m.engine))

	m.inv.EXPECT().ReserveCopy(gomock.Any(), "b1").Return(inventory.Book{}, errDBDown)

	w, env := doRequest(t, router, http.MethodPost, "/loans", `{"book_id":"b1","due_date":"2026-03-11"}`, "A", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "STORE_UNAVAILABLE", env.Error.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}
