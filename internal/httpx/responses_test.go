package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSuccess_MergesRequestID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/catalog", nil)
	r = r.WithContext(ContextWithRequestID(r.Context(), "req-1"))
	w := httptest.NewRecorder()

	JSONSuccess(w, r, []string{"a"}, map[string]any{"total": 1})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body struct {
		Success bool           `json:"success"`
		Data    []string       `json:"data"`
		Meta    map[string]any `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, []string{"a"}, body.Data)
	assert.Equal(t, "req-1", body.Meta["request_id"])
	assert.EqualValues(t, 1, body.Meta["total"])
}

func TestJSONCreated(t *testing.T) {
	w := httptest.NewRecorder()
	JSONCreated(w, httptest.NewRequest(http.MethodPost, "/loans", nil), map[string]string{"id": "t1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"id":"t1"}}`, w.Body.String())
}

func TestJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	JSONError(w, httptest.NewRequest(http.MethodPost, "/loans", nil), http.StatusConflict, "NO_COPIES_AVAILABLE", "No copies available",
		[]ErrorDetail{{Field: "book_id", Message: "out of stock"}})

	assert.Equal(t, http.StatusConflict, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "NO_COPIES_AVAILABLE", body.Error.Code)
	require.Len(t, body.Error.Details, 1)
	assert.Equal(t, "book_id", body.Error.Details[0].Field)
}
