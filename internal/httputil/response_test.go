package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondHelpers(t *testing.T) {
	tests := []struct {
		name       string
		respond    func(w http.ResponseWriter)
		wantStatus int
		wantBody   string
	}{
		{
			name:       "json",
			respond:    func(w http.ResponseWriter) { RespondJSON(w, http.StatusOK, map[string]int{"total": 2}) },
			wantStatus: http.StatusOK,
			wantBody:   `{"total":2}`,
		},
		{
			name:       "error",
			respond:    func(w http.ResponseWriter) { RespondError(w, http.StatusBadRequest, errors.New("bad"), "invalid request body") },
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"bad","message":"invalid request body","code":400}`,
		},
		{
			name:       "success",
			respond:    func(w http.ResponseWriter) { RespondSuccess(w, "Movie added successfully!") },
			wantStatus: http.StatusOK,
			wantBody:   `{"success":true,"message":"Movie added successfully!"}`,
		},
		{
			name:       "failure",
			respond:    func(w http.ResponseWriter) { RespondFailure(w, http.StatusNotFound, "Movie not found") },
			wantStatus: http.StatusNotFound,
			wantBody:   `{"success":false,"message":"Movie not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.respond(rec)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		ID int64 `json:"id"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"id":42}`))
	require.NoError(t, DecodeJSON(req, &v))
	assert.Equal(t, int64(42), v.ID)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	assert.ErrorIs(t, DecodeJSON(req, &v), ErrEmptyBody)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"id":`))
	assert.Error(t, DecodeJSON(req, &v))
}
