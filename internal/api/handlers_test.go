package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	status string
	found  bool
	err    error
}

func (s fakeStore) Load(context.Context) (string, bool, error) {
	return s.status, s.found, s.err
}

func (s fakeStore) Save(context.Context, string) error {
	return errors.New("read only")
}

func serve(t *testing.T, store fakeStore, method, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(NewHandlers("00123456789", store, slog.Default()), nil)
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetStatus(t *testing.T) {
	tests := []struct {
		name     string
		store    fakeStore
		wantCode int
		want     StatusResponse
	}{
		{
			name:     "recorded status",
			store:    fakeStore{status: "Inicio (id=1)", found: true},
			wantCode: http.StatusOK,
			want:     StatusResponse{TrackingID: "00123456789", Status: "Inicio (id=1)", Found: true},
		},
		{
			name:     "no baseline yet",
			store:    fakeStore{},
			wantCode: http.StatusOK,
			want:     StatusResponse{TrackingID: "00123456789"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, tt.store, http.MethodGet, "/api/v1/status", nil)
			require.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var got StatusResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("store failure", func(t *testing.T) {
		rec := serve(t, fakeStore{err: errors.New("boom")}, http.MethodGet, "/api/v1/status", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "failed to load status")
	})
}

func TestHealth(t *testing.T) {
	rec := serve(t, fakeStore{}, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(t, fakeStore{err: errors.New("connection refused")}, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouterRejectsWrites(t *testing.T) {
	rec := serve(t, fakeStore{}, http.MethodPost, "/api/v1/status", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS(t *testing.T) {
	header := http.Header{"Origin": []string{"http://localhost:3000"}}
	rec := serve(t, fakeStore{}, http.MethodGet, "/api/v1/status", header)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
