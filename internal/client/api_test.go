package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsBadBaseURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)
	_, err = New("://nope")
	assert.Error(t, err)
}

func TestDo_EncodesRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stations/search/name", r.URL.Path)
		assert.Equal(t, "київ", r.URL.Query().Get("query"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))

		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["name"]})
	}))
	defer srv.Close()

	c, err := New(srv.URL + "/api/")
	require.NoError(t, err)

	var out map[string]string
	err = c.Do(context.Background(), http.MethodPost, "/stations/search/name", map[string]string{"name": "Львів"}, &out,
		WithQuery(map[string][]string{"query": {"київ"}}),
		WithHeader("X-Test", "yes"))
	require.NoError(t, err)
	assert.Equal(t, "Львів", out["echo"])
}

func TestDo_ErrorMapping(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"station not found","code":"NOT_FOUND"}`))
	})
	mux.HandleFunc("/invalid", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"departure and arrival stations must differ","code":"SAME_STATION","field":"arrivalStationId"}`))
	})
	mux.HandleFunc("/legacy", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"bad input"}`))
	})
	mux.HandleFunc("/gateway", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	tests := []struct {
		path   string
		status int
		code   string
		msg    string
		field  string
	}{
		{"/missing", 404, "NOT_FOUND", "station not found", ""},
		{"/invalid", 422, "SAME_STATION", "departure and arrival stations must differ", "arrivalStationId"},
		{"/legacy", 400, "HTTP_400", "bad input", ""},
		{"/gateway", 502, "HTTP_502", "Bad Gateway", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := c.Do(context.Background(), http.MethodGet, tt.path, nil, nil)
			var apiErr *Error
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.msg, apiErr.Message)
			assert.Equal(t, tt.field, apiErr.Field)
		})
	}
}

func TestDo_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithTimeout(time.Second))
	require.NoError(t, err)

	err = c.Do(context.Background(), http.MethodGet, "/slow", nil, nil, WithRequestTimeout(20*time.Millisecond))
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, CodeTimeout, apiErr.Code)
	assert.Zero(t, apiErr.Status)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	err = c.Do(context.Background(), http.MethodGet, "/stations", nil, nil)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CodeNetworkError, apiErr.Code)
}
