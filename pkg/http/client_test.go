package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientDo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/items", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("limit"))
		assert.Equal(t, "tok", r.Header.Get("X-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]int
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]int{"got": in["n"]})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithHeader("X-Key", "tok"), WithTimeout(time.Second))
	var out map[string]int
	err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/v1/items",
		Query:  url.Values{"limit": {"7"}},
		Body:   map[string]int{"n": 3},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, 3, out["got"])
}

func TestClientStatusAndDecodeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
			return
		}
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()
	c := NewClient(srv.URL)

	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/bad"}, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Status)
	assert.Equal(t, "upstream down", string(se.Body))

	var out struct{}
	err = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/ok"}, &out)
	assert.ErrorIs(t, err, ErrDecode)

	// no destination: body is ignored
	assert.NoError(t, c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/ok"}, nil))
}
