package practicum

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwbot/internal/homework"
	logx "hwbot/pkg/logx"
)

func newClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Config{Endpoint: url, Token: "tok", Timeout: 2 * time.Second}, logx.Nop())
	require.NoError(t, err)
	return c
}

func TestFetchSendsAuthAndFromDate(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "OAuth tok", r.Header.Get("Authorization"))
		assert.Equal(t, "1700000000", r.URL.Query().Get("from_date"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"homeworks":[],"current_date":1700000600}`))
	}))
	defer srv.Close()

	body, err := newClient(t, srv.URL).Fetch(context.Background(), 1700000000)
	require.NoError(t, err)
	assert.JSONEq(t, `{"homeworks":[],"current_date":1700000600}`, string(body))
}

func TestFetchNon200(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).Fetch(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, homework.ErrUpstreamStatus)

	var herr *homework.Error
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, http.StatusInternalServerError, herr.StatusCode)
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, int32(1), hits.Load(), "fetch must not retry")
}

func TestFetchMalformedBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"homeworks": [`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).Fetch(context.Background(), 1)
	assert.ErrorIs(t, err, homework.ErrMalformedBody)
}

func TestFetchTransportError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newClient(t, url).Fetch(context.Background(), 1)
	assert.ErrorIs(t, err, homework.ErrTransport)
	assert.Equal(t, homework.KindTransport, homework.KindOf(err))
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(Config{Endpoint: srv.URL, Token: "tok", Timeout: 100 * time.Millisecond}, logx.Nop())
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Fetch(context.Background(), 1)
	assert.ErrorIs(t, err, homework.ErrTransport)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNewRequiresEndpointAndToken(t *testing.T) {
	t.Parallel()
	_, err := New(Config{Token: "tok"}, logx.Nop())
	assert.Error(t, err)
	_, err = New(Config{Endpoint: "http://x"}, logx.Nop())
	assert.Error(t, err)
}
