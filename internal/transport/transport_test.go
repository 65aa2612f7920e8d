package transport_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/transport"
)

func TestNewRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := transport.New(transport.Options{BaseURL: srv.URL, RetryCount: 3}, zap.NewNop())
	client.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(5 * time.Millisecond)

	var out struct {
		OK bool `json:"ok"`
	}
	resp, err := client.R().SetResult(&out).Get("/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNewDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := transport.New(transport.Options{BaseURL: srv.URL, RetryCount: 3}, nil)
	resp, err := client.R().Get("/")
	require.NoError(t, err)
	assert.True(t, resp.IsError())
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewUsesProvidedHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("X-Test")))
	}))
	defer srv.Close()

	hc := &http.Client{Transport: headerTransport{}}
	client := transport.New(transport.Options{BaseURL: srv.URL, HTTPClient: hc}, nil)
	resp, err := client.R().Get("/")
	require.NoError(t, err)
	assert.Equal(t, "injected", resp.String())
}

type headerTransport struct{}

func (headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("X-Test", "injected")
	return http.DefaultTransport.RoundTrip(r)
}

func TestNewDecodesMislabelledJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	_, err := transport.New(transport.Options{BaseURL: srv.URL}, nil).R().SetResult(&out).Get("/")
	require.NoError(t, err)
	assert.True(t, out.OK)
}
