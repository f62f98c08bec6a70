package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoRetriesOnServiceUnavailableThenSucceeds(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(WithMaxRetries(5), WithBaseDelay(1*time.Millisecond), WithMaxDelay(5*time.Millisecond))

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 3, attempts)
}

func TestDoDoesNotRetryOnClientError(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(WithMaxRetries(5), WithBaseDelay(1*time.Millisecond))
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, 1, attempts)
}

func TestDefaultStrategyClassifiesStatusCodes(t *testing.T) {
	require.Equal(t, SmartRetry, DefaultStrategy(http.StatusTooManyRequests))
	require.Equal(t, ConservativeRetry, DefaultStrategy(http.StatusBadGateway))
	require.Equal(t, NoRetry, DefaultStrategy(http.StatusBadRequest))
}

func TestRetryableErrorFormatsRetryAfter(t *testing.T) {
	err := &RetryableError{StatusCode: 429, Message: "rate limited", RetryAfter: 2 * time.Second}
	require.Contains(t, err.Error(), "retry after 2s")
	require.True(t, err.IsRetryable())
}
