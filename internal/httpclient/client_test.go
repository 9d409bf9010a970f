package httpclient_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adnify/agentcore/internal/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStrategyClassification(t *testing.T) {
	assert.Equal(t, httpclient.SmartRetry, httpclient.DefaultStrategy(http.StatusTooManyRequests))
	assert.Equal(t, httpclient.SmartRetry, httpclient.DefaultStrategy(http.StatusServiceUnavailable))
	assert.Equal(t, httpclient.ConservativeRetry, httpclient.DefaultStrategy(http.StatusInternalServerError))
	assert.Equal(t, httpclient.ConservativeRetry, httpclient.DefaultStrategy(http.StatusBadGateway))
	assert.Equal(t, httpclient.NoRetry, httpclient.DefaultStrategy(http.StatusOK))
	assert.Equal(t, httpclient.NoRetry, httpclient.DefaultStrategy(http.StatusNotFound))
}

func TestDoRetriesOnServerErrorThenSucceeds(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "payload", string(body), "body must be replayed identically on retry")
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := httpclient.New(httpclient.WithBaseDelay(time.Millisecond), httpclient.WithMaxDelay(5*time.Millisecond))
	req, err := http.NewRequest(http.MethodPost, srv.URL, strReader("payload"))
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, attempts)
}

func TestDoReturnsImmediatelyOnNonRetryableStatus(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := httpclient.New(httpclient.WithBaseDelay(time.Millisecond))
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 1, attempts)
}

func TestDoExhaustsRetriesAndReturnsLastResponse(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := httpclient.New(httpclient.WithMaxRetries(2), httpclient.WithBaseDelay(time.Millisecond), httpclient.WithMaxDelay(5*time.Millisecond))
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 3, attempts) // initial + 2 retries
}

func strReader(s string) io.Reader { return &stringReadCloser{s: s} }

type stringReadCloser struct {
	s   string
	pos int
}

func (r *stringReadCloser) Read(p []byte) (int, error) {
	if r.pos >= len(r.s) {
		return 0, io.EOF
	}
	n := copy(p, r.s[r.pos:])
	r.pos += n
	return n, nil
}
