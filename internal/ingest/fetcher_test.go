package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/georoute/internal/logger"
)

func newTestFetcher(mirrors ...string) *Fetcher {
	return NewFetcher(FetcherOptions{
		Mirrors:      mirrors,
		Timeout:      2 * time.Second,
		SizeEstimate: 1000,
	}, logger.Nop(), nil)
}

func serveBody(body []byte, etag string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if etag != "" && r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		if etag != "" {
			w.Header().Set("ETag", etag)
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
	}
}

func TestFetch_ReturnsBodyAndValidator(t *testing.T) {
	body := make([]byte, 100_000)
	srv := httptest.NewServer(serveBody(body, `"v1"`))
	defer srv.Close()

	var reports []Progress
	res, err := newTestFetcher(srv.URL).Fetch(context.Background(), "", func(p Progress) {
		reports = append(reports, p)
	})
	require.NoError(t, err)
	assert.False(t, res.NotModified)
	assert.Equal(t, `"v1"`, res.ETag)
	assert.Len(t, res.Body, len(body))

	require.NotEmpty(t, reports)
	last := reports[len(reports)-1]
	assert.Equal(t, int64(len(body)), last.Downloaded)
	assert.Equal(t, int64(len(body)), last.Total)
	assert.False(t, last.Estimated)
	for i := 1; i < len(reports); i++ {
		assert.GreaterOrEqual(t, reports[i].Downloaded, reports[i-1].Downloaded)
	}
}

func TestFetch_SendsValidatorAndHonoursNotModified(t *testing.T) {
	srv := httptest.NewServer(serveBody([]byte("payload"), `"v1"`))
	defer srv.Close()

	res, err := newTestFetcher(srv.URL).Fetch(context.Background(), `"v1"`, nil)
	require.NoError(t, err)
	assert.True(t, res.NotModified)
	assert.Nil(t, res.Body)
	assert.Equal(t, `"v1"`, res.ETag)
}

func TestFetch_FallsBackToNextMirror(t *testing.T) {
	var badHits atomic.Int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		badHits.Add(1)
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer bad.Close()
	good := httptest.NewServer(serveBody([]byte("list"), ""))
	defer good.Close()

	res, err := newTestFetcher(bad.URL, good.URL).Fetch(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, good.URL, res.Mirror)
	assert.Equal(t, []byte("list"), res.Body)
	assert.Equal(t, int32(1), badHits.Load())
}

func TestFetch_AllMirrorsFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()

	_, err := newTestFetcher(bad.URL, "http://127.0.0.1:1/unreachable").Fetch(context.Background(), "", nil)
	require.Error(t, err)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, bad.URL, netErr.Mirror)
	assert.Equal(t, http.StatusNotFound, netErr.Status)
}

func TestFetch_NoMirrors(t *testing.T) {
	_, err := newTestFetcher().Fetch(context.Background(), "", nil)
	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
}

func TestFetch_EstimatesWithoutContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// flushing forces chunked encoding, so no Content-Length
		_, _ = w.Write([]byte("first"))
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte("second"))
	}))
	defer srv.Close()

	var last Progress
	res, err := newTestFetcher(srv.URL).Fetch(context.Background(), "", func(p Progress) { last = p })
	require.NoError(t, err)
	assert.Equal(t, "firstsecond", string(res.Body))
	assert.True(t, last.Estimated)
	assert.Equal(t, int64(1000), last.Total)
}

func TestFetch_TruncatedStreamFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "5000")
		_, _ = w.Write(make([]byte, 1000))
		// handler returns early; the client sees an unexpected EOF
	}))
	defer srv.Close()

	var got []Progress
	_, err := newTestFetcher(srv.URL).Fetch(context.Background(), "", func(p Progress) { got = append(got, p) })
	require.Error(t, err)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.NotEmpty(t, got, "partial progress should have been reported before the failure")
}

func TestFetch_PerAttemptTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer slow.Close()
	good := httptest.NewServer(serveBody([]byte("ok"), ""))
	defer good.Close()

	f := NewFetcher(FetcherOptions{Mirrors: []string{slow.URL, good.URL}, Timeout: 100 * time.Millisecond}, logger.Nop(), nil)
	res, err := f.Fetch(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, good.URL, res.Mirror)
}
