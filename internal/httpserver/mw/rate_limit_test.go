package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func serveFrom(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/challenge", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_BucketPerClient(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	limited := 0
	l := newClientLimiter(RateLimitConfig{
		Burst:             2,
		RefillPerIPPerMin: 60,
		OnLimited:         func(*http.Request) { limited++ },
	}, clock.Now)
	h := rateLimit(l)(okHandler)

	rec := serveFrom(h, "198.51.100.1:1000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "ok", rec.Body.String())

	rec = serveFrom(h, "198.51.100.1:1001")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = serveFrom(h, "198.51.100.1:1002")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, 1, limited)

	// other clients keep their own bucket
	assert.Equal(t, http.StatusOK, serveFrom(h, "198.51.100.2:1000").Code)

	clock.Advance(time.Second)
	assert.Equal(t, http.StatusOK, serveFrom(h, "198.51.100.1:1003").Code)
	assert.Equal(t, 1, limited)
}

func TestRateLimit_RetryAfterFollowsRefillRate(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	l := newClientLimiter(RateLimitConfig{Burst: 1, RefillPerIPPerMin: 2}, clock.Now)

	ok, _, _ := l.take("a")
	require.True(t, ok)

	ok, left, retry := l.take("a")
	assert.False(t, ok)
	assert.Equal(t, 0, left)
	assert.Equal(t, 30, retry)

	clock.Advance(10 * time.Second)
	_, _, retry = l.take("a")
	assert.InDelta(t, 20, retry, 1)
}

func TestRateLimit_EvictsIdleClients(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	l := newClientLimiter(RateLimitConfig{
		Burst:             1,
		RefillPerIPPerMin: 1,
		MaxEntries:        2,
		SweepInterval:     time.Hour,
		IdleTTL:           time.Minute,
	}, clock.Now)

	l.take("a")
	l.take("b")
	assert.Equal(t, 2, l.size())

	clock.Advance(2 * time.Minute)
	l.take("c")
	assert.Equal(t, 1, l.size(), "a full table evicts idle clients")

	clock.Advance(2 * time.Hour)
	l.take("d")
	assert.Equal(t, 1, l.size(), "the sweep interval evicts idle clients")
}
