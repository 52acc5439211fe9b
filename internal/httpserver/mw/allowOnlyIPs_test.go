package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MrSnakeDoc/georoute/internal/logger"
)

func TestAllowOnlyCIDRSOrLoopback(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		trustProxy bool
		remote     string
		xff        string
		want       int
	}{
		{name: "empty list refuses remote", remote: "203.0.113.9:1", want: http.StatusForbidden},
		{name: "empty list admits loopback", remote: "127.0.0.1:1", want: http.StatusOK},
		{name: "empty list admits ipv6 loopback", remote: "[::1]:1", want: http.StatusOK},
		{name: "empty list ignores forwarded for", trustProxy: true, remote: "203.0.113.9:1", xff: "127.0.0.1", want: http.StatusForbidden},
		{name: "configured list wins", allowed: []string{"203.0.113.0/24"}, remote: "203.0.113.9:1", want: http.StatusOK},
		{name: "configured list honors forwarded for", allowed: []string{"203.0.113.0/24"}, trustProxy: true, remote: "10.0.0.1:1", xff: "203.0.113.9", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := AllowOnlyCIDRSOrLoopback(tt.allowed, tt.trustProxy, logger.Nop())(okHandler)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAllowOnlyCIDRS_EmptyListPassesThrough(t *testing.T) {
	h := AllowOnlyCIDRS(nil, false, logger.Nop())(okHandler)
	assert.Equal(t, http.StatusOK, serveFrom(h, "203.0.113.9:1").Code)
}
