package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/georoute/internal/logger"
	"github.com/MrSnakeDoc/georoute/internal/utils"
)

// loopbackCIDRS admits local clients only
var loopbackCIDRS = []string{"127.0.0.0/8", "::1/128"}

// AllowOnlyCIDRS allows only specific IPs/CIDRs. If the list is empty, it does NOT filter (passthrough).
// trustProxy should be true when running behind a trusted reverse proxy.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		log.Debug("AllowOnlyCIDRS: empty matcher, passthrough mode")
		return func(next http.Handler) http.Handler { return next }
	}

	log.Debugf("AllowOnlyCIDRS: initialized with %d rules, trustProxy=%v", len(allowed), trustProxy)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Info("request rejected by CIDR allow-list",
					logger.String("ip", ip),
					logger.String("path", r.URL.Path))
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AllowOnlyCIDRSOrLoopback is AllowOnlyCIDRS for routes that hand out
// secrets. With an empty list only loopback peers are admitted, and the
// forwarded headers are ignored since a client can set them freely.
func AllowOnlyCIDRSOrLoopback(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	if utils.NewIPMatcher(allowed).IsEmpty() {
		log.Debug("AllowOnlyCIDRS: no rules, loopback only")
		return AllowOnlyCIDRS(loopbackCIDRS, false, log)
	}
	return AllowOnlyCIDRS(allowed, trustProxy, log)
}
