package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/georoute/internal/httpserver/deps"
	"github.com/MrSnakeDoc/georoute/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/georoute/internal/httpserver/mw"
)

const (
	challengeBurst      = 10
	defaultChallengeRPM = 60
)

func init() { Register(registerPolicy) }

func registerPolicy(r chi.Router, d deps.Deps) {
	allow := mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)

	r.With(allow).Get("/proxy.pac", handlers.PAC(d))
	r.With(allow).Get("/route", handlers.Route(d))

	rpm := d.ChallengeRPM
	if rpm <= 0 {
		rpm = defaultChallengeRPM
	}
	limit := mw.RateLimit(mw.RateLimitConfig{
		Burst:             challengeBurst,
		RefillPerIPPerMin: rpm,
		MaxEntries:        4096,
		TrustProxy:        d.TrustProxy,
		OnLimited:         func(*http.Request) { d.Metrics.RecordChallenge("rate_limited") },
	})
	secret := mw.AllowOnlyCIDRSOrLoopback(d.AllowedCIDRS, d.TrustProxy, d.Logger)
	r.With(secret, limit).Post("/auth/challenge", handlers.Challenge(d))
}
