package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/georoute/internal/httpserver/deps"
	"github.com/MrSnakeDoc/georoute/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/georoute/internal/httpserver/mw"
)

func init() { Register(registerControl) }

func registerControl(r chi.Router, d deps.Deps) {
	guarded := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger), mw.EnforceHost(d.AllowedHosts, d.Logger))
	guarded.Post("/reload", handlers.Reload(d))
	guarded.Get("/status", handlers.Status(d))
}
