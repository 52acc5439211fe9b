package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/georoute/internal/httpserver/deps"
	"github.com/MrSnakeDoc/georoute/internal/policy"
)

type routeResponse struct {
	Host    string        `json:"host"`
	Action  policy.Action `json:"action"`
	Proxy   string        `json:"proxy,omitempty"`
	Matched string        `json:"matched,omitempty"`
}

// Route returns the routing decision for ?host=
func Route(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host := strings.TrimSpace(r.URL.Query().Get("host"))
		if host == "" {
			http.Error(w, "missing host parameter", http.StatusBadRequest)
			return
		}

		dec := d.MemoryIndex.Route(host)
		writeJSON(w, http.StatusOK, routeResponse{
			Host:    host,
			Action:  dec.Action,
			Proxy:   dec.ProxyAddr(),
			Matched: dec.Matched,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
