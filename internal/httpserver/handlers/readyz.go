package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/georoute/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready    bool   `json:"ready"`
	Domains  int    `json:"domains"`
	GeoReady bool   `json:"geo_ready"`
	Reason   string `json:"reason,omitempty"`
}

// Readyz reports ready once a compiled policy holds domains or a geo set
// has been committed.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := d.MemoryIndex.Snapshot()
		resp := readyzResponse{
			Domains:  snap.Policy.Len(),
			GeoReady: snap.GeoReady,
		}

		switch {
		case !d.MemoryIndex.Compiled():
			resp.Reason = "policy not compiled"
		case resp.Domains == 0 && !snap.GeoReady:
			resp.Reason = "no domain list committed"
		default:
			resp.Ready = true
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if !resp.Ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
