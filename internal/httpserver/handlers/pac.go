package handlers

import (
	"net/http"
	"strconv"

	"github.com/MrSnakeDoc/georoute/internal/httpserver/deps"
	"github.com/MrSnakeDoc/georoute/internal/logger"
)

const pacContentType = "application/x-ns-proxy-autoconfig"

// PAC serves the active policy as a proxy auto-config script
func PAC(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := d.MemoryIndex.Snapshot()
		script := snap.Policy.Script()

		w.Header().Set("Content-Type", pacContentType)
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Content-Length", strconv.Itoa(len(script)))
		if !snap.CompiledAt.IsZero() {
			w.Header().Set("Last-Modified", snap.CompiledAt.UTC().Format(http.TimeFormat))
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(script)); err != nil {
			d.Logger.Debug("failed to write pac script", logger.Error(err))
		}
	}
}
