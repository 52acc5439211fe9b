package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/georoute/internal/httpserver/deps"
	"github.com/MrSnakeDoc/georoute/internal/logger"
)

// Reload queues a manual list refresh
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Reload != nil && d.Reload() {
			d.Logger.Info("manual list refresh triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusAccepted)
			if _, err := w.Write([]byte("refresh queued\n")); err != nil {
				d.Logger.Debug("failed to write response", logger.Error(err))
			}
			return
		}

		d.Logger.Warn("list refresh already queued",
			logger.String("remote_ip", r.RemoteAddr))
		w.WriteHeader(http.StatusTooManyRequests)
		if _, err := w.Write([]byte("refresh already queued, please wait\n")); err != nil {
			d.Logger.Debug("failed to write response", logger.Error(err))
		}
	}
}
