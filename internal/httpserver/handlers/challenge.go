package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/georoute/internal/httpserver/deps"
	"github.com/MrSnakeDoc/georoute/internal/logger"
	"github.com/MrSnakeDoc/georoute/internal/policy"
)

const maxChallengeBody = 4 << 10

type challengeRequest struct {
	IsProxy bool   `json:"is_proxy"`
	Host    string `json:"host"`
	Realm   string `json:"realm"`
}

type challengeResponse struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Challenge answers a proxy authentication challenge with the configured
// login. It replies 204 when the caller should fall through to its default
// handling.
func Challenge(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req challengeRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChallengeBody))
		if err := dec.Decode(&req); err != nil {
			d.Metrics.RecordChallenge("invalid")
			http.Error(w, "invalid challenge body", http.StatusBadRequest)
			return
		}

		ans, ok := d.Auth.Respond(policy.Challenge{
			IsProxy: req.IsProxy,
			Host:    req.Host,
			Realm:   req.Realm,
		})
		if !ok {
			d.Metrics.RecordChallenge("fallthrough")
			d.Logger.Debug("challenge not answered",
				logger.Bool("is_proxy", req.IsProxy),
				logger.String("host", req.Host))
			w.WriteHeader(http.StatusNoContent)
			return
		}

		d.Metrics.RecordChallenge("answered")
		d.Logger.Debug("challenge answered", logger.String("host", req.Host))
		writeJSON(w, http.StatusOK, challengeResponse{
			Username: ans.Username,
			Password: ans.Password,
		})
	}
}
