package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/georoute/internal/domain"
	"github.com/MrSnakeDoc/georoute/internal/httpserver/deps"
)

const statusStoreTimeout = 2 * time.Second

type componentStatus struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type pipelineStatus struct {
	State      string  `json:"state"`
	LastRunID  string  `json:"last_run_id,omitempty"`
	LastResult string  `json:"last_result,omitempty"`
	LastMirror string  `json:"last_mirror,omitempty"`
	LastError  string  `json:"last_error,omitempty"`
	LastRunAt  string  `json:"last_run_at,omitempty"`
	DurationMs float64 `json:"duration_ms,omitempty"`
}

type geoStatus struct {
	Ready      bool   `json:"ready"`
	Domains    int    `json:"domains"`
	ETag       string `json:"etag,omitempty"`
	LastUpdate string `json:"last_update,omitempty"`
}

type policyStatus struct {
	Active     bool   `json:"active"`
	Reason     string `json:"reason,omitempty"`
	Domains    int    `json:"domains"`
	UserSites  int    `json:"user_sites"`
	Enabled    bool   `json:"enabled"`
	CompiledAt string `json:"compiled_at"`
}

type statusResponse struct {
	Mode     string                   `json:"mode"`
	Pipeline pipelineStatus           `json:"pipeline"`
	Progress *domain.DownloadProgress `json:"progress,omitempty"`
	Geo      geoStatus                `json:"geo"`
	Policy   policyStatus             `json:"policy"`
	Redis    componentStatus          `json:"redis"`
}

// Status reports the pipeline phase, the download progress record, the
// committed list metadata and the active policy.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), statusStoreTimeout)
		defer cancel()

		snap := d.MemoryIndex.Snapshot()
		resp := statusResponse{
			Pipeline: pipelineState(d),
			Geo: geoStatus{
				Ready:      snap.GeoReady,
				Domains:    snap.GeoCount,
				ETag:       snap.GeoMeta.ETag,
				LastUpdate: formatTime(snap.GeoMeta.LastUpdateTime()),
			},
			Policy: policyStatus{
				Active:     snap.Policy.Active(),
				Reason:     snap.Policy.Reason(),
				Domains:    snap.Policy.Len(),
				UserSites:  snap.UserSites,
				Enabled:    snap.Enabled,
				CompiledAt: formatTime(snap.CompiledAt),
			},
		}

		resp.Redis = checkStore(ctx, d)
		if resp.Redis.OK {
			// the store is ahead of the index while a recompile is pending
			if geo, err := d.Store.GetGeoSummary(ctx); err == nil {
				resp.Geo.Ready = geo.Ready
				resp.Geo.Domains = geo.Count
				resp.Geo.ETag = geo.Meta.ETag
				resp.Geo.LastUpdate = formatTime(geo.Meta.LastUpdateTime())
			}
			if p, err := d.Store.GetProgress(ctx); err == nil {
				resp.Progress = p
			}
		}

		resp.Mode = determineMode(resp)
		writeJSON(w, http.StatusOK, resp)
	}
}

func pipelineState(d deps.Deps) pipelineStatus {
	if d.Pipeline == nil {
		return pipelineStatus{State: "UNKNOWN"}
	}
	ps := pipelineStatus{State: string(d.Pipeline.State())}
	if rep := d.Pipeline.LastReport(); rep != nil {
		ps.LastRunID = rep.RunID
		ps.LastResult = string(rep.State)
		ps.LastMirror = rep.Mirror
		ps.LastRunAt = formatTime(rep.Started)
		ps.DurationMs = float64(rep.Duration.Microseconds()) / 1000
		if rep.Err != nil {
			ps.LastError = rep.Err.Error()
		}
	}
	return ps
}

// determineMode: an unreachable store wins over the policy state
func determineMode(s statusResponse) string {
	if !s.Redis.OK {
		return "degraded"
	}
	if s.Policy.Active {
		return "proxying"
	}
	return "direct"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{OK: false, Error: "client not initialized"}
	}
	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}
	return componentStatus{OK: true}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
