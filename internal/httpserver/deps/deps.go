package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/georoute/internal/domain"
	"github.com/MrSnakeDoc/georoute/internal/index"
	"github.com/MrSnakeDoc/georoute/internal/ingest"
	"github.com/MrSnakeDoc/georoute/internal/logger"
	"github.com/MrSnakeDoc/georoute/internal/metrics"
	"github.com/MrSnakeDoc/georoute/internal/policy"
)

// Store is the persisted state the status endpoints read.
type Store interface {
	Ping(ctx context.Context) error
	GetGeoSummary(ctx context.Context) (domain.GeoSummary, error)
	GetProgress(ctx context.Context) (*domain.DownloadProgress, error)
}

// Pipeline exposes the ingestion phase and the last finished run.
type Pipeline interface {
	State() ingest.State
	LastReport() *ingest.Report
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time      // for testing, defaults to time.Now
	AllowedHosts []string              // Host headers allowed on the control endpoints
	AllowedCIDRS []string              // IPs allowed on the control and probe endpoints
	TrustProxy   bool                  // true if running behind a trusted reverse proxy
	Store        Store                 // persisted state, nil when not connected
	MemoryIndex  *index.MemoryIndex    // active compiled policy
	Auth         *policy.Authenticator // proxy challenge responder
	Pipeline     Pipeline              // ingestion pipeline status
	Reload       func() bool           // queues a manual ingestion, false when one is already queued
	Metrics      *metrics.Metrics      // nil disables /metrics and request metrics
	ChallengeRPM int                   // per-IP refill for /auth/challenge, 0 uses the default
}
