package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/georoute/internal/ingest"
	"github.com/MrSnakeDoc/georoute/internal/logger"
)

const (
	DefaultRetryInitial = 30 * time.Second
	DefaultRetryMax     = 30 * time.Minute
)

// Ingester is the pipeline driven by the refresher.
type Ingester interface {
	Bootstrap(ctx context.Context) error
	Run(ctx context.Context) (*ingest.Report, error)
}

// GeoRefresher serializes ingestion work on one goroutine. Requests are
// coalesced: while a run is queued, further requests are dropped. A failed
// run is retried with exponential backoff until one succeeds.
type GeoRefresher struct {
	pipeline     Ingester
	logger       logger.Logger
	retryInitial time.Duration
	retryMax     time.Duration
	bootstrapCh  chan struct{}
	trigger      chan struct{}
}

// NewGeoRefresher creates a refresher over pipeline
func NewGeoRefresher(pipeline Ingester, log logger.Logger, retryInitial, retryMax time.Duration) *GeoRefresher {
	if retryInitial <= 0 {
		retryInitial = DefaultRetryInitial
	}
	if retryMax <= 0 {
		retryMax = DefaultRetryMax
	}
	return &GeoRefresher{
		pipeline:     pipeline,
		logger:       log,
		retryInitial: retryInitial,
		retryMax:     retryMax,
		bootstrapCh:  make(chan struct{}, 1),
		trigger:      make(chan struct{}, 1),
	}
}

// RequestBootstrap queues a bundled snapshot load. It runs before any
// refresh queued at the same time.
func (g *GeoRefresher) RequestBootstrap() bool {
	return signal(g.bootstrapCh)
}

// RequestRefresh queues one ingestion cycle. It returns false when one is
// already queued.
func (g *GeoRefresher) RequestRefresh() bool {
	return signal(g.trigger)
}

// Run processes requests until ctx is done
func (g *GeoRefresher) Run(ctx context.Context) error {
	var (
		failures int
		retry    *time.Timer
		retryC   <-chan time.Time
	)
	defer func() {
		if retry != nil {
			retry.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-g.bootstrapCh:
			g.bootstrap(ctx)
			continue
		case <-g.trigger:
		case <-retryC:
			g.logger.Info("retrying geo list update", logger.Int("attempt", failures+1))
		}

		// a bootstrap queued together with this refresh goes first
		select {
		case <-g.bootstrapCh:
			g.bootstrap(ctx)
		default:
		}

		if retry != nil {
			retry.Stop()
			retry, retryC = nil, nil
		}

		_, err := g.pipeline.Run(ctx)
		switch {
		case err == nil:
			if failures > 0 {
				g.logger.Info("geo list update recovered", logger.Int("failures", failures))
			}
			failures = 0
		case errors.Is(err, ingest.ErrInFlight):
			g.logger.Debug("geo list update already running")
		case ctx.Err() != nil:
			return nil
		default:
			failures++
			wait := calcBackoff(g.retryInitial, g.retryMax, failures)
			g.logger.Warn("geo list update failed, backing off",
				logger.Int("failures", failures),
				logger.Duration("backoff", wait))
			retry = time.NewTimer(wait)
			retryC = retry.C
		}
	}
}

func (g *GeoRefresher) bootstrap(ctx context.Context) {
	if err := g.pipeline.Bootstrap(ctx); err != nil {
		g.logger.Warn("bundled snapshot not loaded", logger.Error(err))
	}
}

// signal does a non-blocking send on a buffer-1 channel.
func signal(ch chan struct{}) bool {
	select {
	case ch <- struct{}{}:
		return true
	default:
		return false
	}
}
