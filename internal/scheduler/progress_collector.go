package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/georoute/internal/domain"
	"github.com/MrSnakeDoc/georoute/internal/logger"
)

const (
	// DefaultStaleThreshold is how long a DOWNLOADING record may go without an
	// update before it is considered abandoned
	DefaultStaleThreshold = 10 * time.Minute
)

// ProgressStore reads and writes the download progress record.
type ProgressStore interface {
	GetProgress(ctx context.Context) (*domain.DownloadProgress, error)
	SetProgress(ctx context.Context, p domain.DownloadProgress) error
}

// ProgressCollector turns DOWNLOADING records left behind by a crashed or
// killed process into ERROR records, so the status surface does not report
// a download that will never finish.
type ProgressCollector struct {
	store     ProgressStore
	busy      func() bool
	logger    logger.Logger
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
}

// NewProgressCollector creates a collector. busy reports whether this
// process is downloading right now; such records are left alone.
func NewProgressCollector(
	store ProgressStore,
	busy func() bool,
	log logger.Logger,
	interval time.Duration,
	threshold time.Duration,
) *ProgressCollector {
	if threshold == 0 {
		threshold = DefaultStaleThreshold
	}
	if busy == nil {
		busy = func() bool { return false }
	}

	return &ProgressCollector{
		store:     store,
		busy:      busy,
		logger:    log,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
	}
}

// Run collects immediately, then on every interval until ctx is done
func (pc *ProgressCollector) Run(ctx context.Context) error {
	if _, err := pc.Collect(ctx); err != nil {
		pc.logger.Warn("initial progress collection failed", logger.Error(err))
	}

	ticker := time.NewTicker(pc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := pc.Collect(ctx); err != nil {
				pc.logger.Error("progress collection failed", logger.Error(err))
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Collect marks an abandoned DOWNLOADING record as failed. It reports
// whether a record was rewritten.
func (pc *ProgressCollector) Collect(ctx context.Context) (bool, error) {
	p, err := pc.store.GetProgress(ctx)
	if err != nil {
		return false, err
	}
	if p == nil || p.Status != domain.ProgressDownloading {
		return false, nil
	}
	if pc.busy() || p.UpdatedAt.IsZero() {
		return false, nil
	}

	stale := pc.now().Sub(p.UpdatedAt)
	if stale < pc.threshold {
		return false, nil
	}

	abandoned := *p
	abandoned.Status = domain.ProgressError
	abandoned.Error = "download abandoned"
	abandoned.UpdatedAt = pc.now().UTC()
	if err := pc.store.SetProgress(ctx, abandoned); err != nil {
		return false, err
	}

	pc.logger.Info("collected abandoned download progress",
		logger.String("run_id", p.RunID),
		logger.String("mirror", p.Mirror),
		logger.Duration("stale_for", stale))
	return true, nil
}
