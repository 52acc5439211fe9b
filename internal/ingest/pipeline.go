// Package ingest keeps the persisted geo domain set current: bundled
// bootstrap, conditional multi-mirror fetch with progress, validation and an
// all-or-nothing commit.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/georoute/internal/domain"
	"github.com/MrSnakeDoc/georoute/internal/geosite"
	"github.com/MrSnakeDoc/georoute/internal/logger"
	"github.com/MrSnakeDoc/georoute/internal/metrics"
)

// State is the phase of the current or last run.
type State string

const (
	StateIdle        State = "IDLE"
	StateChecking    State = "CHECKING"
	StateNotModified State = "NOT_MODIFIED"
	StateDownloading State = "DOWNLOADING"
	StateValidating  State = "VALIDATING"
	StateCommitted   State = "COMMITTED"
	StateFailed      State = "FAILED"
)

const (
	// DefaultMinListSize rejects anything smaller as a truncated or error body
	DefaultMinListSize = 1024

	failureWriteTimeout = 5 * time.Second
)

// Store is the persisted state the pipeline reads and writes.
type Store interface {
	GetGeo(ctx context.Context) (domain.GeoSnapshot, error)
	CommitGeo(ctx context.Context, domains []string, meta domain.CacheMetadata) error
	SetProgress(ctx context.Context, p domain.DownloadProgress) error
	ClearProgress(ctx context.Context) error
}

// Source fetches the list conditionally.
type Source interface {
	Fetch(ctx context.Context, etag string, onProgress func(Progress)) (*FetchResult, error)
}

// Options configures validation and bootstrap.
type Options struct {
	Categories  []string
	MinListSize int
	BundledPath string
}

// Report summarizes one finished run.
type Report struct {
	RunID    string
	State    State
	Mirror   string
	Domains  int
	Skipped  int
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Pipeline runs ingestion cycles. At most one cycle (or bootstrap) holds the
// pipeline at a time; overlapping calls get ErrInFlight.
type Pipeline struct {
	store   Store
	source  Source
	opts    Options
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu    sync.Mutex
	state atomic.Value // State
	last  atomic.Pointer[Report]
}

// NewPipeline wires a pipeline over store and source
func NewPipeline(store Store, source Source, opts Options, log logger.Logger, m *metrics.Metrics) *Pipeline {
	if opts.MinListSize <= 0 {
		opts.MinListSize = DefaultMinListSize
	}
	p := &Pipeline{
		store:   store,
		source:  source,
		opts:    opts,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
	p.state.Store(StateIdle)
	return p
}

// State returns the phase of the current run, or the outcome of the last one
func (p *Pipeline) State() State {
	return p.state.Load().(State)
}

// LastReport returns the report of the last finished run, nil before the first
func (p *Pipeline) LastReport() *Report {
	return p.last.Load()
}

// Bootstrap commits the bundled snapshot when no geo set was ever committed.
// It never touches the network.
func (p *Pipeline) Bootstrap(ctx context.Context) error {
	if !p.mu.TryLock() {
		return ErrInFlight
	}
	defer p.mu.Unlock()

	if p.opts.BundledPath == "" {
		return nil
	}

	snap, err := p.store.GetGeo(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if snap.Ready {
		p.log.Debug("bootstrap skipped, geo set already committed",
			logger.Int("domains", len(snap.Domains)))
		return nil
	}

	data, err := os.ReadFile(p.opts.BundledPath)
	if err != nil {
		return fmt.Errorf("bootstrap: read bundled snapshot: %w", err)
	}
	domains, skipped, err := p.validate(data)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	// no validator: the first mirror fetch must be unconditional
	if err := p.store.CommitGeo(ctx, domains, domain.CacheMetadata{}); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	p.metrics.RecordIngest(metrics.OutcomeBootstrap, 0)
	p.metrics.RecordCommit(len(domains), skipped)
	p.log.Info("bundled snapshot committed",
		logger.String("path", p.opts.BundledPath),
		logger.Int("domains", len(domains)),
		logger.Int("skipped", skipped))
	return nil
}

// Run performs one conditional update cycle. Every failure leaves the
// committed geo set and its metadata untouched and records an ERROR progress.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if !p.mu.TryLock() {
		p.metrics.RecordIngest(metrics.OutcomeInFlight, 0)
		return nil, ErrInFlight
	}
	defer p.mu.Unlock()

	rep := &Report{RunID: uuid.NewString(), Started: p.now()}
	log := p.log.With(logger.String("run_id", rep.RunID))

	err := p.run(ctx, rep, log)
	rep.Duration = p.now().Sub(rep.Started)

	switch {
	case err != nil:
		rep.State, rep.Err = StateFailed, err
		p.fail(ctx, rep, log)
		p.metrics.RecordIngest(metrics.OutcomeFailed, rep.Duration)
	case rep.State == StateNotModified:
		log.Info("geo list not modified", logger.String("mirror", rep.Mirror))
		p.metrics.RecordIngest(metrics.OutcomeNotModified, rep.Duration)
	default:
		log.Info("geo list committed",
			logger.String("mirror", rep.Mirror),
			logger.Int("domains", rep.Domains),
			logger.Int("skipped", rep.Skipped),
			logger.Duration("took", rep.Duration))
		p.metrics.RecordIngest(metrics.OutcomeCommitted, rep.Duration)
		p.metrics.RecordCommit(rep.Domains, rep.Skipped)
	}

	p.state.Store(rep.State)
	p.last.Store(rep)
	return rep, err
}

func (p *Pipeline) run(ctx context.Context, rep *Report, log logger.Logger) error {
	p.state.Store(StateChecking)

	snap, err := p.store.GetGeo(ctx)
	if err != nil {
		return err
	}
	etag := ""
	if snap.Ready {
		etag = snap.Meta.ETag
	}

	log.Debug("checking mirrors", logger.Bool("conditional", etag != ""))
	res, err := p.source.Fetch(ctx, etag, p.progressReporter(ctx, rep.RunID, log))
	if err != nil {
		return err
	}
	rep.Mirror = res.Mirror
	if res.NotModified {
		rep.State = StateNotModified
		return nil
	}

	p.state.Store(StateValidating)
	domains, skipped, err := p.validate(res.Body)
	if err != nil {
		return err
	}
	rep.Domains, rep.Skipped = len(domains), skipped

	meta := domain.CacheMetadata{ETag: res.ETag, LastUpdate: p.now().UnixMilli()}
	if err := p.store.CommitGeo(ctx, domains, meta); err != nil {
		return err
	}
	rep.State = StateCommitted

	if err := p.store.ClearProgress(ctx); err != nil {
		log.Warn("failed to clear progress", logger.Error(err))
	}
	return nil
}

// validate rejects undersized buffers, then decodes and aggregates the wanted
// categories. An empty aggregate is rejected too.
func (p *Pipeline) validate(data []byte) ([]string, int, error) {
	if len(data) < p.opts.MinListSize {
		return nil, 0, &ValidationError{
			Reason: fmt.Sprintf("%d bytes is below the %d byte minimum", len(data), p.opts.MinListSize),
		}
	}

	res, err := geosite.Decode(data, p.opts.Categories)
	if err != nil {
		return nil, 0, &ValidationError{Reason: "decode failed", Err: err}
	}

	domains := geosite.HostDomains(res.Records)
	if len(domains) == 0 {
		return nil, res.Skipped, &ValidationError{Reason: "no domains for the target categories"}
	}
	return domains, res.Skipped, nil
}

// progressReporter persists progress whenever the whole percent changes.
func (p *Pipeline) progressReporter(ctx context.Context, runID string, log logger.Logger) func(Progress) {
	lastPct := -1
	lastMirror := ""
	return func(pr Progress) {
		p.state.Store(StateDownloading)
		pct := domain.EstimatePercent(pr.Downloaded, pr.Total)
		if pct == lastPct && pr.Mirror == lastMirror {
			return
		}
		lastPct, lastMirror = pct, pr.Mirror

		err := p.store.SetProgress(ctx, domain.DownloadProgress{
			Status:          domain.ProgressDownloading,
			Percent:         pct,
			DownloadedBytes: pr.Downloaded,
			TotalBytes:      pr.Total,
			Estimated:       pr.Estimated,
			Mirror:          pr.Mirror,
			RunID:           runID,
			UpdatedAt:       p.now().UTC(),
		})
		if err != nil {
			log.Debug("failed to save progress", logger.Error(err))
		}
	}
}

// fail records the error in the progress record. It survives a cancelled
// run context so a timed out run is still reported.
func (p *Pipeline) fail(ctx context.Context, rep *Report, log logger.Logger) {
	log.Error("geo list update failed",
		logger.String("mirror", rep.Mirror),
		logger.Duration("took", rep.Duration),
		logger.Error(rep.Err))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	err := p.store.SetProgress(ctx, domain.DownloadProgress{
		Status:    domain.ProgressError,
		RunID:     rep.RunID,
		Mirror:    rep.Mirror,
		Error:     rep.Err.Error(),
		UpdatedAt: p.now().UTC(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("failed to save error progress", logger.Error(err))
	}
}
