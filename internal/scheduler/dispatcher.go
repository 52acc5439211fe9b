package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/georoute/internal/logger"
	"github.com/MrSnakeDoc/georoute/internal/reactor"
)

// GeoRequester queues ingestion work.
type GeoRequester interface {
	RequestBootstrap() bool
	RequestRefresh() bool
}

// CompileRequester queues policy work.
type CompileRequester interface {
	RequestCompile() bool
	RequestCredential() bool
}

// Dispatcher feeds events through reactor.Handle and queues the resulting
// effects on the workers. It never blocks on the work itself.
type Dispatcher struct {
	mu       sync.Mutex
	state    reactor.State
	geo      GeoRequester
	compiler CompileRequester
	logger   logger.Logger
	interval time.Duration
}

// NewDispatcher creates a dispatcher that emits Tick every interval
func NewDispatcher(geo GeoRequester, compiler CompileRequester, log logger.Logger, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		geo:      geo,
		compiler: compiler,
		logger:   log,
		interval: interval,
	}
}

// Dispatch handles ev and queues its effects. It returns false when any
// effect was dropped because the same work is already queued.
func (d *Dispatcher) Dispatch(ev reactor.Event) bool {
	d.mu.Lock()
	var effects []reactor.Effect
	d.state, effects = reactor.Handle(d.state, ev)
	d.mu.Unlock()

	if len(effects) > 0 {
		d.logger.Debug("dispatching",
			logger.String("event", ev.Kind.String()),
			logger.String("field", string(ev.Field)),
			logger.Int("effects", len(effects)))
	}

	queued := true
	for _, e := range effects {
		var ok bool
		switch e {
		case reactor.Bootstrap:
			ok = d.geo.RequestBootstrap()
		case reactor.RefreshGeo:
			ok = d.geo.RequestRefresh()
		case reactor.RefreshCredential:
			ok = d.compiler.RequestCredential()
		case reactor.Recompile:
			ok = d.compiler.RequestCompile()
		}
		// a credential refresh already queued the recompile
		if !ok && !(e == reactor.Recompile && hasEffect(effects, reactor.RefreshCredential)) {
			queued = false
		}
	}
	return queued
}

// Run emits Startup, then Tick on every interval until ctx is done
func (d *Dispatcher) Run(ctx context.Context) error {
	d.Dispatch(reactor.Event{Kind: reactor.Startup})

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.Dispatch(reactor.Event{Kind: reactor.Tick})
		}
	}
}

func hasEffect(effects []reactor.Effect, want reactor.Effect) bool {
	for _, e := range effects {
		if e == want {
			return true
		}
	}
	return false
}
