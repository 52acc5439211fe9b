package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/georoute/internal/domain"
	"github.com/MrSnakeDoc/georoute/internal/logger"
	"github.com/MrSnakeDoc/georoute/internal/reactor"
	redisstore "github.com/MrSnakeDoc/georoute/internal/store/redis"
	"github.com/MrSnakeDoc/georoute/internal/utils"
)

// Subscriber delivers persisted field changes.
type Subscriber interface {
	Subscribe(ctx context.Context) (*redisstore.Subscription, error)
}

// ChangeWatcher turns store notifications into FieldChanged events. Every
// successful subscription, the first one included, is followed by a
// credential refresh and recompile, so a commit made while no subscription
// was listening is still compiled.
type ChangeWatcher struct {
	source       Subscriber
	dispatcher   *Dispatcher
	logger       logger.Logger
	retryInitial time.Duration
	retryMax     time.Duration
}

// NewChangeWatcher creates a watcher feeding dispatcher
func NewChangeWatcher(source Subscriber, dispatcher *Dispatcher, log logger.Logger) *ChangeWatcher {
	return &ChangeWatcher{
		source:       source,
		dispatcher:   dispatcher,
		logger:       log,
		retryInitial: time.Second,
		retryMax:     30 * time.Second,
	}
}

// Run watches until ctx is done
func (w *ChangeWatcher) Run(ctx context.Context) error {
	failures := 0
	for {
		sub, err := w.source.Subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			wait := calcBackoff(w.retryInitial, w.retryMax, failures)
			w.logger.Warn("change subscription failed",
				logger.Int("failures", failures),
				logger.Duration("retry_in", wait),
				logger.Error(err))
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
			continue
		}

		if failures > 0 {
			w.logger.Info("change subscription restored", logger.Int("failures", failures))
		}
		failures = 0
		w.dispatcher.Dispatch(reactor.Changed(domain.FieldProxyConfig))

		w.consume(ctx, sub)
		utils.MustClose(sub, w.logger, "change subscription")
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (w *ChangeWatcher) consume(ctx context.Context, sub *redisstore.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-sub.C:
			if !ok {
				w.logger.Warn("change subscription closed")
				return
			}
			w.dispatcher.Dispatch(reactor.Changed(f))
		}
	}
}
