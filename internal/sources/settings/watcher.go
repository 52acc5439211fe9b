package settings

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MrSnakeDoc/georoute/internal/logger"
	"github.com/MrSnakeDoc/georoute/internal/metrics"
	"github.com/MrSnakeDoc/georoute/internal/utils"
)

const defaultDebounce = 500 * time.Millisecond

// Source loads the settings file into the store at startup and again after
// every change on disk.
type Source struct {
	loader   *Loader
	mapper   *Mapper
	writer   Writer
	logger   logger.Logger
	metrics  *metrics.Metrics
	debounce time.Duration
}

// NewSource creates a settings source for path
func NewSource(path string, w Writer, log logger.Logger, m *metrics.Metrics) *Source {
	return &Source{
		loader:   NewLoader(path),
		mapper:   NewMapper(),
		writer:   w,
		logger:   log.With(logger.String("settings_file", path)),
		metrics:  m,
		debounce: defaultDebounce,
	}
}

// Reload applies the file once. Every changed field publishes its own
// notification through the store.
func (s *Source) Reload(ctx context.Context) error {
	f, err := s.loader.Load()
	if err != nil {
		s.metrics.RecordSettingsReload("error")
		return err
	}

	changed, err := s.mapper.Apply(ctx, s.writer, f)
	if err != nil {
		s.metrics.RecordSettingsReload("error")
		return err
	}

	s.metrics.RecordSettingsReload("ok")
	if len(changed) > 0 {
		names := make([]string, len(changed))
		for i, c := range changed {
			names[i] = string(c)
		}
		s.logger.Info("settings applied", logger.Strings("changed", names))
	} else {
		s.logger.Debug("settings unchanged")
	}
	return nil
}

// Run applies the file, then watches its directory until ctx is done.
// Editors that replace the file by rename are handled by watching the
// directory rather than the file.
func (s *Source) Run(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		s.logger.Error("initial settings load failed", logger.Error(err))
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}
	defer utils.MustClose(w, s.logger, "settings watcher")

	path, err := filepath.Abs(s.loader.Path())
	if err != nil {
		return fmt.Errorf("failed to resolve settings path: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch settings directory: %w", err)
	}

	var (
		debounce  *time.Timer
		debounceC <-chan time.Time
	)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(s.debounce)
			debounceC = debounce.C

		case <-debounceC:
			debounce, debounceC = nil, nil
			if err := s.Reload(ctx); err != nil {
				s.logger.Error("settings reload failed", logger.Error(err))
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("settings watcher error", logger.Error(err))
		}
	}
}
