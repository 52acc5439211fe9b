package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/georoute/internal/domain"
	"github.com/MrSnakeDoc/georoute/internal/logger"
)

type progressStore struct {
	mu sync.Mutex
	p  *domain.DownloadProgress
}

func (s *progressStore) GetProgress(context.Context) (*domain.DownloadProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.p == nil {
		return nil, nil
	}
	cp := *s.p
	return &cp, nil
}

func (s *progressStore) SetProgress(_ context.Context, p domain.DownloadProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = &p
	return nil
}

func TestProgressCollector_Collect(t *testing.T) {
	log := logger.New("error", false)
	now := time.Now()

	tests := []struct {
		name          string
		progress      *domain.DownloadProgress
		busy          bool
		wantStatus    domain.ProgressStatus
		wantCollected bool
	}{
		{
			name:     "no record",
			progress: nil,
		},
		{
			name:       "fresh download",
			progress:   &domain.DownloadProgress{Status: domain.ProgressDownloading, UpdatedAt: now.Add(-time.Minute)},
			wantStatus: domain.ProgressDownloading,
		},
		{
			name:          "abandoned download",
			progress:      &domain.DownloadProgress{Status: domain.ProgressDownloading, RunID: "r1", UpdatedAt: now.Add(-time.Hour)},
			wantStatus:    domain.ProgressError,
			wantCollected: true,
		},
		{
			name:       "stale but this process is downloading",
			progress:   &domain.DownloadProgress{Status: domain.ProgressDownloading, UpdatedAt: now.Add(-time.Hour)},
			busy:       true,
			wantStatus: domain.ProgressDownloading,
		},
		{
			name:       "error records are kept",
			progress:   &domain.DownloadProgress{Status: domain.ProgressError, Error: "boom", UpdatedAt: now.Add(-time.Hour)},
			wantStatus: domain.ProgressError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &progressStore{p: tt.progress}
			pc := NewProgressCollector(store, func() bool { return tt.busy }, log, time.Hour, 10*time.Minute)
			pc.now = func() time.Time { return now }

			collected, err := pc.Collect(context.Background())
			if err != nil {
				t.Fatalf("Collect failed: %v", err)
			}
			if collected != tt.wantCollected {
				t.Errorf("Collect() = %v, want %v", collected, tt.wantCollected)
			}

			got, _ := store.GetProgress(context.Background())
			if tt.progress == nil {
				if got != nil {
					t.Errorf("expected no record, got %+v", got)
				}
				return
			}
			if got.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", got.Status, tt.wantStatus)
			}
			if tt.wantCollected && got.RunID != tt.progress.RunID {
				t.Errorf("run id lost: %q", got.RunID)
			}
		})
	}
}

func TestProgressCollector_RunStopsOnCancel(t *testing.T) {
	log := logger.New("error", false)
	pc := NewProgressCollector(&progressStore{}, nil, log, 50*time.Millisecond, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = pc.Run(ctx)
		close(done)
	}()

	time.Sleep(120 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}
