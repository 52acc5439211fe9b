package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/georoute/internal/domain"
)

// SetProgress overwrites the download progress record
func (s *Store) SetProgress(ctx context.Context, p domain.DownloadProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, KeyProgress, data, DefaultProgressTTL)
		pipe.Publish(ctx, ChannelChanges, string(domain.FieldDownloadProgress))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// ClearProgress removes the progress record
func (s *Store) ClearProgress(ctx context.Context) error {
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, KeyProgress)
		pipe.Publish(ctx, ChannelChanges, string(domain.FieldDownloadProgress))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear progress: %w", err)
	}
	return nil
}

// GetProgress returns the progress record, or nil when none is stored
func (s *Store) GetProgress(ctx context.Context) (*domain.DownloadProgress, error) {
	data, err := s.client.Get(ctx, KeyProgress).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	var p domain.DownloadProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return &p, nil
}
