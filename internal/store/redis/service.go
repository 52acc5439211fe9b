package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/georoute/internal/domain"
)

const (
	// DefaultProgressTTL bounds how long a stale progress record stays visible
	DefaultProgressTTL = 24 * time.Hour
)

// Store handles Redis operations for the persisted routing state
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetSettings reads the operator switches. A missing enabled flag reads as false.
func (s *Store) GetSettings(ctx context.Context) (domain.Settings, error) {
	vals, err := s.client.HGetAll(ctx, KeySettings).Result()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	enabled, _ := strconv.ParseBool(vals[hashEnabled])
	return domain.Settings{
		Enabled:     enabled,
		ProxyConfig: vals[hashProxyConfig],
	}, nil
}

// SetEnabled stores the enabled flag and notifies when it changed
func (s *Store) SetEnabled(ctx context.Context, enabled bool) (bool, error) {
	return s.setHashField(ctx, KeySettings, hashEnabled, strconv.FormatBool(enabled), domain.FieldEnabled)
}

// SetProxyConfig stores the raw proxy string and notifies when it changed
func (s *Store) SetProxyConfig(ctx context.Context, raw string) (bool, error) {
	return s.setHashField(ctx, KeySettings, hashProxyConfig, raw, domain.FieldProxyConfig)
}

func (s *Store) setHashField(ctx context.Context, key, field, value string, notify domain.Field) (bool, error) {
	old, err := s.client.HGet(ctx, key, field).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("failed to read %s: %w", notify, err)
	}
	if err == nil && old == value {
		return false, nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, field, value)
		pipe.Publish(ctx, ChannelChanges, string(notify))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to save %s: %w", notify, err)
	}
	return true, nil
}

// GetUserSites reads the operator site list
func (s *Store) GetUserSites(ctx context.Context) ([]string, error) {
	data, err := s.client.Get(ctx, KeyUserSites).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to get user sites: %w", err)
	}

	var sites []string
	if err := json.Unmarshal(data, &sites); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user sites: %w", err)
	}
	return sites, nil
}

// SetUserSites replaces the operator site list and notifies when it changed
func (s *Store) SetUserSites(ctx context.Context, sites []string) (bool, error) {
	if sites == nil {
		sites = []string{}
	}
	data, err := json.Marshal(sites)
	if err != nil {
		return false, fmt.Errorf("failed to marshal user sites: %w", err)
	}

	old, err := s.client.Get(ctx, KeyUserSites).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("failed to read user sites: %w", err)
	}
	if err == nil && string(old) == string(data) {
		return false, nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, KeyUserSites, data, 0)
		pipe.Publish(ctx, ChannelChanges, string(domain.FieldUserSites))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to save user sites: %w", err)
	}
	return true, nil
}
