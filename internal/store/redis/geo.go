package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/georoute/internal/domain"
)

// GetGeo reads the committed geo set and its cache metadata in one HGETALL,
// so both halves always come from the same commit.
func (s *Store) GetGeo(ctx context.Context) (domain.GeoSnapshot, error) {
	vals, err := s.client.HGetAll(ctx, KeyGeo).Result()
	if err != nil {
		return domain.GeoSnapshot{}, fmt.Errorf("failed to get geo set: %w", err)
	}

	snap := domain.GeoSnapshot{Domains: []string{}}
	if raw, ok := vals[hashDomains]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &snap.Domains); err != nil {
			return domain.GeoSnapshot{}, fmt.Errorf("failed to unmarshal geo set: %w", err)
		}
	}
	snap.Ready, _ = strconv.ParseBool(vals[hashReady])
	snap.Meta.ETag = vals[hashEtag]
	if ts := vals[hashLastUpdate]; ts != "" {
		snap.Meta.LastUpdate, _ = strconv.ParseInt(ts, 10, 64)
	}
	return snap, nil
}

// CommitGeo replaces the geo set and its cache metadata in one MULTI/EXEC and
// announces the new set. An empty ETag removes the stored validator.
func (s *Store) CommitGeo(ctx context.Context, domains []string, meta domain.CacheMetadata) error {
	if domains == nil {
		domains = []string{}
	}
	data, err := json.Marshal(domains)
	if err != nil {
		return fmt.Errorf("failed to marshal geo set: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, KeyGeo,
			hashDomains, data,
			hashReady, "true",
			hashCount, strconv.Itoa(len(domains)),
			hashLastUpdate, strconv.FormatInt(meta.LastUpdate, 10),
		)
		if meta.ETag != "" {
			pipe.HSet(ctx, KeyGeo, hashEtag, meta.ETag)
		} else {
			pipe.HDel(ctx, KeyGeo, hashEtag)
		}
		pipe.Publish(ctx, ChannelChanges, string(domain.FieldGeoDomains))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit geo set: %w", err)
	}
	return nil
}

// GetGeoSummary reads readiness, size and cache metadata of the committed
// geo set without loading the domains. Sets committed without a stored
// count are measured by a full read.
func (s *Store) GetGeoSummary(ctx context.Context) (domain.GeoSummary, error) {
	vals, err := s.client.HMGet(ctx, KeyGeo, hashReady, hashCount, hashEtag, hashLastUpdate).Result()
	if err != nil {
		return domain.GeoSummary{}, fmt.Errorf("failed to get geo summary: %w", err)
	}
	field := func(i int) string {
		v, _ := vals[i].(string)
		return v
	}

	var sum domain.GeoSummary
	sum.Ready, _ = strconv.ParseBool(field(0))
	sum.Meta.ETag = field(2)
	if ts := field(3); ts != "" {
		sum.Meta.LastUpdate, _ = strconv.ParseInt(ts, 10, 64)
	}

	count := field(1)
	if count == "" {
		if !sum.Ready {
			return sum, nil
		}
		snap, err := s.GetGeo(ctx)
		if err != nil {
			return domain.GeoSummary{}, err
		}
		sum.Count = len(snap.Domains)
		return sum, nil
	}
	if sum.Count, err = strconv.Atoi(count); err != nil {
		return domain.GeoSummary{}, fmt.Errorf("failed to parse geo count %q: %w", count, err)
	}
	return sum, nil
}
