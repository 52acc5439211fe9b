package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/georoute/internal/domain"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client), mr
}

func TestSettingsRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Settings{}, got)

	changed, err := s.SetEnabled(ctx, true)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.SetEnabled(ctx, true)
	require.NoError(t, err)
	assert.False(t, changed, "same value must not count as a change")

	_, err = s.SetProxyConfig(ctx, "1.2.3.4:8080:alice:secret")
	require.NoError(t, err)

	got, err = s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Settings{Enabled: true, ProxyConfig: "1.2.3.4:8080:alice:secret"}, got)
}

func TestUserSitesRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	sites, err := s.GetUserSites(ctx)
	require.NoError(t, err)
	assert.Empty(t, sites)

	changed, err := s.SetUserSites(ctx, []string{"custom.net", "other.org"})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.SetUserSites(ctx, []string{"custom.net", "other.org"})
	require.NoError(t, err)
	assert.False(t, changed)

	sites, err = s.GetUserSites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"custom.net", "other.org"}, sites)
}

func TestCommitGeoWritesPairTogether(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	snap, err := s.GetGeo(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Ready)
	assert.Empty(t, snap.Domains)

	meta := domain.CacheMetadata{ETag: `"abc"`, LastUpdate: 1700000000000}
	require.NoError(t, s.CommitGeo(ctx, []string{"youtube.com", "googlevideo.com"}, meta))

	snap, err = s.GetGeo(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Ready)
	assert.Equal(t, []string{"youtube.com", "googlevideo.com"}, snap.Domains)
	assert.Equal(t, meta, snap.Meta)

	// a commit without validator drops the old one
	require.NoError(t, s.CommitGeo(ctx, []string{"a.com"}, domain.CacheMetadata{}))
	assert.Equal(t, "", mr.HGet(KeyGeo, hashEtag))

	snap, err = s.GetGeo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", snap.Meta.ETag)
	assert.Equal(t, int64(0), snap.Meta.LastUpdate)
}

func TestGetGeoSummary(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	sum, err := s.GetGeoSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.GeoSummary{}, sum)

	meta := domain.CacheMetadata{ETag: `"abc"`, LastUpdate: 1700000000000}
	require.NoError(t, s.CommitGeo(ctx, []string{"youtube.com", "googlevideo.com", "ytimg.com"}, meta))
	assert.Equal(t, "3", mr.HGet(KeyGeo, hashCount))

	sum, err = s.GetGeoSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.GeoSummary{Ready: true, Count: 3, Meta: meta}, sum)

	// the summary trusts the stored count and never reads the list
	mr.HSet(KeyGeo, hashDomains, "not json")
	sum, err = s.GetGeoSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Count)
}

func TestGetGeoSummaryWithoutStoredCount(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	mr.HSet(KeyGeo, hashDomains, `["a.com","b.com"]`)
	mr.HSet(KeyGeo, hashReady, "true")

	sum, err := s.GetGeoSummary(ctx)
	require.NoError(t, err)
	assert.True(t, sum.Ready)
	assert.Equal(t, 2, sum.Count)

	mr.HSet(KeyGeo, hashCount, "many")
	_, err = s.GetGeoSummary(ctx)
	assert.Error(t, err)
}

func TestProgressLifecycle(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	p, err := s.GetProgress(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)

	want := domain.DownloadProgress{
		Status:          domain.ProgressDownloading,
		Percent:         42,
		DownloadedBytes: 420,
		TotalBytes:      1000,
		Mirror:          "https://mirror.example/geosite.dat",
		UpdatedAt:       time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, s.SetProgress(ctx, want))
	assert.Greater(t, mr.TTL(KeyProgress), time.Duration(0))

	p, err = s.GetProgress(ctx)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, want, *p)

	require.NoError(t, s.ClearProgress(ctx))
	p, err = s.GetProgress(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSubscribeDeliversChangedFields(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := s.Subscribe(ctx)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	_, err = s.SetEnabled(ctx, true)
	require.NoError(t, err)
	require.NoError(t, s.CommitGeo(ctx, []string{"a.com"}, domain.CacheMetadata{}))

	var got []domain.Field
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case f := <-sub.C:
			got = append(got, f)
		case <-timeout:
			t.Fatalf("timed out, got %v", got)
		}
	}
	assert.Equal(t, []domain.Field{domain.FieldEnabled, domain.FieldGeoDomains}, got)
}
