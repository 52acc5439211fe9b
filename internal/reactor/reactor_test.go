package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/MrSnakeDoc/georoute/internal/domain"
)

func TestHandle(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  []Effect
	}{
		{"startup", Event{Kind: Startup}, []Effect{Bootstrap, RefreshCredential, Recompile, RefreshGeo}},
		{"tick", Event{Kind: Tick}, []Effect{RefreshGeo}},
		{"manual refresh", Event{Kind: ManualRefresh}, []Effect{RefreshGeo}},
		{"geo domains", Changed(domain.FieldGeoDomains), []Effect{Recompile}},
		{"proxy config", Changed(domain.FieldProxyConfig), []Effect{RefreshCredential, Recompile}},
		{"enabled", Changed(domain.FieldEnabled), []Effect{Recompile}},
		{"user sites", Changed(domain.FieldUserSites), []Effect{Recompile}},
		{"progress", Changed(domain.FieldDownloadProgress), nil},
		{"etag", Changed(domain.FieldCacheEtag), nil},
		{"ready", Changed(domain.FieldGeoReady), nil},
		{"timestamp", Changed(domain.FieldLastUpdate), nil},
		{"unknown field", Changed("bogus"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := Handle(State{}, tt.event)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandle_StartupOnlyOnce(t *testing.T) {
	s, effects := Handle(State{}, Event{Kind: Startup})
	assert.NotEmpty(t, effects)
	assert.True(t, s.Started)

	s, effects = Handle(s, Event{Kind: Startup})
	assert.Empty(t, effects)
	assert.Equal(t, uint64(2), s.Events)
}

func TestHandle_FieldChangesNeverRefetch(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		field := rapid.SampledFrom(domain.KnownFields).Draw(t, "field")
		_, effects := Handle(State{Started: true}, Changed(field))
		for _, e := range effects {
			if e == RefreshGeo || e == Bootstrap {
				t.Fatalf("field %s produced %s", field, e)
			}
		}
	})
}
