package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value returns the sum of all samples of a counter or gauge family whose
// labels include want.
func value(t *testing.T, m *Metrics, name string, want map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			match := true
			for k, v := range want {
				if labels[k] != v {
					match = false
				}
			}
			if !match {
				continue
			}
			if c := metric.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				total += g.GetValue()
			}
		}
	}
	return total
}

func TestRecordIngest(t *testing.T) {
	m := New()

	m.RecordIngest(OutcomeCommitted, time.Second)
	m.RecordIngest(OutcomeCommitted, time.Second)
	m.RecordIngest(OutcomeNotModified, 0)

	assert.Equal(t, 2.0, value(t, m, "georoute_ingest_runs_total", map[string]string{"outcome": OutcomeCommitted}))
	assert.Equal(t, 1.0, value(t, m, "georoute_ingest_runs_total", map[string]string{"outcome": OutcomeNotModified}))
}

func TestRecordCompile(t *testing.T) {
	m := New()

	m.RecordCompile(42, true)
	assert.Equal(t, 42.0, value(t, m, "georoute_policy_domains", nil))
	assert.Equal(t, 1.0, value(t, m, "georoute_policy_active", nil))

	m.RecordCompile(0, false)
	assert.Equal(t, 0.0, value(t, m, "georoute_policy_active", nil))
	assert.Equal(t, 2.0, value(t, m, "georoute_policy_compiles_total", nil))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordIngest(OutcomeFailed, time.Second)
		m.AddDownloadedBytes(10)
		m.RecordMirrorFailure("x")
		m.RecordCommit(1, 1)
		m.RecordCompile(1, true)
		m.RecordChallenge("answered")
		m.RecordHTTPRequest("GET", "/", "200", time.Millisecond)
		m.RecordSettingsReload("ok")
	})
}
