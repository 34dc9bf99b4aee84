package metrics

import (
	"bytes"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.CacheEviction()
	m.Reduction("specular", nil)
	m.Reduction("specular", errors.New("boom"))
	m.Match("geometry")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheEvictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reductions.WithLabelValues("specular", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reductions.WithLabelValues("specular", OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.matches.WithLabelValues("geometry")))
}

func TestMetrics_RegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.CacheEviction()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.cacheEvictions))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.cacheEvictions))
}

func TestMetrics_WriteText(t *testing.T) {
	m := New()
	m.Match("wavelength")

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))

	assert.Contains(t, buf.String(), `reflred_direct_beam_matches_total{tier="wavelength"} 1`)
	assert.Contains(t, buf.String(), "# TYPE reflred_cache_evictions_total counter")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	m.CacheLookup(true)
	m.CacheEviction()
	m.Reduction("gisans", nil)
	m.Match("geometry")

	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteText(&bytes.Buffer{}))
}
