package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, func() float64 { return 4 })

	m.SendsTotal.WithLabelValues("sent").Inc()
	m.SendsTotal.WithLabelValues("sent").Inc()
	m.QueueSize.Set(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SendsTotal.WithLabelValues("sent")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.QueueSize))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.EventsDropped))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestDiscardIsIndependent(t *testing.T) {
	a := Discard()
	b := Discard()
	a.SlowSends.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SlowSends))
}
