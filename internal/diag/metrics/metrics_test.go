package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMustRegisterDoesNotPanicOnFreshRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() { MustRegister(reg) })
}

func TestArenaGaugeTracksLabeledScopes(t *testing.T) {
	ArenaBytesInUse.Reset()
	ArenaBytesInUse.WithLabelValues("misc").Set(1024)
	assert.Equal(t, float64(1024), testutil.ToFloat64(ArenaBytesInUse.WithLabelValues("misc")))
}

func TestEventsDispatchedCountsPerSubstrateAndKind(t *testing.T) {
	EventsDispatched.Reset()
	EventsDispatched.WithLabelValues("trace", "enter").Inc()
	EventsDispatched.WithLabelValues("trace", "enter").Inc()
	assert.Equal(t, float64(2), testutil.ToFloat64(EventsDispatched.WithLabelValues("trace", "enter")))
}
