package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg), "second Register against the same registry must not error")
}

func TestActiveMountsGaugeTracksSets(t *testing.T) {
	ActiveMounts.Set(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(ActiveMounts))
}
