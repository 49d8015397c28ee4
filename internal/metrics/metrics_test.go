package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { RegisterCollectors(reg) })
	require.Panics(t, func() { RegisterCollectors(reg) })

	ToolCalls.WithLabelValues("list_projects", "success").Inc()
	require.Equal(t, float64(1), testutil.ToFloat64(ToolCalls.WithLabelValues("list_projects", "success")))
}
