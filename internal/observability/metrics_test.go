package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.RowsExtracted.WithLabelValues("city").Add(3)
	a.FactsDropped.WithLabelValues("city", "missing_location").Inc()
	a.PipelineRunning.Set(1)

	assert.InDelta(t, 3, testutil.ToFloat64(a.RowsExtracted.WithLabelValues("city")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(a.FactsDropped.WithLabelValues("city", "missing_location")), 1e-9)
	assert.InDelta(t, 0, testutil.ToFloat64(b.RowsExtracted.WithLabelValues("city")), 1e-9)
	assert.InDelta(t, 0, testutil.ToFloat64(b.PipelineRunning), 1e-9)
}
