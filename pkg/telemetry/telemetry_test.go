package telemetry

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordWriteCountsByLabels(t *testing.T) {
	m := New()
	m.RecordWrite("direct", "approve", OutcomeOK)
	m.RecordWrite("direct", "approve", OutcomeOK)
	m.RecordWrite("direct", "deposit", OutcomeReverted)

	require.Equal(t, 2.0, testutil.ToFloat64(m.Writes().WithLabelValues("direct", "approve", OutcomeOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Writes().WithLabelValues("direct", "deposit", OutcomeReverted)))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.RecordRead("allowance", OutcomeOK)
		m.RecordWrite("direct", "approve", OutcomeOK)
		m.RecordQuote("direct", OutcomeNone)
		m.RecordStaleQuote("direct")
	})
}

func TestWriteTextExportsOnlyEngineCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()
	m.MustRegister(reg)

	other := prometheus.NewCounter(prometheus.CounterOpts{Name: "unrelated_total", Help: "x"})
	reg.MustRegister(other)
	other.Inc()

	m.RecordWrite("direct", "deposit", OutcomeOK)
	m.RecordRead("allowance", OutcomeFailed)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, reg))

	out := buf.String()
	require.Contains(t, out, `vault_solver_writes_total{operation="deposit",outcome="ok",strategy="direct"} 1`)
	require.Contains(t, out, `vault_solver_reads_total{method="allowance",outcome="failed"} 1`)
	require.NotContains(t, out, "unrelated_total")
}
