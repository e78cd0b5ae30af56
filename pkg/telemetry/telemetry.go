package telemetry

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Prefix starts the name of every counter registered here
const Prefix = "vault_solver_"

// Outcome labels
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeReverted = "reverted"
	OutcomeNone     = "none"
)

// Metrics holds the engine's counters
type Metrics struct {
	reads       *prometheus.CounterVec
	writes      *prometheus.CounterVec
	quotes      *prometheus.CounterVec
	staleQuotes *prometheus.CounterVec
}

var (
	once     sync.Once
	registry *Metrics
)

// Default returns the process-wide metrics, registering them on first use
func Default() *Metrics {
	once.Do(func() {
		registry = New()
		registry.MustRegister(prometheus.DefaultRegisterer)
	})
	return registry
}

// MustRegister registers every counter with r
func (m *Metrics) MustRegister(r prometheus.Registerer) {
	r.MustRegister(m.reads, m.writes, m.quotes, m.staleQuotes)
}

// WriteText gathers from g and writes this package's families in the text
// exposition format. Families from other collectors are skipped.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), Prefix) {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// New builds an unregistered set of counters. Tests use it to get isolated
// values.
func New() *Metrics {
	return &Metrics{
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: Prefix + "reads_total",
			Help: "Chain reads performed by the engine by method and outcome.",
		}, []string{"method", "outcome"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: Prefix + "writes_total",
			Help: "Submitted approvals and actions by strategy, operation and outcome.",
		}, []string{"strategy", "operation", "outcome"}),
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: Prefix + "quotes_total",
			Help: "Quote computations by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		staleQuotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: Prefix + "stale_quotes_total",
			Help: "Quote results discarded because a newer request superseded them.",
		}, []string{"strategy"}),
	}
}

// RecordRead counts a chain read
func (m *Metrics) RecordRead(method, outcome string) {
	if m == nil {
		return
	}
	m.reads.WithLabelValues(method, outcome).Inc()
}

// RecordWrite counts a submitted write
func (m *Metrics) RecordWrite(strategy, operation, outcome string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(strategy, operation, outcome).Inc()
}

// RecordQuote counts a quote computation
func (m *Metrics) RecordQuote(strategy, outcome string) {
	if m == nil {
		return
	}
	m.quotes.WithLabelValues(strategy, outcome).Inc()
}

// RecordStaleQuote counts a superseded quote result
func (m *Metrics) RecordStaleQuote(strategy string) {
	if m == nil {
		return
	}
	m.staleQuotes.WithLabelValues(strategy).Inc()
}

// Writes exposes the writes counter for inspection
func (m *Metrics) Writes() *prometheus.CounterVec { return m.writes }

// Reads exposes the reads counter for inspection
func (m *Metrics) Reads() *prometheus.CounterVec { return m.reads }

// StaleQuotes exposes the stale quote counter for inspection
func (m *Metrics) StaleQuotes() *prometheus.CounterVec { return m.staleQuotes }
