// Package metrics exports counters for the integrity checks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provide validation level metrics.
type Metrics struct {
	Sectors    *prometheus.CounterVec
	Findings   *prometheus.CounterVec
	Failures   *prometheus.CounterVec
	Injections *prometheus.CounterVec
}

// NewMetrics creates a new metrics instance, the instance shall be
// assigned to DefaultMetrics before any validation takes place.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Sectors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validate",
			Name:      "sectors_total",
			Help:      "Sectors checked, by raid type.",
		}, []string{"raid_type"}),
		Findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validate",
			Name:      "findings_total",
			Help:      "Inconsistencies logged without failing the request.",
		}, []string{"raid_type", "kind"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validate",
			Name:      "failures_total",
			Help:      "Inconsistencies which failed the request.",
		}, []string{"raid_type", "kind"}),
		Injections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fault_inject",
			Name:      "forced_total",
			Help:      "Checks forced down their failing branch.",
		}, []string{"function"}),
	}
}

// DefaultMetrics specifies metrics used by the validation engine.
var DefaultMetrics = (*Metrics)(nil)

// Collectors returns all prometheus metrics as collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{
		m.Sectors,
		m.Findings,
		m.Failures,
		m.Injections,
	}
}

// Sector counts a sector checked
func (m *Metrics) Sector(raidType string) {
	if m == nil {
		return
	}
	m.Sectors.WithLabelValues(raidType).Inc()
}

// Finding counts a logged inconsistency
func (m *Metrics) Finding(raidType, kind string) {
	if m == nil {
		return
	}
	m.Findings.WithLabelValues(raidType, kind).Inc()
}

// Failure counts an inconsistency which failed the request
func (m *Metrics) Failure(raidType, kind string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(raidType, kind).Inc()
}

// Injection counts a check forced to fail
func (m *Metrics) Injection(function string) {
	if m == nil {
		return
	}
	m.Injections.WithLabelValues(function).Inc()
}
