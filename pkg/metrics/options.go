// Package metrics provides Prometheus metrics for the groupsplit service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace replaces the "groupsplit" metric prefix.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem replaces the "picker" subsystem.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithLatencyBuckets sets exponential millisecond buckets for every latency
// histogram: count buckets starting at start, each factor times the last.
// Invalid shapes keep the default.
func WithLatencyBuckets(start, factor float64, count int) Option {
	return func(m *Manager) {
		if start > 0 && factor > 1 && count > 0 {
			m.histogramBuckets = prometheus.ExponentialBuckets(start, factor, count)
		}
	}
}

// WithPrometheusRegistry registers collectors on registry instead of the
// default registerer.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
