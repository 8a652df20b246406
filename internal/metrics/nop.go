// Package metrics provides internal metrics utilities for the tugraph client.
package metrics

import "github.com/arloliu/tugraph/types"

// NopMetrics is a no-op metrics collector that discards all metrics.
//
// This is used as the default metrics collector when no collector is configured,
// avoiding nil checks throughout the codebase.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements types.MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNopMetrics creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A collector that discards all metrics
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// ----------------------
// Requests
// ----------------------

// IncRequestTotal discards the metric.
func (m *NopMetrics) IncRequestTotal(_ string, _ types.RequestKind) {}

// IncRequestError discards the metric.
func (m *NopMetrics) IncRequestError(_ string, _ types.RequestKind) {}

// ObserveRequestDuration discards the metric.
func (m *NopMetrics) ObserveRequestDuration(_ string, _ types.RequestKind, _ float64) {}

// IncRetryTotal discards the metric.
func (m *NopMetrics) IncRetryTotal(_ string) {}

// ----------------------
// Topology
// ----------------------

// IncRefreshTotal discards the metric.
func (m *NopMetrics) IncRefreshTotal() {}

// IncRefreshError discards the metric.
func (m *NopMetrics) IncRefreshError() {}

// SetTopologyNodes discards the metric.
func (m *NopMetrics) SetTopologyNodes(_ int) {}

// IncLeaderChange discards the metric.
func (m *NopMetrics) IncLeaderChange(_, _ string) {}

// ----------------------
// Drain Mode
// ----------------------

// SetNodeDraining discards the metric.
func (m *NopMetrics) SetNodeDraining(_ string, _ bool) {}

// ----------------------
// Import
// ----------------------

// IncImportPackageSent discards the metric.
func (m *NopMetrics) IncImportPackageSent() {}

// IncImportPackageSkipped discards the metric.
func (m *NopMetrics) IncImportPackageSkipped() {}
