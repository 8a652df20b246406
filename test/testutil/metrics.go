package testutil

import (
	"sync"
	"sync/atomic"

	"github.com/arloliu/tugraph/types"
)

// TestMetricsCollector is a test implementation of types.MetricsCollector
// that tracks method calls for assertion in tests.
type TestMetricsCollector struct {
	mu sync.RWMutex

	// Requests, keyed by "node/kind"
	RequestTotal    map[string]int64
	RequestErrors   map[string]int64
	RequestDuration map[string][]float64
	RetryTotal      map[string]int64

	// Topology
	LeaderChanges map[string]int64 // key: "from->to"
	TopologyNodes int

	// Drain mode
	NodeDraining map[string]bool

	refreshTotal    atomic.Int64
	refreshErrors   atomic.Int64
	packagesSent    atomic.Int64
	packagesSkipped atomic.Int64
}

// Compile-time assertion that TestMetricsCollector implements types.MetricsCollector.
var _ types.MetricsCollector = (*TestMetricsCollector)(nil)

// NewTestMetricsCollector creates a new test metrics collector.
func NewTestMetricsCollector() *TestMetricsCollector {
	m := &TestMetricsCollector{}
	m.Reset()

	return m
}

func requestKey(node string, kind types.RequestKind) string {
	return node + "/" + string(kind)
}

// ----------------------
// Requests
// ----------------------

func (m *TestMetricsCollector) IncRequestTotal(node string, kind types.RequestKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestTotal[requestKey(node, kind)]++
}

func (m *TestMetricsCollector) IncRequestError(node string, kind types.RequestKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestErrors[requestKey(node, kind)]++
}

func (m *TestMetricsCollector) ObserveRequestDuration(node string, kind types.RequestKind, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := requestKey(node, kind)
	m.RequestDuration[key] = append(m.RequestDuration[key], seconds)
}

func (m *TestMetricsCollector) IncRetryTotal(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RetryTotal[operation]++
}

// ----------------------
// Topology
// ----------------------

func (m *TestMetricsCollector) IncRefreshTotal() {
	m.refreshTotal.Add(1)
}

func (m *TestMetricsCollector) IncRefreshError() {
	m.refreshErrors.Add(1)
}

func (m *TestMetricsCollector) SetTopologyNodes(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TopologyNodes = count
}

func (m *TestMetricsCollector) IncLeaderChange(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LeaderChanges[from+"->"+to]++
}

// ----------------------
// Drain Mode
// ----------------------

func (m *TestMetricsCollector) SetNodeDraining(node string, draining bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NodeDraining[node] = draining
}

// ----------------------
// Import
// ----------------------

func (m *TestMetricsCollector) IncImportPackageSent() {
	m.packagesSent.Add(1)
}

func (m *TestMetricsCollector) IncImportPackageSkipped() {
	m.packagesSkipped.Add(1)
}

// ----------------------
// Test Helpers
// ----------------------

// GetRequestTotal returns the request count for a node and kind.
func (m *TestMetricsCollector) GetRequestTotal(node string, kind types.RequestKind) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestTotal[requestKey(node, kind)]
}

// GetRequestErrors returns the failed request count for a node and kind.
func (m *TestMetricsCollector) GetRequestErrors(node string, kind types.RequestKind) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestErrors[requestKey(node, kind)]
}

// GetRetryTotal returns the retry count for an operation.
func (m *TestMetricsCollector) GetRetryTotal(operation string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RetryTotal[operation]
}

// GetLeaderChanges returns the number of observed leader changes from one node to another.
func (m *TestMetricsCollector) GetLeaderChanges(from, to string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LeaderChanges[from+"->"+to]
}

// GetTopologyNodes returns the last reported topology size.
func (m *TestMetricsCollector) GetTopologyNodes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.TopologyNodes
}

// IsNodeDraining returns the last reported drain state of a node.
func (m *TestMetricsCollector) IsNodeDraining(node string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.NodeDraining[node]
}

// GetRefreshTotal returns the number of topology refreshes.
func (m *TestMetricsCollector) GetRefreshTotal() int64 {
	return m.refreshTotal.Load()
}

// GetRefreshErrors returns the number of failed topology refreshes.
func (m *TestMetricsCollector) GetRefreshErrors() int64 {
	return m.refreshErrors.Load()
}

// GetPackagesSent returns the number of import packages dispatched.
func (m *TestMetricsCollector) GetPackagesSent() int64 {
	return m.packagesSent.Load()
}

// GetPackagesSkipped returns the number of import packages skipped.
func (m *TestMetricsCollector) GetPackagesSkipped() int64 {
	return m.packagesSkipped.Load()
}

// Reset clears all collected metrics.
func (m *TestMetricsCollector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RequestTotal = make(map[string]int64)
	m.RequestErrors = make(map[string]int64)
	m.RequestDuration = make(map[string][]float64)
	m.RetryTotal = make(map[string]int64)
	m.LeaderChanges = make(map[string]int64)
	m.TopologyNodes = 0
	m.NodeDraining = make(map[string]bool)

	m.refreshTotal.Store(0)
	m.refreshErrors.Store(0)
	m.packagesSent.Store(0)
	m.packagesSkipped.Store(0)
}
