package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arloliu/tugraph/internal/logging"
)

func TestActiveRefreshAlwaysRefreshes(t *testing.T) {
	policy := NewActiveRefresh()

	require.True(t, policy.ShouldRefresh("n1:9090", nil))
	require.True(t, policy.ShouldRefresh("", errors.New("no leader")))
}

func TestCircuitBreakerThreshold(t *testing.T) {
	policy := NewCircuitBreaker(
		WithThreshold(3),
		WithResetTimeout(1*time.Hour),
	)

	require.False(t, policy.ShouldRefresh("n1:9090", nil))

	policy.RecordFailure("n1:9090")
	require.Equal(t, 1, policy.Failures("n1:9090"))
	require.False(t, policy.ShouldRefresh("n1:9090", nil))

	policy.RecordFailure("n1:9090")
	require.Equal(t, 2, policy.Failures("n1:9090"))
	require.False(t, policy.ShouldRefresh("n1:9090", nil))

	policy.RecordFailure("n1:9090")
	require.Equal(t, 3, policy.Failures("n1:9090"))
	require.True(t, policy.ShouldRefresh("n1:9090", nil))
}

func TestCircuitBreakerSuccessResets(t *testing.T) {
	policy := NewCircuitBreaker(WithThreshold(3))

	policy.RecordFailure("n1:9090")
	policy.RecordFailure("n1:9090")
	require.Equal(t, 2, policy.Failures("n1:9090"))

	policy.RecordSuccess("n1:9090")
	require.Equal(t, 0, policy.Failures("n1:9090"))
	require.False(t, policy.ShouldRefresh("n1:9090", nil))
}

func TestCircuitBreakerIndependentNodes(t *testing.T) {
	policy := NewCircuitBreaker(WithThreshold(2))

	policy.RecordFailure("n1:9090")
	policy.RecordFailure("n1:9090")

	require.Equal(t, 2, policy.Failures("n1:9090"))
	require.Equal(t, 0, policy.Failures("n2:9090"))
	require.True(t, policy.ShouldRefresh("n1:9090", nil))
	require.False(t, policy.ShouldRefresh("n2:9090", nil))
}

func TestCircuitBreakerResetTimeout(t *testing.T) {
	policy := NewCircuitBreaker(
		WithThreshold(3),
		WithResetTimeout(10*time.Millisecond),
	)

	policy.RecordFailure("n1:9090")
	policy.RecordFailure("n1:9090")
	require.Equal(t, 2, policy.Failures("n1:9090"))

	time.Sleep(20 * time.Millisecond)

	// Next failure should restart the counter
	policy.RecordFailure("n1:9090")
	require.Equal(t, 1, policy.Failures("n1:9090"))
}

func TestCircuitBreakerLogsTripAndClose(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	policy := NewCircuitBreaker(
		WithThreshold(2),
		WithCircuitBreakerLogger(logging.NewZapLogger(zap.New(core))),
	)

	policy.RecordFailure("n1:9090")
	require.Equal(t, 0, logs.FilterMessage("circuit breaker tripped").Len())

	policy.RecordFailure("n1:9090")
	require.Equal(t, 1, logs.FilterMessage("circuit breaker tripped").Len())

	policy.RecordSuccess("n1:9090")
	require.Equal(t, 1, logs.FilterMessage("circuit breaker closed").Len())
}

func TestCircuitBreakerMinimumThreshold(t *testing.T) {
	policy := NewCircuitBreaker(WithThreshold(0))

	require.False(t, policy.ShouldRefresh("n1:9090", nil))
	policy.RecordFailure("n1:9090")
	require.True(t, policy.ShouldRefresh("n1:9090", nil))
}
