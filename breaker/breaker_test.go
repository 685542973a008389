package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/outpost/clog"
)

func newTestBreaker(t *testing.T, cfg *Config) *circuitBreaker {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	require.NoError(t, cfg.validate())
	return newCircuitBreaker(cfg, &options{logger: clog.Discard()})
}

func TestBreakerDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.validate())

	assert.Equal(t, 5, cfg.FailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.RecoveryTimeout)
	assert.Equal(t, 3, cfg.SuccessThreshold)
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := newTestBreaker(t, &Config{FailureThreshold: 2, RecoveryTimeout: time.Minute})

	base := time.Now()
	b.now = func() time.Time { return base }

	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())

	t.Run("恢复窗口内拒绝", func(t *testing.T) {
		assert.False(t, b.Allow())
		assert.Equal(t, uint64(1), b.Snapshot().Rejections)
	})

	t.Run("恢复窗口后惰性切换到半开", func(t *testing.T) {
		b.now = func() time.Time { return base.Add(61 * time.Second) }
		assert.True(t, b.Allow())
		assert.Equal(t, StateHalfOpen, b.State())
	})
}

func TestBreakerHalfOpenToClose(t *testing.T) {
	b := newTestBreaker(t, &Config{FailureThreshold: 1, RecoveryTimeout: time.Minute, SuccessThreshold: 3})

	base := time.Now()
	b.now = func() time.Time { return base }

	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	b.now = func() time.Time { return base.Add(2 * time.Minute) }
	require.True(t, b.Allow())
	require.Equal(t, StateHalfOpen, b.State())

	b.RecordSuccess()
	b.RecordSuccess()
	assert.Equal(t, StateHalfOpen, b.State())

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Snapshot().Failures)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := newTestBreaker(t, &Config{FailureThreshold: 1, RecoveryTimeout: time.Minute})

	base := time.Now()
	b.now = func() time.Time { return base }

	b.RecordFailure()
	b.now = func() time.Time { return base.Add(2 * time.Minute) }
	require.True(t, b.Allow())
	require.Equal(t, StateHalfOpen, b.State())

	// 试探期单次失败立即回到 Open，并刷新失败时间
	failAt := base.Add(2 * time.Minute)
	b.now = func() time.Time { return failAt }
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())

	// 新的失败时间重新计时
	b.now = func() time.Time { return failAt.Add(30 * time.Second) }
	assert.False(t, b.Allow())
	b.now = func() time.Time { return failAt.Add(61 * time.Second) }
	assert.True(t, b.Allow())
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := newTestBreaker(t, &Config{FailureThreshold: 3})

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, 2, b.Snapshot().Failures)

	// 成功总是清零失败计数，零散失败不跨时段累积
	b.RecordSuccess()
	assert.Equal(t, 0, b.Snapshot().Failures)

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
