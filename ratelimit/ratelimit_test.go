package ratelimit

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/outpost/clog"
)

func newTestLimiter(t *testing.T, cfg *Config) *adaptiveLimiter {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	require.NoError(t, cfg.validate())
	return newAdaptiveLimiter(cfg, &options{logger: clog.Discard()})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"默认配置合法", Config{}, false},
		{"上限低于下限", Config{MinRate: 10, MaxRate: 5, InitialRate: 10}, true},
		{"初始速率越界", Config{MinRate: 1, MaxRate: 10, InitialRate: 50}, true},
		{"回退因子非法", Config{FailureFactor: 1.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecordAdjustsRate(t *testing.T) {
	t.Run("成功缓慢增长并封顶", func(t *testing.T) {
		l := newTestLimiter(t, &Config{MinRate: 1, MaxRate: 12, InitialRate: 10})

		l.Record(true, 10*time.Millisecond)
		assert.InDelta(t, 10.5, l.Snapshot().CurrentRate, 1e-9)

		for i := 0; i < 50; i++ {
			l.Record(true, 10*time.Millisecond)
		}
		assert.Equal(t, 12.0, l.Snapshot().CurrentRate)
	})

	t.Run("失败快速回退并触底", func(t *testing.T) {
		l := newTestLimiter(t, &Config{MinRate: 2, MaxRate: 100, InitialRate: 10})

		l.Record(false, 10*time.Millisecond)
		assert.InDelta(t, 8.0, l.Snapshot().CurrentRate, 1e-9)

		for i := 0; i < 50; i++ {
			l.Record(false, 10*time.Millisecond)
		}
		assert.Equal(t, 2.0, l.Snapshot().CurrentRate)
	})
}

// TestRateStaysWithinBounds 任意结果序列下速率始终保持在 [MinRate, MaxRate]
func TestRateStaysWithinBounds(t *testing.T) {
	l := newTestLimiter(t, &Config{MinRate: 1, MaxRate: 100, InitialRate: 10})

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		l.Record(rng.Intn(2) == 0, time.Millisecond)
		rate := l.Snapshot().CurrentRate
		require.GreaterOrEqual(t, rate, 1.0)
		require.LessOrEqual(t, rate, 100.0)
	}
}

func TestAllowAndDelay(t *testing.T) {
	l := newTestLimiter(t, &Config{MinRate: 1, MaxRate: 100, InitialRate: 10})

	base := time.Now()
	now := base
	l.now = func() time.Time { return now }

	// 首次发送立即允许
	assert.True(t, l.Allow())

	// 间隔未到：Allow 拒绝，Delay 报告剩余等待
	assert.False(t, l.Allow())
	d := l.Delay()
	assert.Greater(t, d, time.Duration(0))
	assert.LessOrEqual(t, d, 100*time.Millisecond)

	// Delay 只读：重复调用结果不变
	assert.Equal(t, d, l.Delay())

	// 间隔过后恢复允许
	now = base.Add(150 * time.Millisecond)
	assert.Equal(t, time.Duration(0), l.Delay())
	assert.True(t, l.Allow())
}

func TestReserveStaggersSenders(t *testing.T) {
	l := newTestLimiter(t, &Config{MinRate: 1, MaxRate: 100, InitialRate: 10})

	now := time.Now()
	l.now = func() time.Time { return now }

	// 同一时刻的三次预约按 100ms 间隔错开
	assert.Equal(t, time.Duration(0), l.Reserve())
	assert.Equal(t, 100*time.Millisecond, l.Reserve())
	assert.Equal(t, 200*time.Millisecond, l.Reserve())
}

// TestPacingFollowsAdjustedRate 速率调整后续预约按新间隔错开
func TestPacingFollowsAdjustedRate(t *testing.T) {
	l := newTestLimiter(t, &Config{MinRate: 1, MaxRate: 100, InitialRate: 10})

	now := time.Now()
	l.now = func() time.Time { return now }

	require.Equal(t, time.Duration(0), l.Reserve())

	// 两次失败：10 → 8 → 6.4 请求/秒
	l.Record(false, time.Millisecond)
	l.Record(false, time.Millisecond)
	assert.InDelta(t, 6.4, l.Snapshot().CurrentRate, 1e-9)

	// 下一次发送按 1/6.4s ≈ 156.25ms 错开
	d := l.Reserve()
	assert.InDelta(t, 0.15625, d.Seconds(), 1e-3)

	// 成功后速率回升，新预约间隔同步缩短
	l.Record(true, time.Millisecond)
	assert.InDelta(t, 6.72, l.Snapshot().CurrentRate, 1e-9)
}

func TestSnapshotWindow(t *testing.T) {
	l := newTestLimiter(t, &Config{MinRate: 1, MaxRate: 100, InitialRate: 100, Window: time.Minute})

	base := time.Now()
	now := base
	l.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		l.Reserve()
		now = now.Add(10 * time.Millisecond)
	}
	assert.Equal(t, 5, l.Snapshot().RequestsLastMin)

	// 窗口滑过后旧时间戳被裁剪
	now = base.Add(2 * time.Minute)
	assert.Equal(t, 0, l.Snapshot().RequestsLastMin)
}
