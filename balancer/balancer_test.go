package balancer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/outpost/clog"
)

func newTestBalancer(t *testing.T, urls ...string) *weightedBalancer {
	t.Helper()
	cfg := &Config{}
	for _, u := range urls {
		cfg.Endpoints = append(cfg.Endpoints, EndpointConfig{URL: u})
	}
	require.NoError(t, cfg.validate())
	return newWeightedBalancer(cfg, &options{logger: clog.Discard()})
}

func TestConfigValidate(t *testing.T) {
	t.Run("缺少 URL", func(t *testing.T) {
		cfg := &Config{Endpoints: []EndpointConfig{{Weight: 1}}}
		assert.Error(t, cfg.validate())
	})

	t.Run("权重默认为 1", func(t *testing.T) {
		cfg := &Config{Endpoints: []EndpointConfig{{URL: "https://a"}}}
		require.NoError(t, cfg.validate())
		assert.Equal(t, 1.0, cfg.Endpoints[0].Weight)
	})

	t.Run("负权重非法", func(t *testing.T) {
		cfg := &Config{Endpoints: []EndpointConfig{{URL: "https://a", Weight: -1}}}
		assert.Error(t, cfg.validate())
	})
}

func TestSelectEmptySet(t *testing.T) {
	t.Run("构造拒绝空端点集", func(t *testing.T) {
		_, err := New(&Config{})
		assert.ErrorIs(t, err, ErrNoEndpoints)
	})

	t.Run("运行期端点集为空时选取失败", func(t *testing.T) {
		b := newWeightedBalancer(&Config{}, &options{logger: clog.Discard()})
		url, ok := b.Select()
		assert.False(t, ok)
		assert.Empty(t, url)
	})
}

func TestSelectSkipsUnhealthy(t *testing.T) {
	b := newTestBalancer(t, "https://a", "https://b")

	// b 连续失败，健康分降到 0.4 < 0.5
	for i := 0; i < 3; i++ {
		b.RecordOutcome("https://b", false, 10*time.Millisecond)
	}

	// 只要存在健康分 > 0.5 的端点，就绝不选取低于阈值的
	for i := 0; i < 100; i++ {
		url, ok := b.Select()
		require.True(t, ok)
		assert.Equal(t, "https://a", url)
	}
}

func TestSelectFallsBackToBest(t *testing.T) {
	b := newTestBalancer(t, "https://a", "https://b")

	// 两个端点都降到阈值以下，a 稍好
	for i := 0; i < 3; i++ {
		b.RecordOutcome("https://a", false, time.Millisecond)
	}
	for i := 0; i < 5; i++ {
		b.RecordOutcome("https://b", false, time.Millisecond)
	}

	// 非空集合永远有返回值：退化为健康分最高的端点
	url, ok := b.Select()
	require.True(t, ok)
	assert.Equal(t, "https://a", url)
}

func TestSelectWeightedDraw(t *testing.T) {
	b := newTestBalancer(t, "https://a", "https://b")

	// 两端点同权同健康，抽样值决定归属
	b.randFloat = func() float64 { return 0.0 }
	url, ok := b.Select()
	require.True(t, ok)
	assert.Equal(t, "https://a", url)

	b.randFloat = func() float64 { return 0.99 }
	url, ok = b.Select()
	require.True(t, ok)
	assert.Equal(t, "https://b", url)
}

func TestHealthAdjustment(t *testing.T) {
	b := newTestBalancer(t, "https://a")

	find := func() EndpointSnapshot { return b.Snapshot()[0] }

	t.Run("失败下调 0.2", func(t *testing.T) {
		b.RecordOutcome("https://a", false, time.Millisecond)
		assert.InDelta(t, 0.8, find().Health, 1e-9)
		assert.False(t, find().LastError.IsZero())
	})

	t.Run("成功上调 0.1", func(t *testing.T) {
		b.RecordOutcome("https://a", true, time.Millisecond)
		assert.InDelta(t, 0.9, find().Health, 1e-9)
	})

	t.Run("钳制在 [0,1]", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			b.RecordOutcome("https://a", true, time.Millisecond)
		}
		assert.Equal(t, 1.0, find().Health)

		for i := 0; i < 10; i++ {
			b.RecordOutcome("https://a", false, time.Millisecond)
		}
		assert.Equal(t, 0.0, find().Health)
	})
}

func TestLatencyWindow(t *testing.T) {
	b := newTestBalancer(t, "https://a")

	// 先写满 100 个 10ms 的观测，再追加 100 个 30ms，平均值反映覆盖
	for i := 0; i < latencyWindow; i++ {
		b.RecordOutcome("https://a", true, 10*time.Millisecond)
	}
	assert.Equal(t, 10*time.Millisecond, b.Snapshot()[0].AvgLatency)

	for i := 0; i < latencyWindow; i++ {
		b.RecordOutcome("https://a", true, 30*time.Millisecond)
	}
	assert.Equal(t, 30*time.Millisecond, b.Snapshot()[0].AvgLatency)
}

func TestSnapshotSuccessRate(t *testing.T) {
	b := newTestBalancer(t, "https://a")

	b.RecordOutcome("https://a", true, time.Millisecond)
	b.RecordOutcome("https://a", true, time.Millisecond)
	b.RecordOutcome("https://a", false, time.Millisecond)

	snap := b.Snapshot()[0]
	assert.Equal(t, uint64(2), snap.Success)
	assert.Equal(t, uint64(1), snap.Errors)
	assert.InDelta(t, 2.0/3.0, snap.SuccessRate, 1e-9)
}

func TestRecordOutcomeUnknownEndpoint(t *testing.T) {
	b := newTestBalancer(t, "https://a")
	// 未注册端点的结果被忽略，不 panic
	b.RecordOutcome("https://nope", true, time.Millisecond)
	assert.Len(t, b.Snapshot(), 1)
}

// TestLatencyFavorsFaster 更快的端点获得更大的选取权重
func TestLatencyFavorsFaster(t *testing.T) {
	b := newTestBalancer(t, "https://fast", "https://slow")

	b.RecordOutcome("https://fast", true, 10*time.Millisecond)
	b.RecordOutcome("https://slow", true, 100*time.Millisecond)

	b.mu.Lock()
	fast := b.byURL["https://fast"].selectionWeight()
	slow := b.byURL["https://slow"].selectionWeight()
	b.mu.Unlock()

	assert.Greater(t, fast, slow)
}
