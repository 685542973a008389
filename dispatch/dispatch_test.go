package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/outpost/balancer"
	"github.com/ceyewan/outpost/breaker"
	"github.com/ceyewan/outpost/ratelimit"
	"github.com/ceyewan/outpost/transport"
)

// fastConfig 时间压缩的测试配置：高速率避免限速等待拖慢测试
func fastConfig(workers int, urls ...string) *Config {
	cfg := &Config{
		WorkerCount: workers,
		TakeTimeout: 20 * time.Millisecond,
		RateLimit: ratelimit.Config{
			MinRate:     100,
			MaxRate:     10000,
			InitialRate: 1000,
		},
	}
	for _, u := range urls {
		cfg.Balancer.Endpoints = append(cfg.Balancer.Endpoints, balancer.EndpointConfig{URL: u})
	}
	return cfg
}

func startDispatcher(t *testing.T, cfg *Config, opts ...Option) Dispatcher {
	t.Helper()
	d, err := New(cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, d.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		d.Stop(ctx)
	})
	return d
}

func TestDispatchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	d := startDispatcher(t, fastConfig(2, server.URL))

	got := make(chan *transport.Response, 1)
	req := transport.NewRequest(http.MethodPost, "/v1/items", []byte(`{"a":1}`),
		transport.WithCallback(func(resp *transport.Response, _ any) { got <- resp }, nil))

	require.NoError(t, d.Submit(req))

	select {
	case resp := <-got:
		require.NotNil(t, resp)
		assert.True(t, resp.Success())
		assert.Equal(t, []byte(`{"ok":true}`), resp.Body)
	case <-time.After(3 * time.Second):
		t.Fatal("callback not invoked")
	}

	stats := d.Stats()
	assert.Equal(t, uint64(1), stats.Submitted)
	assert.Equal(t, uint64(1), stats.Success)
	assert.Equal(t, uint64(0), stats.Failed)
}

func TestDispatchCacheHit(t *testing.T) {
	var serverHits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverHits.Add(1)
		w.Write([]byte(`cached`))
	}))
	defer server.Close()

	d := startDispatcher(t, fastConfig(1, server.URL))

	submit := func() *transport.Response {
		got := make(chan *transport.Response, 1)
		req := transport.NewRequest(http.MethodGet, "/v1/static", nil,
			transport.WithCallback(func(resp *transport.Response, _ any) { got <- resp }, nil))
		require.NoError(t, d.Submit(req))
		select {
		case resp := <-got:
			return resp
		case <-time.After(3 * time.Second):
			t.Fatal("callback not invoked")
			return nil
		}
	}

	first := submit()
	second := submit()

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.Body, second.Body)

	// 第二次命中缓存，不触发网络
	assert.Equal(t, int64(1), serverHits.Load())
	stats := d.Stats()
	assert.Equal(t, uint64(1), stats.CacheHits)
	assert.Equal(t, uint64(1), stats.Success)
}

func TestDispatchThrottleRetry(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`ok`))
	}))
	defer server.Close()

	d := startDispatcher(t, fastConfig(1, server.URL))

	got := make(chan *transport.Response, 2)
	req := transport.NewRequest(http.MethodPost, "/v1/retry", []byte(`x`),
		transport.WithCallback(func(resp *transport.Response, _ any) { got <- resp }, nil))

	require.NoError(t, d.Submit(req))

	// 每次尝试恰好一次回调：先 429 的 nil，再重试成功的结果
	var results []*transport.Response
	for i := 0; i < 2; i++ {
		select {
		case resp := <-got:
			results = append(results, resp)
		case <-time.After(5 * time.Second):
			t.Fatalf("callback %d not invoked", i+1)
		}
	}

	assert.Nil(t, results[0])
	require.NotNil(t, results[1])
	assert.True(t, results[1].Success())

	// 重试计数恰好加一
	assert.Equal(t, 1, req.RetryCount)

	stats := d.Stats()
	assert.Equal(t, uint64(1), stats.Throttled)
	assert.Equal(t, uint64(1), stats.Retries)
	assert.Equal(t, uint64(1), stats.Success)
	// 429 不触碰熔断器
	assert.Equal(t, "closed", stats.Breaker.State)
	assert.Equal(t, 0, stats.Breaker.Failures)
}

func TestDispatchRetryBudgetExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	d := startDispatcher(t, fastConfig(1, server.URL))

	got := make(chan *transport.Response, 4)
	req := transport.NewRequest(http.MethodGet, "/v1/always429", nil,
		transport.WithMaxRetries(1),
		transport.WithCallback(func(resp *transport.Response, _ any) { got <- resp }, nil))

	require.NoError(t, d.Submit(req))

	// 原始尝试 + 1 次重试，之后预算耗尽不再入队
	for i := 0; i < 2; i++ {
		select {
		case resp := <-got:
			assert.Nil(t, resp)
		case <-time.After(5 * time.Second):
			t.Fatalf("callback %d not invoked", i+1)
		}
	}

	select {
	case <-got:
		t.Fatal("unexpected extra attempt after retry budget exhausted")
	case <-time.After(300 * time.Millisecond):
	}

	assert.Equal(t, 1, req.RetryCount)
	assert.Equal(t, uint64(2), d.Stats().Throttled)
}

func TestDispatchBreakerRejects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := fastConfig(1, server.URL)
	cfg.Breaker = breaker.Config{FailureThreshold: 2, RecoveryTimeout: time.Hour}

	d := startDispatcher(t, cfg)

	submit := func(path string) *transport.Response {
		got := make(chan *transport.Response, 1)
		req := transport.NewRequest(http.MethodGet, path, nil,
			transport.WithCallback(func(resp *transport.Response, _ any) { got <- resp }, nil))
		require.NoError(t, d.Submit(req))
		select {
		case resp := <-got:
			return resp
		case <-time.After(3 * time.Second):
			t.Fatal("callback not invoked")
			return nil
		}
	}

	// 两次失败后熔断器打开
	assert.Nil(t, submit("/a"))
	assert.Nil(t, submit("/b"))
	require.Equal(t, "open", d.Stats().Breaker.State)

	// 第三次尝试被快速拒绝：rejection 而非 failure
	assert.Nil(t, submit("/c"))

	stats := d.Stats()
	assert.Equal(t, uint64(2), stats.Failed)
	assert.Equal(t, uint64(1), stats.Rejected)
}

func TestDispatchStop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`ok`))
	}))
	defer server.Close()

	d := startDispatcher(t, fastConfig(2, server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	t.Run("停止后提交返回 ErrStopped", func(t *testing.T) {
		err := d.Submit(transport.NewRequest(http.MethodGet, "/", nil))
		assert.ErrorIs(t, err, ErrStopped)
	})

	t.Run("重复停止无害", func(t *testing.T) {
		assert.NoError(t, d.Stop(context.Background()))
	})
}

func TestDispatchSubmitBackpressure(t *testing.T) {
	// 不启动工作协程，队列容量 1：第二次提交触发背压
	cfg := fastConfig(1, "https://upstream.invalid")
	cfg.Queue.Capacity = 1

	d, err := New(cfg)
	require.NoError(t, err)

	require.NoError(t, d.Submit(transport.NewRequest(http.MethodGet, "/a", nil)))
	assert.ErrorIs(t, d.Submit(transport.NewRequest(http.MethodGet, "/b", nil)), ErrQueueSaturated)
}

func TestDispatchStatsEndpoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`ok`))
	}))
	defer server.Close()

	d := startDispatcher(t, fastConfig(1, server.URL))

	got := make(chan struct{}, 1)
	req := transport.NewRequest(http.MethodGet, "/v1/x", nil,
		transport.WithCallback(func(resp *transport.Response, _ any) { got <- struct{}{} }, nil))
	require.NoError(t, d.Submit(req))
	<-got

	stats := d.Stats()
	require.Len(t, stats.Endpoints, 1)
	ep := stats.Endpoints[0]
	assert.Equal(t, server.URL, ep.URL)
	assert.Equal(t, uint64(1), ep.Success)
	assert.Equal(t, 1.0, ep.Health)
	assert.Positive(t, stats.Uptime)
}

func TestRegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`ok`))
	}))
	defer server.Close()

	d := startDispatcher(t, fastConfig(1, server.URL))

	router := gin.New()
	RegisterRoutes(router, d)

	t.Run("stats 路由", func(t *testing.T) {
		w := httptest.NewRecorder()
		r, _ := http.NewRequest(http.MethodGet, "/stats", nil)
		router.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Contains(t, body, "breaker")
		assert.Contains(t, body, "queue")
		assert.Contains(t, body, "endpoints")
	})

	t.Run("healthz 路由", func(t *testing.T) {
		w := httptest.NewRecorder()
		r, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "closed")
	})
}
