package balancer

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/ceyewan/outpost/clog"
	"github.com/ceyewan/outpost/metrics"
)

const (
	healthMax     = 1.0
	healthMin     = 0.0
	healthInc     = 0.1
	healthDec     = 0.2
	healthMinPick = 0.5

	// latencyWindow 每端点保留的最近延迟观测数
	latencyWindow = 100
)

// endpoint 单个端点的运行期状态
type endpoint struct {
	url    string
	weight float64

	health    float64
	latencies [latencyWindow]time.Duration
	latIdx    int
	latCount  int
	success   uint64
	errors    uint64
	lastError time.Time
}

// avgLatency 最近观测的平均延迟，无观测时为 0
func (e *endpoint) avgLatency() time.Duration {
	if e.latCount == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < e.latCount; i++ {
		sum += e.latencies[i]
	}
	return sum / time.Duration(e.latCount)
}

// observe 追加一次延迟观测，满时覆盖最老的
func (e *endpoint) observe(latency time.Duration) {
	e.latencies[e.latIdx] = latency
	e.latIdx = (e.latIdx + 1) % latencyWindow
	if e.latCount < latencyWindow {
		e.latCount++
	}
}

// selectionWeight 选取权重：健康分 × 配置权重，平均延迟非零时再除以它
func (e *endpoint) selectionWeight() float64 {
	w := e.health * e.weight
	if avg := e.avgLatency(); avg > 0 {
		w /= avg.Seconds()
	}
	return w
}

// weightedBalancer Balancer 的实现
type weightedBalancer struct {
	logger clog.Logger

	mu        sync.Mutex
	endpoints []*endpoint
	byURL     map[string]*endpoint

	healthGauge    metrics.Gauge
	outcomeCounter metrics.Counter

	// randFloat 可注入，测试用；返回 [0,1) 均匀分布
	randFloat func() float64
}

func newWeightedBalancer(cfg *Config, opt *options) *weightedBalancer {
	b := &weightedBalancer{
		logger:    opt.logger,
		byURL:     make(map[string]*endpoint, len(cfg.Endpoints)),
		randFloat: rand.Float64,
	}

	for _, ec := range cfg.Endpoints {
		ep := &endpoint{
			url:    ec.URL,
			weight: ec.Weight,
			health: healthMax,
		}
		b.endpoints = append(b.endpoints, ep)
		b.byURL[ec.URL] = ep
	}

	if opt.meter != nil {
		b.healthGauge, _ = opt.meter.Gauge(MetricEndpointHealth, "Endpoint health score")
		b.outcomeCounter, _ = opt.meter.Counter(MetricOutcomeTotal, "Number of recorded outcomes per endpoint")
	}

	b.logger.Info("weighted balancer created", clog.Int("endpoints", len(b.endpoints)))
	return b
}

// Select 按加权随机抽取一个端点
func (b *weightedBalancer) Select() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.endpoints) == 0 {
		return "", false
	}

	candidates := make([]*endpoint, 0, len(b.endpoints))
	for _, ep := range b.endpoints {
		if ep.health > healthMinPick {
			candidates = append(candidates, ep)
		}
	}

	// 全部低于阈值时退化为健康分最高的单个端点
	if len(candidates) == 0 {
		best := b.endpoints[0]
		for _, ep := range b.endpoints[1:] {
			if ep.health > best.health {
				best = ep
			}
		}
		return best.url, true
	}

	var total float64
	weights := make([]float64, len(candidates))
	for i, ep := range candidates {
		weights[i] = ep.selectionWeight()
		total += weights[i]
	}
	if total <= 0 {
		return candidates[0].url, true
	}

	draw := b.randFloat() * total
	var cum float64
	for i, ep := range candidates {
		cum += weights[i]
		if cum >= draw {
			return ep.url, true
		}
	}
	return candidates[len(candidates)-1].url, true
}

// RecordOutcome 记录一次请求结果
func (b *weightedBalancer) RecordOutcome(url string, success bool, latency time.Duration) {
	b.mu.Lock()
	ep, ok := b.byURL[url]
	if !ok {
		b.mu.Unlock()
		b.logger.Warn("outcome for unknown endpoint ignored", clog.String("url", url))
		return
	}

	ep.observe(latency)
	outcome := metrics.OutcomeError
	if success {
		ep.success++
		ep.health = min(healthMax, ep.health+healthInc)
		outcome = metrics.OutcomeSuccess
	} else {
		ep.errors++
		ep.health = max(healthMin, ep.health-healthDec)
		ep.lastError = time.Now()
	}
	health := ep.health
	b.mu.Unlock()

	if b.outcomeCounter != nil {
		b.outcomeCounter.Inc(context.Background(),
			metrics.L(metrics.LabelEndpoint, url),
			metrics.L(metrics.LabelOutcome, outcome))
	}
	if b.healthGauge != nil {
		b.healthGauge.Set(context.Background(), health, metrics.L(metrics.LabelEndpoint, url))
	}
}

// Snapshot 返回所有端点状态快照
func (b *weightedBalancer) Snapshot() []EndpointSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snaps := make([]EndpointSnapshot, 0, len(b.endpoints))
	for _, ep := range b.endpoints {
		var rate float64
		if total := ep.success + ep.errors; total > 0 {
			rate = float64(ep.success) / float64(total)
		}
		snaps = append(snaps, EndpointSnapshot{
			URL:         ep.url,
			Weight:      ep.weight,
			Health:      ep.health,
			AvgLatency:  ep.avgLatency(),
			Success:     ep.success,
			Errors:      ep.errors,
			SuccessRate: rate,
			LastError:   ep.lastError,
		})
	}
	return snaps
}
