package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ceyewan/outpost/clog"
	"github.com/ceyewan/outpost/metrics"
)

// adaptiveLimiter Limiter 的实现：包装 rate.Limiter 负责节奏，
// 自身只维护速率调整与观测窗口。所有访问在 mu 下串行化。
//
// burst 固定为 1，发送间隔即 1/rate。
type adaptiveLimiter struct {
	cfg    *Config
	logger clog.Logger

	mu      sync.Mutex
	limiter *rate.Limiter
	rate    float64
	window  []time.Time
	success uint64
	errors  uint64

	rateGauge     metrics.Gauge
	recordCounter metrics.Counter

	// now 可注入，测试用
	now func() time.Time
}

func newAdaptiveLimiter(cfg *Config, opt *options) *adaptiveLimiter {
	l := &adaptiveLimiter{
		cfg:     cfg,
		logger:  opt.logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.InitialRate), 1),
		rate:    cfg.InitialRate,
		now:     time.Now,
	}

	if opt.meter != nil {
		l.rateGauge, _ = opt.meter.Gauge(MetricCurrentRate, "Current adaptive rate in requests per second")
		l.recordCounter, _ = opt.meter.Counter(MetricRecordTotal, "Number of recorded outcomes")
	}

	l.logger.Info("adaptive rate limiter created",
		clog.Float64("initial_rate", cfg.InitialRate),
		clog.Float64("min_rate", cfg.MinRate),
		clog.Float64("max_rate", cfg.MaxRate))
	return l
}

// interval 当前速率对应的最小发送间隔
func (l *adaptiveLimiter) interval() time.Duration {
	return time.Duration(float64(time.Second) / l.rate)
}

// Allow 判断当前是否允许立即发送
func (l *adaptiveLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !l.limiter.AllowN(now, 1) {
		return false
	}
	l.markSend(now, now)
	return true
}

// Delay 返回距下一次允许发送的等待时长。
// 预约后立即取消，令牌账目原样恢复，对外表现为只读。
func (l *adaptiveLimiter) Delay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	r := l.limiter.ReserveN(now, 1)
	d := r.DelayFrom(now)
	r.CancelAt(now)
	return d
}

// Reserve 登记下一次发送并返回应等待的时长
func (l *adaptiveLimiter) Reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	d := l.limiter.ReserveN(now, 1).DelayFrom(now)
	l.markSend(now, now.Add(d))
	return d
}

// markSend 记录一次发送时间戳并裁剪观测窗口。调用方必须持有 mu。
func (l *adaptiveLimiter) markSend(now, at time.Time) {
	l.window = append(l.window, at)
	l.pruneWindow(now)
}

// pruneWindow 裁剪观测窗口之外的时间戳。调用方必须持有 mu。
func (l *adaptiveLimiter) pruneWindow(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	i := 0
	for ; i < len(l.window); i++ {
		if l.window[i].After(cutoff) {
			break
		}
	}
	if i > 0 {
		l.window = l.window[i:]
	}
}

// Record 记录请求结果并调整速率
func (l *adaptiveLimiter) Record(success bool, latency time.Duration) {
	l.mu.Lock()

	outcome := metrics.OutcomeError
	if success {
		l.success++
		l.rate *= l.cfg.SuccessFactor
		if l.rate > l.cfg.MaxRate {
			l.rate = l.cfg.MaxRate
		}
		outcome = metrics.OutcomeSuccess
	} else {
		l.errors++
		l.rate *= l.cfg.FailureFactor
		if l.rate < l.cfg.MinRate {
			l.rate = l.cfg.MinRate
		}
	}
	l.limiter.SetLimitAt(l.now(), rate.Limit(l.rate))
	newRate := l.rate
	l.mu.Unlock()

	if l.recordCounter != nil {
		l.recordCounter.Inc(context.Background(), metrics.L(metrics.LabelOutcome, outcome))
	}
	if l.rateGauge != nil {
		l.rateGauge.Set(context.Background(), newRate)
	}

	l.logger.Debug("outcome recorded",
		clog.Bool("success", success),
		clog.Duration("latency", latency),
		clog.Float64("rate", newRate))
}

// Snapshot 返回当前状态快照
func (l *adaptiveLimiter) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneWindow(l.now())
	return Snapshot{
		CurrentRate:     l.rate,
		MinRate:         l.cfg.MinRate,
		MaxRate:         l.cfg.MaxRate,
		RequestsLastMin: len(l.window),
		Success:         l.success,
		Errors:          l.errors,
		Interval:        l.interval(),
	}
}
