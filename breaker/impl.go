package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/outpost/clog"
	"github.com/ceyewan/outpost/metrics"
)

// circuitBreaker Breaker 的实现。
// 所有状态转移在 mu 下串行化，转移只发生在 Allow / Record* 内部。
type circuitBreaker struct {
	cfg    *Config
	logger clog.Logger

	mu             sync.Mutex
	state          State
	failures       int
	trialSuccesses int
	lastFailure    time.Time
	rejections     uint64

	stateGauge        metrics.Gauge
	transitionCounter metrics.Counter

	// now 可注入，测试用
	now func() time.Time
}

func newCircuitBreaker(cfg *Config, opt *options) *circuitBreaker {
	b := &circuitBreaker{
		cfg:    cfg,
		logger: opt.logger,
		state:  StateClosed,
		now:    time.Now,
	}

	if opt.meter != nil {
		b.stateGauge, _ = opt.meter.Gauge(MetricState, "Current breaker state (0=closed 1=open 2=half_open)")
		b.transitionCounter, _ = opt.meter.Counter(MetricTransitionTotal, "Number of state transitions")
	}

	b.logger.Info("circuit breaker created",
		clog.Int("failure_threshold", cfg.FailureThreshold),
		clog.Duration("recovery_timeout", cfg.RecoveryTimeout),
		clog.Int("success_threshold", cfg.SuccessThreshold))
	return b
}

// transition 执行状态转移。调用方必须持有 mu。
func (b *circuitBreaker) transition(to State) {
	from := b.state
	b.state = to

	b.logger.Warn("breaker state changed",
		clog.String("from", from.String()),
		clog.String("to", to.String()),
		clog.Int("failures", b.failures))

	if b.transitionCounter != nil {
		b.transitionCounter.Inc(context.Background(),
			metrics.L(metrics.LabelState, to.String()))
	}
	if b.stateGauge != nil {
		b.stateGauge.Set(context.Background(), float64(to))
	}
}

// Allow 准入检查
func (b *circuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailure) >= b.cfg.RecoveryTimeout {
			b.trialSuccesses = 0
			b.transition(StateHalfOpen)
			return true
		}
		b.rejections++
		return false
	default:
		return false
	}
}

// RecordSuccess 记录一次成功
func (b *circuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0

	if b.state == StateHalfOpen {
		b.trialSuccesses++
		if b.trialSuccesses >= b.cfg.SuccessThreshold {
			b.trialSuccesses = 0
			b.transition(StateClosed)
		}
	}
}

// RecordFailure 记录一次失败
func (b *circuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		// 试探期任何失败立即回到 Open
		b.failures++
		b.transition(StateOpen)
	case StateOpen:
		b.failures++
	}
}

// State 返回当前状态
func (b *circuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot 返回当前状态快照
func (b *circuitBreaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		State:          b.state.String(),
		Failures:       b.failures,
		TrialSuccesses: b.trialSuccesses,
		Rejections:     b.rejections,
		LastFailure:    b.lastFailure,
	}
}
