// Package breaker 提供三态熔断器，作为是否允许继续发送的失败检测器。
//
// 状态机：
//   - Closed（初始）：请求放行。失败累计到 FailureThreshold 后进入 Open。
//   - Open：请求直接拒绝。距最后一次失败超过 RecoveryTimeout 后，
//     下一次准入检查惰性地切换到 HalfOpen 并放行试探流量——
//     切换由准入检查按需驱动，没有后台定时器。
//   - HalfOpen：请求放行。连续成功达到 SuccessThreshold 回到 Closed；
//     任何一次失败立即退回 Open 并刷新失败时间。
//
// RecordSuccess 在任何状态下都会清零失败计数，避免零散失败跨时段累积。
// 状态机无终态，按上述规则无限循环。
//
// ## 基本使用
//
//	cb, _ := breaker.New(&breaker.Config{}, breaker.WithLogger(logger))
//
//	if !cb.Allow() {
//	    return breaker.ErrOpenState
//	}
//	// ... 执行请求 ...
//	if err != nil {
//	    cb.RecordFailure()
//	} else {
//	    cb.RecordSuccess()
//	}
package breaker

import (
	"time"

	"github.com/ceyewan/outpost/xerrors"
)

// ========================================
// 状态定义 (States)
// ========================================

// State 熔断器状态
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Breaker 熔断器核心接口
type Breaker interface {
	// Allow 准入检查。Open 状态下超过恢复窗口时惰性切换到 HalfOpen。
	// 返回 false 表示本次尝试应被拒绝（计为 rejection，不是失败）。
	Allow() bool

	// RecordSuccess 记录一次成功。总是清零失败计数；
	// HalfOpen 下累计试探成功，达到阈值后回到 Closed。
	RecordSuccess()

	// RecordFailure 记录一次失败。Closed 下累计失败；
	// HalfOpen 下立即退回 Open。
	RecordFailure()

	// State 返回当前状态（不触发惰性切换）
	State() State

	// Snapshot 返回当前状态的只读快照
	Snapshot() Snapshot
}

// Snapshot 熔断器状态快照
type Snapshot struct {
	State          string    `json:"state"`
	Failures       int       `json:"failures"`
	TrialSuccesses int       `json:"trial_successes"`
	Rejections     uint64    `json:"rejections"`
	LastFailure    time.Time `json:"last_failure"`
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// Config 熔断器配置
type Config struct {
	// FailureThreshold 进入 Open 所需的连续失败次数（默认：5）
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`

	// RecoveryTimeout 最后一次失败后允许试探的恢复窗口（默认：60s）
	RecoveryTimeout time.Duration `json:"recovery_timeout" yaml:"recovery_timeout" mapstructure:"recovery_timeout"`

	// SuccessThreshold HalfOpen 回到 Closed 所需的连续成功次数（默认：3）
	SuccessThreshold int `json:"success_threshold" yaml:"success_threshold" mapstructure:"success_threshold"`
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout == 0 {
		c.RecoveryTimeout = 60 * time.Second
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = 3
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if c.FailureThreshold < 0 || c.SuccessThreshold < 0 || c.RecoveryTimeout < 0 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "breaker: thresholds must be positive")
	}
	return nil
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建熔断器
func New(cfg *Config, opts ...Option) (Breaker, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := &options{}
	for _, o := range opts {
		o(opt)
	}
	opt.applyDefaults()

	return newCircuitBreaker(cfg, opt), nil
}
