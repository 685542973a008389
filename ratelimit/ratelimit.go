// Package ratelimit 提供自适应限速器，将请求结果转换为目标发送间隔。
//
// 与固定速率的令牌桶不同，这里的速率随远端反馈动态调整：
// - 成功将当前速率乘以增长因子（默认 1.05），封顶于 MaxRate
// - 失败将当前速率乘以回退因子（默认 0.80），下探不低于 MinRate
//
// 慢增长、快回退的非对称调整使速率在远端发出压力信号后迅速收敛到
// 可持续水平，之后谨慎地重新试探容量上限。
//
// ## 基本使用
//
//	limiter, _ := ratelimit.New(&ratelimit.Config{
//	    MinRate:     1,
//	    MaxRate:     100,
//	    InitialRate: 10,
//	}, ratelimit.WithLogger(logger))
//
//	if wait := limiter.Reserve(); wait > 0 {
//	    time.Sleep(wait)
//	}
//	// ... 执行请求 ...
//	limiter.Record(success, latency)
package ratelimit

import (
	"time"

	"github.com/ceyewan/outpost/xerrors"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Limiter 自适应限速器核心接口
type Limiter interface {
	// Allow 判断当前是否允许立即发送。
	// 允许时登记一次发送并返回 true；不允许时不改变任何状态。
	Allow() bool

	// Delay 返回距下一次允许发送的等待时长，不改变任何状态。
	// 返回 0 表示可以立即发送。
	Delay() time.Duration

	// Reserve 原子地登记下一次发送并返回调用方应等待的时长。
	// 多个工作协程并发调用时，各自获得按当前速率错开的发送时刻。
	Reserve() time.Duration

	// Record 记录一次请求结果并调整速率。
	// success 为 true 时速率乘以 SuccessFactor（封顶 MaxRate），
	// 否则乘以 FailureFactor（下限 MinRate）。
	Record(success bool, latency time.Duration)

	// Snapshot 返回当前限速状态的只读快照
	Snapshot() Snapshot
}

// Snapshot 限速器状态快照
type Snapshot struct {
	CurrentRate     float64       `json:"current_rate"`
	MinRate         float64       `json:"min_rate"`
	MaxRate         float64       `json:"max_rate"`
	RequestsLastMin int           `json:"requests_last_minute"`
	Success         uint64        `json:"success"`
	Errors          uint64        `json:"errors"`
	Interval        time.Duration `json:"interval"`
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// Config 限速器配置
type Config struct {
	// MinRate 速率下限，单位请求/秒（默认：1）
	MinRate float64 `json:"min_rate" yaml:"min_rate" mapstructure:"min_rate"`

	// MaxRate 速率上限，单位请求/秒（默认：100）
	MaxRate float64 `json:"max_rate" yaml:"max_rate" mapstructure:"max_rate"`

	// InitialRate 初始速率，单位请求/秒（默认：10）
	InitialRate float64 `json:"initial_rate" yaml:"initial_rate" mapstructure:"initial_rate"`

	// SuccessFactor 成功时的速率增长因子（默认：1.05）
	SuccessFactor float64 `json:"success_factor" yaml:"success_factor" mapstructure:"success_factor"`

	// FailureFactor 失败时的速率回退因子（默认：0.80）
	FailureFactor float64 `json:"failure_factor" yaml:"failure_factor" mapstructure:"failure_factor"`

	// Window 发送时间戳的观测窗口，仅用于统计（默认：60s）
	Window time.Duration `json:"window" yaml:"window" mapstructure:"window"`
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if c.MinRate == 0 {
		c.MinRate = 1
	}
	if c.MaxRate == 0 {
		c.MaxRate = 100
	}
	if c.InitialRate == 0 {
		c.InitialRate = 10
	}
	if c.SuccessFactor == 0 {
		c.SuccessFactor = 1.05
	}
	if c.FailureFactor == 0 {
		c.FailureFactor = 0.80
	}
	if c.Window == 0 {
		c.Window = time.Minute
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if c.MinRate <= 0 || c.MaxRate < c.MinRate {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "ratelimit: invalid rate bounds")
	}
	if c.InitialRate < c.MinRate || c.InitialRate > c.MaxRate {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "ratelimit: initial rate out of bounds")
	}
	if c.SuccessFactor <= 1 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "ratelimit: success factor must exceed 1")
	}
	if c.FailureFactor <= 0 || c.FailureFactor >= 1 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "ratelimit: failure factor must be in (0,1)")
	}
	return nil
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建自适应限速器
func New(cfg *Config, opts ...Option) (Limiter, error) {
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

	return newAdaptiveLimiter(cfg, opt), nil
}
