// Package dispatch 提供出站请求调度器：一个固定规模的工作协程池，
// 从优先级队列消费请求，按 缓存 → 熔断 → 限速 → 选点 → 传输 的流水线
// 执行每次尝试，并把结果回馈给各个治理组件。
//
// 调度管线（每次尝试）：
//  1. 命中缓存立即返回，不触发任何网络和反馈记账
//  2. 熔断器拒绝则丢弃本次尝试（计为 rejection，不自动重试）
//  3. 限速器要求等待时，工作协程挂起等待（不阻塞其他协程）
//  4. 负载均衡器选点；无可用端点按硬失败处理
//  5. 按请求超时执行传输：
//     - 200：结果写缓存，成功回馈限速器、均衡器、熔断器
//     - 429：按 Retry-After 挂起后在重试预算内按原优先级重新入队；
//     限速器和均衡器记非成功，熔断器不记账
//     - 其他状态、超时或传输错误：失败回馈三者，不自动重试
//  6. 回调每次尝试恰好调用一次，非成功时结果为 nil
//
// 单个请求的任何错误都被吸收进统计与反馈信号，绝不逃出工作协程。
//
// ## 基本使用
//
//	d, _ := dispatch.New(&dispatch.Config{
//	    Balancer: balancer.Config{Endpoints: []balancer.EndpointConfig{
//	        {URL: "https://a.example.com"},
//	    }},
//	}, dispatch.WithLogger(logger))
//
//	d.Start()
//	defer d.Stop(context.Background())
//
//	err := d.Submit(transport.NewRequest("POST", "/v1/items", payload))
package dispatch

import (
	"context"
	"time"

	"github.com/ceyewan/outpost/balancer"
	"github.com/ceyewan/outpost/breaker"
	"github.com/ceyewan/outpost/cache"
	"github.com/ceyewan/outpost/queue"
	"github.com/ceyewan/outpost/ratelimit"
	"github.com/ceyewan/outpost/transport"
	"github.com/ceyewan/outpost/xerrors"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Dispatcher 调度器核心接口
type Dispatcher interface {
	// Start 启动工作协程池。重复调用无害。
	Start() error

	// Stop 停止调度：工作协程不再从队列取新元素，等待在途尝试完成，
	// 最后释放传输资源。ctx 到期则放弃等待并返回其错误。
	Stop(ctx context.Context) error

	// Submit 提交一个请求。队列已饱和时返回 ErrQueueSaturated，
	// 调度器已停止时返回 ErrStopped，调用方应自行退避或丢弃。
	Submit(req *transport.Request) error

	// Stats 返回聚合统计快照
	Stats() Stats
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// Config 调度器配置，内嵌各组件配置
type Config struct {
	// WorkerCount 工作协程数（默认：10）
	WorkerCount int `json:"worker_count" yaml:"worker_count" mapstructure:"worker_count"`

	// TakeTimeout 队列消费的轮询超时，决定停机信号的观测延迟（默认：500ms）
	TakeTimeout time.Duration `json:"take_timeout" yaml:"take_timeout" mapstructure:"take_timeout"`

	Queue     queue.Config     `json:"queue" yaml:"queue" mapstructure:"queue"`
	RateLimit ratelimit.Config `json:"ratelimit" yaml:"ratelimit" mapstructure:"ratelimit"`
	Breaker   breaker.Config   `json:"breaker" yaml:"breaker" mapstructure:"breaker"`
	Balancer  balancer.Config  `json:"balancer" yaml:"balancer" mapstructure:"balancer"`
	Cache     cache.Config     `json:"cache" yaml:"cache" mapstructure:"cache"`
	Transport transport.Config `json:"transport" yaml:"transport" mapstructure:"transport"`
}

// setDefaults 设置默认值，组件配置的默认值由各组件自行填充
func (c *Config) setDefaults() {
	if c.WorkerCount == 0 {
		c.WorkerCount = 10
	}
	if c.TakeTimeout == 0 {
		c.TakeTimeout = 500 * time.Millisecond
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if c.WorkerCount < 0 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "dispatch: worker count must be positive")
	}
	return nil
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建调度器，内部装配队列、限速器、熔断器、均衡器、缓存与传输客户端。
// 注入的 Logger/Meter 会传递给所有组件。
func New(cfg *Config, opts ...Option) (Dispatcher, error) {
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

	return newOrchestrator(cfg, opt)
}
