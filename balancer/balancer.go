// Package balancer 提供带健康度反馈的加权负载均衡器。
//
// 每个端点维护健康分（[0,1]，成功 +0.1、失败 -0.2，失败压制恢复）、
// 最近 100 次响应延迟和累计成功/失败计数。选取时：
//   - 候选集 = 健康分 > 0.5 的端点；为空时退化为健康分最高的单个端点
//     （优雅降级而非整体拒绝）
//   - 权重 = 健康分 × 配置权重，平均延迟非零时再除以平均延迟，
//     更快更健康的端点获得超线性的流量倾斜
//   - 在 [0, 总权重) 上均匀抽样走累计权重，保留流量分散，
//     让恢复中的端点逐步重新获得流量份额
//
// 端点集合在创建时固化，运行期只更新状态，不增删端点。
//
// ## 基本使用
//
//	lb, _ := balancer.New(&balancer.Config{
//	    Endpoints: []balancer.EndpointConfig{
//	        {URL: "https://a.example.com", Weight: 2},
//	        {URL: "https://b.example.com", Weight: 1},
//	    },
//	}, balancer.WithLogger(logger))
//
//	url, ok := lb.Select()
//	// ... 执行请求 ...
//	lb.RecordOutcome(url, success, latency)
package balancer

import (
	"time"

	"github.com/ceyewan/outpost/xerrors"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Balancer 负载均衡器核心接口
type Balancer interface {
	// Select 按加权随机抽取一个端点，返回其基地址。
	// 端点集合为空时返回 ("", false)；非空集合永远有返回值。
	Select() (string, bool)

	// RecordOutcome 记录对某端点的一次请求结果：
	// 追加延迟观测并按成功/失败调整健康分。
	// 未注册的 url 被忽略。
	RecordOutcome(url string, success bool, latency time.Duration)

	// Snapshot 返回所有端点状态的只读快照
	Snapshot() []EndpointSnapshot
}

// EndpointSnapshot 单个端点的状态快照
type EndpointSnapshot struct {
	URL         string        `json:"url"`
	Weight      float64       `json:"weight"`
	Health      float64       `json:"health"`
	AvgLatency  time.Duration `json:"avg_latency"`
	Success     uint64        `json:"success"`
	Errors      uint64        `json:"errors"`
	SuccessRate float64       `json:"success_rate"`
	LastError   time.Time     `json:"last_error"`
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// EndpointConfig 单个端点配置
type EndpointConfig struct {
	// URL 端点基地址
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// Weight 相对权重（默认：1）
	Weight float64 `json:"weight" yaml:"weight" mapstructure:"weight"`
}

// Config 负载均衡器配置
type Config struct {
	// Endpoints 候选端点列表
	Endpoints []EndpointConfig `json:"endpoints" yaml:"endpoints" mapstructure:"endpoints"`
}

func (c *Config) validate() error {
	if len(c.Endpoints) == 0 {
		return ErrNoEndpoints
	}
	for i := range c.Endpoints {
		if c.Endpoints[i].URL == "" {
			return xerrors.Wrap(xerrors.ErrInvalidInput, "balancer: endpoint url is required")
		}
		if c.Endpoints[i].Weight == 0 {
			c.Endpoints[i].Weight = 1
		}
		if c.Endpoints[i].Weight < 0 {
			return xerrors.Wrap(xerrors.ErrInvalidInput, "balancer: endpoint weight must be positive")
		}
	}
	return nil
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建负载均衡器
func New(cfg *Config, opts ...Option) (Balancer, error) {
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

	return newWeightedBalancer(cfg, opt), nil
}
