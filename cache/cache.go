// Package cache 提供响应缓存，将请求指纹映射到此前观测到的成功响应。
//
// 指纹是对 (method, target, payload) 的确定性摘要（sha256）。条目带固定
// TTL，过期条目对读取透明地视为不存在并被惰性清理；损坏的条目一律按
// miss 处理，绝不致命。
//
// 支持两种模式：
//   - standalone（默认）：进程内存缓存，容量有界，超过上限时按插入时间
//     清除最老的 10%
//   - distributed：基于 Redis（通过 connector 注入），TTL 与淘汰由
//     Redis 负责，条目经 serializer 编解码
//
// ## 基本使用
//
//	c, _ := cache.New(&cache.Config{TTL: time.Hour}, cache.WithLogger(logger))
//
//	fp := cache.Fingerprint(req.Method, "https://a.example.com", req.Body)
//	if resp, ok := c.Get(ctx, fp); ok {
//	    return resp // 缓存命中，不触发任何网络和反馈记账
//	}
//	// ... 执行请求 ...
//	c.Set(ctx, fp, resp)
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ceyewan/outpost/transport"
	"github.com/ceyewan/outpost/xerrors"
)

// ========================================
// 指纹 (Fingerprint)
// ========================================

// Fingerprint 计算请求指纹：对 method、target 和原始负载的 sha256 摘要。
// 负载对缓存层完全不透明，参与摘要的是其原始字节。
func Fingerprint(method, target string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(target))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Cache 响应缓存核心接口
type Cache interface {
	// Get 按指纹查询缓存的响应。
	// 过期、缺失或损坏的条目都返回 (nil, false)。
	Get(ctx context.Context, fingerprint string) (*transport.Response, bool)

	// Set 存入一条成功响应
	Set(ctx context.Context, fingerprint string, resp *transport.Response) error

	// Snapshot 返回缓存状态的只读快照
	Snapshot() Snapshot

	// Close 释放缓存资源
	Close() error
}

// Snapshot 缓存状态快照
type Snapshot struct {
	Mode     string `json:"mode"`
	Entries  int    `json:"entries"`
	Capacity int    `json:"capacity"`
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Evicted  uint64 `json:"evicted"`
	Expired  uint64 `json:"expired"`
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// Config 缓存组件统一配置
type Config struct {
	// Mode 缓存模式: "standalone" | "distributed"（默认 "standalone"）
	Mode string `json:"mode" yaml:"mode" mapstructure:"mode"`

	// TTL 条目存活时间（默认：3600s）
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`

	// Prefix 全局 Key 前缀，仅分布式模式使用 (e.g., "outpost:cache:")
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`

	// Serializer 编解码器: "json" | "msgpack"，仅分布式模式使用
	Serializer string `json:"serializer" yaml:"serializer" mapstructure:"serializer"`

	// Standalone 单机缓存配置
	Standalone *StandaloneConfig `json:"standalone" yaml:"standalone" mapstructure:"standalone"`
}

// StandaloneConfig 单机缓存配置
type StandaloneConfig struct {
	// Capacity 缓存最大容量（条目数，默认：10000）
	Capacity int `json:"capacity" yaml:"capacity" mapstructure:"capacity"`
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if c.Mode == "" {
		c.Mode = "standalone"
	}
	if c.TTL == 0 {
		c.TTL = 3600 * time.Second
	}
	if c.Standalone == nil {
		c.Standalone = &StandaloneConfig{}
	}
	if c.Standalone.Capacity == 0 {
		c.Standalone.Capacity = 10000
	}
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 根据配置创建缓存实例
//
// Mode 为 "standalone" 时创建进程内缓存；
// 为 "distributed" 时创建 Redis 缓存，需通过 WithRedisConnector 注入连接器。
func New(cfg *Config, opts ...Option) (Cache, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()

	opt := &options{}
	for _, o := range opts {
		o(opt)
	}
	opt.applyDefaults()

	switch cfg.Mode {
	case "standalone":
		return newStandalone(cfg, opt), nil
	case "distributed":
		if opt.redisConn == nil {
			return nil, xerrors.New("cache: redis connector is required for distributed mode, use WithRedisConnector")
		}
		return newRedis(cfg, opt)
	default:
		return nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "cache: unknown mode %q", cfg.Mode)
	}
}
