// Package queue 提供有界的四级优先级队列，是生产者与调度工作协程之间
// 唯一的交接点。
//
// queue 的核心行为：
// - 每个优先级一条 FIFO 通道，Urgent 完全排空后才考虑 High，依此类推
// - 总容量有界，满时 Submit 直接失败（fail-closed），作为背压信号
// - Take 阻塞等待直到有元素或超时，等待期间不持有任何锁
// - 严格优先级，无跨通道公平性；持续高优先级流量下低优先级饥饿是预期行为
//
// ## 基本使用
//
//	q, _ := queue.New(&queue.Config{Capacity: 10000}, queue.WithLogger(logger))
//	defer q.Close()
//
//	err := q.Submit(req)       // ErrQueueFull 表示队列已饱和
//	item, ok := q.Take(time.Second)
package queue

import (
	"time"

	"github.com/ceyewan/outpost/transport"
	"github.com/ceyewan/outpost/xerrors"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Queue 优先级队列核心接口
type Queue interface {
	// Submit 将请求追加到其优先级对应的通道。
	// 队列总数已达容量时返回 ErrQueueFull，调用方应自行退避或丢弃；
	// 队列已关闭时返回 ErrQueueClosed。
	Submit(req *transport.Request) error

	// Take 取出最高非空优先级通道中最老的请求。
	// 阻塞直到有元素可取或超时；超时或队列已关闭且排空时返回 (nil, false)。
	Take(timeout time.Duration) (*transport.Request, bool)

	// Snapshot 返回当前队列状态的只读快照
	Snapshot() Snapshot

	// Close 关闭队列：拒绝后续 Submit，已入队元素仍可被 Take 排空
	Close() error
}

// Snapshot 队列状态快照
type Snapshot struct {
	Capacity  int            `json:"capacity"`
	Total     int            `json:"total"`
	Lanes     map[string]int `json:"lanes"`
	Submitted uint64         `json:"submitted"`
	Rejected  uint64         `json:"rejected"`
	Taken     uint64         `json:"taken"`
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// Config 队列配置
type Config struct {
	// Capacity 全队列总容量（默认：10000）
	Capacity int `json:"capacity" yaml:"capacity" mapstructure:"capacity"`
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if c.Capacity == 0 {
		c.Capacity = 10000
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if c.Capacity < 0 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "queue capacity must be positive")
	}
	return nil
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建优先级队列
func New(cfg *Config, opts ...Option) (Queue, error) {
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

	return newPriorityQueue(cfg, opt), nil
}
