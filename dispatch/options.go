package dispatch

import (
	"github.com/ceyewan/outpost/clog"
	"github.com/ceyewan/outpost/connector"
	"github.com/ceyewan/outpost/metrics"
	"github.com/ceyewan/outpost/transport"
)

type options struct {
	logger    clog.Logger
	rawLogger clog.Logger
	meter     metrics.Meter
	client    transport.Client
	redisConn connector.RedisConnector
}

func (o *options) applyDefaults() {
	if o.logger == nil {
		o.logger = clog.Discard()
		o.rawLogger = clog.Discard()
	}
}

// Option 配置调度器的选项
type Option func(*options)

// WithLogger 设置日志记录器，同时传递给内部组件
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		o.logger = logger.WithNamespace("dispatch")
		o.rawLogger = logger
	}
}

// WithMeter 设置指标收集器，同时传递给内部组件
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithTransport 注入自定义传输客户端，替代默认的 HTTP 实现
func WithTransport(client transport.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithRedisConnector 注入 Redis 连接器（缓存为分布式模式时必需）
func WithRedisConnector(conn connector.RedisConnector) Option {
	return func(o *options) {
		o.redisConn = conn
	}
}
