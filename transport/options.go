package transport

import (
	"net/http"

	"github.com/ceyewan/outpost/clog"
)

type options struct {
	logger     clog.Logger
	httpClient *http.Client
}

func (o *options) applyDefaults() {
	if o.logger == nil {
		o.logger = clog.Discard()
	}
}

// Option 配置传输客户端的选项
type Option func(*options)

// WithLogger 设置日志记录器
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		o.logger = logger.WithNamespace("transport")
	}
}

// WithHTTPClient 注入自定义 http.Client，主要用于测试
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}
