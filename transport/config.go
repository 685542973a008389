package transport

import "time"

// Config 传输客户端配置
type Config struct {
	// UserAgent 默认 User-Agent 头（默认："outpost/1.0"）
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// Accept 默认 Accept 头（默认："application/json"）
	Accept string `json:"accept" yaml:"accept" mapstructure:"accept"`

	// MaxIdleConns 连接池最大空闲连接数（默认：100）
	MaxIdleConns int `json:"max_idle_conns" yaml:"max_idle_conns" mapstructure:"max_idle_conns"`

	// MaxIdleConnsPerHost 单主机最大空闲连接数（默认：10）
	MaxIdleConnsPerHost int `json:"max_idle_conns_per_host" yaml:"max_idle_conns_per_host" mapstructure:"max_idle_conns_per_host"`

	// IdleConnTimeout 空闲连接超时（默认：90s）
	IdleConnTimeout time.Duration `json:"idle_conn_timeout" yaml:"idle_conn_timeout" mapstructure:"idle_conn_timeout"`
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = "outpost/1.0"
	}
	if c.Accept == "" {
		c.Accept = "application/json"
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 100
	}
	if c.MaxIdleConnsPerHost == 0 {
		c.MaxIdleConnsPerHost = 10
	}
	if c.IdleConnTimeout == 0 {
		c.IdleConnTimeout = 90 * time.Second
	}
}
