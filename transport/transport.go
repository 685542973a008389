// Package transport 定义出站请求的数据模型与 HTTP 传输客户端。
//
// transport 是 Outpost 调度层的底座，它提供了：
// - 统一的 Request/Response 模型，贯穿队列、缓存和调度器
// - 四级优先级 (Urgent > High > Normal > Low)
// - Client 接口，屏蔽具体传输实现，便于测试替换
// - 基于 net/http 的默认实现，支持按请求超时和 Retry-After 解析
//
// ## 基本使用
//
//	client, _ := transport.New(&transport.Config{}, transport.WithLogger(logger))
//	defer client.Close()
//
//	req := transport.NewRequest(http.MethodPost, "/v1/items", payload,
//	    transport.WithPriority(transport.PriorityHigh),
//	    transport.WithTimeout(10*time.Second),
//	)
//	resp, err := client.Do(ctx, "https://api.example.com", req)
package transport

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ========================================
// 优先级定义 (Priority Levels)
// ========================================

// Priority 请求优先级，数值越大优先级越高
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// String 返回优先级名称
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// Valid 判断优先级是否在合法区间
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityUrgent
}

// ========================================
// 请求与响应模型 (Request / Response)
// ========================================

// Callback 请求完成回调。
// 每次尝试恰好调用一次；失败时 resp 为 nil。
// 回调在工作协程内同步执行，耗时操作应由调用方自行异步化。
type Callback func(resp *Response, userCtx any)

// Request 一次待执行的出站请求。
//
// 生命周期：由调用方创建，入队，每次尝试恰好出队一次，
// 可重试的结果会递增 RetryCount 后重新入队，直到成功或重试耗尽。
type Request struct {
	// ID 请求唯一标识，由 NewRequest 自动生成
	ID string

	// Method HTTP 方法，如 "GET"、"POST"
	Method string

	// Path 相对路径，拼接到所选 Endpoint 的基地址之后
	Path string

	// Body 请求体，对调度层完全不透明
	Body []byte

	// Headers 附加请求头
	Headers map[string]string

	// Priority 调度优先级（默认 PriorityNormal）
	Priority Priority

	// Timeout 单次尝试的超时（默认 30s）
	Timeout time.Duration

	// RetryCount 已重试次数；MaxRetries 重试上限（默认 3）
	RetryCount int
	MaxRetries int

	// CreatedAt 创建时间
	CreatedAt time.Time

	// Callback 完成回调（可选）；UserCtx 随回调原样传回
	Callback Callback
	UserCtx  any
}

// RequestOption 构造 Request 的可选参数
type RequestOption func(*Request)

// WithPriority 设置请求优先级
func WithPriority(p Priority) RequestOption {
	return func(r *Request) {
		r.Priority = p
	}
}

// WithTimeout 设置单次尝试超时
func WithTimeout(d time.Duration) RequestOption {
	return func(r *Request) {
		r.Timeout = d
	}
}

// WithHeader 附加一个请求头
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Headers == nil {
			r.Headers = make(map[string]string)
		}
		r.Headers[key] = value
	}
}

// WithMaxRetries 设置重试上限
func WithMaxRetries(n int) RequestOption {
	return func(r *Request) {
		r.MaxRetries = n
	}
}

// WithCallback 设置完成回调及随附的调用方上下文
func WithCallback(cb Callback, userCtx any) RequestOption {
	return func(r *Request) {
		r.Callback = cb
		r.UserCtx = userCtx
	}
}

// NewRequest 创建出站请求，自动填充 ID、创建时间和默认值
func NewRequest(method, path string, body []byte, opts ...RequestOption) *Request {
	r := &Request{
		ID:         uuid.NewString(),
		Method:     method,
		Path:       path,
		Body:       body,
		Priority:   PriorityNormal,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		CreatedAt:  time.Now(),
	}
	for _, o := range opts {
		o(r)
	}
	if !r.Priority.Valid() {
		r.Priority = PriorityNormal
	}
	return r
}

// Response 一次请求尝试的结果
type Response struct {
	// StatusCode HTTP 状态码
	StatusCode int

	// Headers 响应头（单值视图）
	Headers map[string]string

	// Body 响应体
	Body []byte

	// Latency 本次尝试的耗时
	Latency time.Duration
}

// DefaultRetryAfter 服务端未提供 Retry-After 时的默认等待
const DefaultRetryAfter = 60 * time.Second

// Success 是否为成功响应
func (r *Response) Success() bool {
	return r != nil && r.StatusCode == 200
}

// Throttled 是否为服务端限流信号
func (r *Response) Throttled() bool {
	return r != nil && r.StatusCode == 429
}

// RetryAfter 解析服务端建议的重试等待时长。
// 仅支持秒数形式；缺失或无法解析时返回 DefaultRetryAfter。
func (r *Response) RetryAfter() time.Duration {
	if r == nil {
		return DefaultRetryAfter
	}
	raw, ok := r.Headers["Retry-After"]
	if !ok {
		return DefaultRetryAfter
	}
	seconds, err := parseSeconds(raw)
	if err != nil {
		return DefaultRetryAfter
	}
	return seconds
}

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Client 传输客户端核心接口
type Client interface {
	// Do 对 endpoint 基地址执行一次请求尝试。
	// 尊重 req.Timeout；返回的 Response 携带状态码、响应头、响应体和耗时。
	// 传输层错误（连接失败、超时）返回非 nil error，此时 Response 为 nil。
	Do(ctx context.Context, endpoint string, req *Request) (*Response, error)

	// Close 释放空闲连接等传输资源
	Close() error
}
