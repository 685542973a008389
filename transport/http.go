package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ceyewan/outpost/clog"
	"github.com/ceyewan/outpost/xerrors"
)

// httpClient 基于 net/http 的 Client 实现
type httpClient struct {
	cfg    *Config
	client *http.Client
	logger clog.Logger
}

// New 创建传输客户端
//
// 参数:
//   - cfg: 客户端配置，nil 时使用默认值
//   - opts: 可选依赖注入（Logger、自定义 http.Client）
func New(cfg *Config, opts ...Option) (Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()

	opt := &options{}
	for _, o := range opts {
		o(opt)
	}
	opt.applyDefaults()

	client := opt.httpClient
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        cfg.MaxIdleConns,
				MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
				IdleConnTimeout:     cfg.IdleConnTimeout,
			},
		}
	}

	return &httpClient{
		cfg:    cfg,
		client: client,
		logger: opt.logger,
	}, nil
}

// Do 执行一次请求尝试
func (c *httpClient) Do(ctx context.Context, endpoint string, req *Request) (*Response, error) {
	if req == nil || req.Method == "" {
		return nil, ErrInvalidRequest
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	url := strings.TrimRight(endpoint, "/") + "/" + strings.TrimLeft(req.Path, "/")

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, xerrors.Wrapf(err, "transport: build request %s", req.ID)
	}

	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	httpReq.Header.Set("Accept", c.cfg.Accept)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	httpResp, err := c.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		c.logger.Debug("request attempt failed",
			clog.String("request_id", req.ID),
			clog.String("url", url),
			clog.Duration("latency", latency),
			clog.Error(err))
		return nil, xerrors.Wrapf(err, "transport: request %s to %s", req.ID, endpoint)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, xerrors.Wrapf(err, "transport: read response for %s", req.ID)
	}

	headers := make(map[string]string, len(httpResp.Header))
	for k := range httpResp.Header {
		headers[k] = httpResp.Header.Get(k)
	}

	c.logger.Debug("request attempt completed",
		clog.String("request_id", req.ID),
		clog.String("url", url),
		clog.Int("status", httpResp.StatusCode),
		clog.Duration("latency", latency))

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    headers,
		Body:       respBody,
		Latency:    latency,
	}, nil
}

// Close 释放空闲连接
func (c *httpClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// parseSeconds 将 Retry-After 的秒数形式解析为时长
func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if seconds < 0 {
		return 0, xerrors.New("negative retry-after")
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
