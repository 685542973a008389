package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	t.Run("默认值", func(t *testing.T) {
		req := NewRequest(http.MethodGet, "/v1/ping", nil)

		assert.NotEmpty(t, req.ID)
		assert.Equal(t, PriorityNormal, req.Priority)
		assert.Equal(t, 30*time.Second, req.Timeout)
		assert.Equal(t, 3, req.MaxRetries)
		assert.False(t, req.CreatedAt.IsZero())
	})

	t.Run("选项覆盖", func(t *testing.T) {
		req := NewRequest(http.MethodPost, "/v1/items", []byte(`{}`),
			WithPriority(PriorityUrgent),
			WithTimeout(5*time.Second),
			WithHeader("X-Trace", "abc"),
			WithMaxRetries(1),
		)

		assert.Equal(t, PriorityUrgent, req.Priority)
		assert.Equal(t, 5*time.Second, req.Timeout)
		assert.Equal(t, "abc", req.Headers["X-Trace"])
		assert.Equal(t, 1, req.MaxRetries)
	})

	t.Run("非法优先级回退到 Normal", func(t *testing.T) {
		req := NewRequest(http.MethodGet, "/", nil, WithPriority(Priority(9)))
		assert.Equal(t, PriorityNormal, req.Priority)
	})

	t.Run("ID 唯一", func(t *testing.T) {
		a := NewRequest(http.MethodGet, "/", nil)
		b := NewRequest(http.MethodGet, "/", nil)
		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestPriorityString(t *testing.T) {
	tests := []struct {
		p    Priority
		want string
	}{
		{PriorityLow, "low"},
		{PriorityNormal, "normal"},
		{PriorityHigh, "high"},
		{PriorityUrgent, "urgent"},
		{Priority(0), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.p.String())
	}
}

func TestResponseRetryAfter(t *testing.T) {
	t.Run("解析秒数", func(t *testing.T) {
		resp := &Response{Headers: map[string]string{"Retry-After": "5"}}
		assert.Equal(t, 5*time.Second, resp.RetryAfter())
	})

	t.Run("缺失时使用默认值", func(t *testing.T) {
		resp := &Response{Headers: map[string]string{}}
		assert.Equal(t, DefaultRetryAfter, resp.RetryAfter())
	})

	t.Run("非法值使用默认值", func(t *testing.T) {
		resp := &Response{Headers: map[string]string{"Retry-After": "soon"}}
		assert.Equal(t, DefaultRetryAfter, resp.RetryAfter())
	})
}

func TestClientDo(t *testing.T) {
	t.Run("成功请求携带默认头", func(t *testing.T) {
		var gotUA, gotAccept, gotCustom string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			gotAccept = r.Header.Get("Accept")
			gotCustom = r.Header.Get("X-Token")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		client, err := New(&Config{})
		require.NoError(t, err)
		defer client.Close()

		req := NewRequest(http.MethodGet, "/v1/ping", nil, WithHeader("X-Token", "t"))
		resp, err := client.Do(context.Background(), server.URL, req)
		require.NoError(t, err)

		assert.True(t, resp.Success())
		assert.Equal(t, []byte(`{"ok":true}`), resp.Body)
		assert.Positive(t, resp.Latency)
		assert.Equal(t, "outpost/1.0", gotUA)
		assert.Equal(t, "application/json", gotAccept)
		assert.Equal(t, "t", gotCustom)
	})

	t.Run("429 响应携带 Retry-After", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client, err := New(nil)
		require.NoError(t, err)
		defer client.Close()

		resp, err := client.Do(context.Background(), server.URL, NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)

		assert.True(t, resp.Throttled())
		assert.False(t, resp.Success())
		assert.Equal(t, 2*time.Second, resp.RetryAfter())
	})

	t.Run("超时按传输错误返回", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		client, err := New(nil)
		require.NoError(t, err)
		defer client.Close()

		req := NewRequest(http.MethodGet, "/", nil, WithTimeout(20*time.Millisecond))
		resp, err := client.Do(context.Background(), server.URL, req)

		assert.Error(t, err)
		assert.Nil(t, resp)
	})

	t.Run("nil 请求返回错误", func(t *testing.T) {
		client, err := New(nil)
		require.NoError(t, err)
		defer client.Close()

		_, err = client.Do(context.Background(), "http://127.0.0.1", nil)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
}
