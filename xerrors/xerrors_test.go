package xerrors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	t.Run("包装 nil 返回 nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, "context"))
		assert.Nil(t, Wrapf(nil, "context %d", 1))
	})

	t.Run("包装后保留错误链", func(t *testing.T) {
		base := New("boom")
		wrapped := Wrapf(base, "op %s failed", "load")

		require.Error(t, wrapped)
		assert.True(t, Is(wrapped, base))
		assert.Contains(t, wrapped.Error(), "op load failed")
	})
}

func TestWithCode(t *testing.T) {
	base := New("boom")
	coded := WithCode(base, "ERR_BOOM")

	assert.Equal(t, "ERR_BOOM", GetCode(coded))
	assert.True(t, Is(coded, base))

	t.Run("无错误码返回空字符串", func(t *testing.T) {
		assert.Equal(t, "", GetCode(base))
	})

	t.Run("nil 错误返回 nil", func(t *testing.T) {
		assert.Nil(t, WithCode(nil, "ERR_NOOP"))
	})
}

func TestMust(t *testing.T) {
	assert.Equal(t, 42, Must(42, nil))
	assert.Panics(t, func() {
		Must(0, New("boom"))
	})
}
