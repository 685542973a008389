package queue

import "github.com/ceyewan/outpost/xerrors"

// Sentinel Errors - 队列专用的哨兵错误
var (
	// ErrQueueFull 队列已饱和，Submit 被拒绝
	ErrQueueFull = xerrors.New("queue: full")

	// ErrQueueClosed 队列已关闭
	ErrQueueClosed = xerrors.New("queue: closed")
)
