package dispatch

import "github.com/ceyewan/outpost/xerrors"

// Sentinel Errors - 调度器专用的哨兵错误
var (
	// ErrQueueSaturated 队列已饱和，提交被拒绝
	ErrQueueSaturated = xerrors.New("dispatch: queue saturated")

	// ErrStopped 调度器已停止
	ErrStopped = xerrors.New("dispatch: stopped")
)
