package transport

import "github.com/ceyewan/outpost/xerrors"

// Sentinel Errors - 传输层专用的哨兵错误
var (
	ErrInvalidRequest = xerrors.New("transport: invalid request")
	ErrRequestFailed  = xerrors.New("transport: request failed")
)
