package breaker

import "github.com/ceyewan/outpost/xerrors"

// ErrOpenState 熔断器处于打开状态，请求被拒绝
var ErrOpenState = xerrors.New("breaker: open state")
