package balancer

import "github.com/ceyewan/outpost/xerrors"

// ErrNoEndpoints 端点集合为空，无法选取
var ErrNoEndpoints = xerrors.New("balancer: no endpoints")
