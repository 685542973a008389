package dispatch

// Metrics 指标常量定义
const (
	// MetricAttemptTotal 调度尝试总数 (Counter)，按结果打标
	MetricAttemptTotal = "dispatch_attempt_total"
)

// 尝试结果标签值
const (
	outcomeSuccess   = "success"
	outcomeFailure   = "failure"
	outcomeThrottled = "throttled"
	outcomeRejected  = "rejected"
	outcomeCacheHit  = "cache_hit"
)
