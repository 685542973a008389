package ratelimit

// Metrics 指标常量定义
const (
	// MetricCurrentRate 当前速率 (Gauge)，单位请求/秒
	MetricCurrentRate = "ratelimit_current_rate"

	// MetricRecordTotal 记录的结果总数 (Counter)，按结果打标
	MetricRecordTotal = "ratelimit_record_total"
)
