package queue

// Metrics 指标常量定义
const (
	// MetricSubmitTotal 提交总次数 (Counter)，按优先级和结果打标
	MetricSubmitTotal = "queue_submit_total"

	// MetricDepth 当前队列深度 (Gauge)
	MetricDepth = "queue_depth"
)
