package breaker

// Metrics 指标常量定义
const (
	// MetricState 当前状态 (Gauge)：0=closed 1=open 2=half_open
	MetricState = "breaker_state"

	// MetricTransitionTotal 状态转移总数 (Counter)，按目标状态打标
	MetricTransitionTotal = "breaker_transition_total"
)
