package balancer

// Metrics 指标常量定义
const (
	// MetricEndpointHealth 端点健康分 (Gauge)，按端点打标
	MetricEndpointHealth = "balancer_endpoint_health"

	// MetricOutcomeTotal 记录的结果总数 (Counter)，按端点和结果打标
	MetricOutcomeTotal = "balancer_outcome_total"
)
