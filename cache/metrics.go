package cache

// Metrics 指标常量定义
const (
	// MetricHitTotal 缓存命中总数 (Counter)
	MetricHitTotal = "cache_hit_total"

	// MetricMissTotal 缓存未命中总数 (Counter)
	MetricMissTotal = "cache_miss_total"
)
