package metrics

// Label 指标标签结构体
// 用于为指标添加维度信息，实现指标的细粒度分组和筛选。
//
// 标签命名规范：
//   - 使用小写字母和下划线：endpoint_url 而不是 endpointUrl
//   - 避免高基数标签（如请求 ID），会影响监控系统性能
type Label struct {
	Key   string
	Value string
}

// L 便捷构造函数，创建一个 Label 实例
//
//	counter.Inc(ctx, metrics.L("outcome", "success"))
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}

// 常见的标签
const (
	LabelEndpoint = "endpoint"
	LabelOutcome  = "outcome"
	LabelPriority = "priority"
	LabelState    = "state"
)

// 常见的结果
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)
