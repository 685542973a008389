package queue

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/outpost/clog"
	"github.com/ceyewan/outpost/metrics"
	"github.com/ceyewan/outpost/transport"
	"github.com/ceyewan/outpost/xerrors"
)

// lanePriorities 取出顺序，高优先级在前
var lanePriorities = []transport.Priority{
	transport.PriorityUrgent,
	transport.PriorityHigh,
	transport.PriorityNormal,
	transport.PriorityLow,
}

// priorityQueue Queue 的实现。
//
// tokens 与入队元素一一对应：Submit 成功后投递一个令牌，Take 先取令牌
// 再加锁弹出元素。令牌通道容量等于队列容量，投递永不阻塞；等待令牌时
// 不持有 mu，满足"只有 Take 等待"的约束。
type priorityQueue struct {
	cfg    *Config
	logger clog.Logger

	mu    sync.Mutex
	lanes map[transport.Priority][]*transport.Request
	total int

	submitted uint64
	rejected  uint64
	taken     uint64

	tokens chan struct{}
	done   chan struct{}
	closed bool

	submitCounter metrics.Counter
	depthGauge    metrics.Gauge
}

func newPriorityQueue(cfg *Config, opt *options) *priorityQueue {
	q := &priorityQueue{
		cfg:    cfg,
		logger: opt.logger,
		lanes:  make(map[transport.Priority][]*transport.Request, len(lanePriorities)),
		tokens: make(chan struct{}, cfg.Capacity),
		done:   make(chan struct{}),
	}
	for _, p := range lanePriorities {
		q.lanes[p] = nil
	}

	if opt.meter != nil {
		q.submitCounter, _ = opt.meter.Counter(MetricSubmitTotal, "Number of submit calls")
		q.depthGauge, _ = opt.meter.Gauge(MetricDepth, "Current queue depth")
	}

	q.logger.Info("priority queue created", clog.Int("capacity", cfg.Capacity))
	return q
}

// Submit 将请求追加到其优先级通道
func (q *priorityQueue) Submit(req *transport.Request) error {
	if req == nil {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "queue: nil request")
	}

	p := req.Priority
	if !p.Valid() {
		p = transport.PriorityNormal
	}

	q.mu.Lock()
	if q.closed {
		q.rejected++
		q.mu.Unlock()
		q.recordSubmit(p, metrics.OutcomeError)
		return ErrQueueClosed
	}
	if q.total >= q.cfg.Capacity {
		q.rejected++
		q.mu.Unlock()
		q.recordSubmit(p, metrics.OutcomeError)
		return ErrQueueFull
	}
	q.lanes[p] = append(q.lanes[p], req)
	q.total++
	q.submitted++
	depth := q.total
	q.mu.Unlock()

	// total 已计入，容量保证此投递不阻塞
	q.tokens <- struct{}{}

	q.recordSubmit(p, metrics.OutcomeSuccess)
	if q.depthGauge != nil {
		q.depthGauge.Set(context.Background(), float64(depth))
	}
	return nil
}

// Take 取出最高非空优先级通道中最老的请求
func (q *priorityQueue) Take(timeout time.Duration) (*transport.Request, bool) {
	// 先尝试立即取令牌，确保关闭后仍能排空剩余元素
	select {
	case <-q.tokens:
		return q.pop()
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-q.tokens:
		return q.pop()
	case <-q.done:
		// 关闭与令牌可能同时就绪，最后再尝试一次
		select {
		case <-q.tokens:
			return q.pop()
		default:
			return nil, false
		}
	case <-timer.C:
		return nil, false
	}
}

// pop 弹出最高非空优先级通道的队首元素。
// 令牌与元素一一对应，持有令牌时必有元素可弹。
func (q *priorityQueue) pop() (*transport.Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, p := range lanePriorities {
		lane := q.lanes[p]
		if len(lane) == 0 {
			continue
		}
		req := lane[0]
		q.lanes[p] = lane[1:]
		q.total--
		q.taken++
		if q.depthGauge != nil {
			q.depthGauge.Set(context.Background(), float64(q.total))
		}
		return req, true
	}
	return nil, false
}

// Snapshot 返回当前队列状态快照
func (q *priorityQueue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	lanes := make(map[string]int, len(q.lanes))
	for p, lane := range q.lanes {
		lanes[p.String()] = len(lane)
	}
	return Snapshot{
		Capacity:  q.cfg.Capacity,
		Total:     q.total,
		Lanes:     lanes,
		Submitted: q.submitted,
		Rejected:  q.rejected,
		Taken:     q.taken,
	}
}

// Close 关闭队列
func (q *priorityQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	close(q.done)
	q.logger.Info("priority queue closed")
	return nil
}

func (q *priorityQueue) recordSubmit(p transport.Priority, outcome string) {
	if q.submitCounter == nil {
		return
	}
	q.submitCounter.Inc(context.Background(),
		metrics.L(metrics.LabelPriority, p.String()),
		metrics.L(metrics.LabelOutcome, outcome))
}
