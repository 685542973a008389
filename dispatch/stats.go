package dispatch

import (
	"time"

	"github.com/ceyewan/outpost/balancer"
	"github.com/ceyewan/outpost/breaker"
	"github.com/ceyewan/outpost/cache"
	"github.com/ceyewan/outpost/queue"
	"github.com/ceyewan/outpost/ratelimit"
)

// Stats 调度器聚合统计快照，供外部按需读取和持久化
type Stats struct {
	Uptime            time.Duration `json:"uptime"`
	Submitted         uint64        `json:"submitted"`
	Success           uint64        `json:"success"`
	Failed            uint64        `json:"failed"`
	Throttled         uint64        `json:"throttled"`
	Rejected          uint64        `json:"rejected"`
	CacheHits         uint64        `json:"cache_hits"`
	Retries           uint64        `json:"retries"`
	RequestsPerSecond float64       `json:"requests_per_second"`

	Queue     queue.Snapshot              `json:"queue"`
	RateLimit ratelimit.Snapshot          `json:"ratelimit"`
	Breaker   breaker.Snapshot            `json:"breaker"`
	Cache     cache.Snapshot              `json:"cache"`
	Endpoints []balancer.EndpointSnapshot `json:"endpoints"`
}

// Stats 返回聚合统计快照
func (d *orchestrator) Stats() Stats {
	s := Stats{
		Submitted: d.submitted.Load(),
		Success:   d.success.Load(),
		Failed:    d.failed.Load(),
		Throttled: d.throttled.Load(),
		Rejected:  d.rejected.Load(),
		CacheHits: d.cacheHits.Load(),
		Retries:   d.retries.Load(),

		Queue:     d.queue.Snapshot(),
		RateLimit: d.limiter.Snapshot(),
		Breaker:   d.breaker.Snapshot(),
		Cache:     d.cache.Snapshot(),
		Endpoints: d.balancer.Snapshot(),
	}

	if d.started.Load() {
		s.Uptime = time.Since(d.startedAt)
		if secs := s.Uptime.Seconds(); secs > 0 {
			attempts := s.Success + s.Failed + s.Throttled + s.Rejected + s.CacheHits
			s.RequestsPerSecond = float64(attempts) / secs
		}
	}
	return s
}
