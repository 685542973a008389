package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ceyewan/outpost/clog"
	"github.com/ceyewan/outpost/metrics"
	"github.com/ceyewan/outpost/transport"
)

// entry 单条缓存记录
type entry struct {
	resp        *transport.Response
	insertedAt  time.Time
	accessCount uint64
}

// standaloneCache 进程内缓存实现。
// TTL 惰性生效：过期条目在 Get 命中时清除；容量超限时按插入时间
// 清除最老的 10%。
type standaloneCache struct {
	cfg    *Config
	logger clog.Logger

	mu      sync.Mutex
	entries map[string]*entry

	hits    uint64
	misses  uint64
	evicted uint64
	expired uint64

	hitCounter  metrics.Counter
	missCounter metrics.Counter

	// now 可注入，测试用
	now func() time.Time
}

func newStandalone(cfg *Config, opt *options) *standaloneCache {
	c := &standaloneCache{
		cfg:     cfg,
		logger:  opt.logger,
		entries: make(map[string]*entry),
		now:     time.Now,
	}

	if opt.meter != nil {
		c.hitCounter, _ = opt.meter.Counter(MetricHitTotal, "Number of cache hits")
		c.missCounter, _ = opt.meter.Counter(MetricMissTotal, "Number of cache misses")
	}

	c.logger.Info("standalone cache created",
		clog.Duration("ttl", cfg.TTL),
		clog.Int("capacity", cfg.Standalone.Capacity))
	return c
}

// Get 按指纹查询缓存的响应
func (c *standaloneCache) Get(ctx context.Context, fingerprint string) (*transport.Response, bool) {
	c.mu.Lock()

	e, ok := c.entries[fingerprint]
	if !ok {
		c.misses++
		c.mu.Unlock()
		c.record(ctx, false)
		return nil, false
	}

	// 过期条目视为不存在并立即释放容量
	if c.now().Sub(e.insertedAt) >= c.cfg.TTL {
		delete(c.entries, fingerprint)
		c.expired++
		c.misses++
		c.mu.Unlock()
		c.record(ctx, false)
		return nil, false
	}

	e.accessCount++
	c.hits++
	resp := e.resp
	c.mu.Unlock()

	c.record(ctx, true)
	return resp, true
}

// Set 存入一条响应，超过容量时清除最老的 10%
func (c *standaloneCache) Set(ctx context.Context, fingerprint string, resp *transport.Response) error {
	if resp == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[fingerprint] = &entry{
		resp:       resp,
		insertedAt: c.now(),
	}

	if len(c.entries) > c.cfg.Standalone.Capacity {
		c.evictOldest()
	}
	return nil
}

// evictOldest 按插入时间清除最老的 10% 条目。调用方必须持有 mu。
func (c *standaloneCache) evictOldest() {
	type aged struct {
		fp string
		at time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for fp, e := range c.entries {
		all = append(all, aged{fp: fp, at: e.insertedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })

	n := len(all) / 10
	if n < 1 {
		n = 1
	}
	for _, a := range all[:n] {
		delete(c.entries, a.fp)
		c.evicted++
	}

	c.logger.Debug("evicted oldest cache entries", clog.Int("count", n))
}

// Snapshot 返回缓存状态快照
func (c *standaloneCache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		Mode:     "standalone",
		Entries:  len(c.entries),
		Capacity: c.cfg.Standalone.Capacity,
		Hits:     c.hits,
		Misses:   c.misses,
		Evicted:  c.evicted,
		Expired:  c.expired,
	}
}

// Close 清空缓存
func (c *standaloneCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	return nil
}

func (c *standaloneCache) record(ctx context.Context, hit bool) {
	if hit {
		if c.hitCounter != nil {
			c.hitCounter.Inc(ctx)
		}
		return
	}
	if c.missCounter != nil {
		c.missCounter.Inc(ctx)
	}
}
