package cache

import (
	"context"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/outpost/cache/serializer"
	"github.com/ceyewan/outpost/clog"
	"github.com/ceyewan/outpost/metrics"
	"github.com/ceyewan/outpost/transport"
	"github.com/ceyewan/outpost/xerrors"
)

// redisCache 分布式缓存实现。TTL 与容量淘汰由 Redis 负责。
type redisCache struct {
	cfg        *Config
	client     *redis.Client
	serializer serializer.Serializer
	logger     clog.Logger

	hits   atomic.Uint64
	misses atomic.Uint64

	hitCounter  metrics.Counter
	missCounter metrics.Counter
}

func newRedis(cfg *Config, opt *options) (*redisCache, error) {
	s, err := serializer.New(cfg.Serializer)
	if err != nil {
		return nil, xerrors.Wrapf(err, "cache: serializer %q", cfg.Serializer)
	}

	c := &redisCache{
		cfg:        cfg,
		client:     opt.redisConn.GetClient(),
		serializer: s,
		logger:     opt.logger,
	}

	if opt.meter != nil {
		c.hitCounter, _ = opt.meter.Counter(MetricHitTotal, "Number of cache hits")
		c.missCounter, _ = opt.meter.Counter(MetricMissTotal, "Number of cache misses")
	}

	c.logger.Info("distributed cache created",
		clog.String("prefix", cfg.Prefix),
		clog.Duration("ttl", cfg.TTL))
	return c, nil
}

func (c *redisCache) key(fingerprint string) string {
	return c.cfg.Prefix + fingerprint
}

// Get 按指纹查询缓存的响应。
// Redis 错误和损坏的条目都按 miss 处理，绝不向上传播。
func (c *redisCache) Get(ctx context.Context, fingerprint string) (*transport.Response, bool) {
	data, err := c.client.Get(ctx, c.key(fingerprint)).Bytes()
	if err != nil {
		if !xerrors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed, treating as miss", clog.Error(err))
		}
		c.miss(ctx)
		return nil, false
	}

	var resp transport.Response
	if err := c.serializer.Unmarshal(data, &resp); err != nil {
		// 损坏的条目：删除并按 miss 处理
		c.logger.Warn("corrupt cache entry dropped", clog.Error(err))
		c.client.Del(ctx, c.key(fingerprint))
		c.miss(ctx)
		return nil, false
	}

	c.hits.Add(1)
	if c.hitCounter != nil {
		c.hitCounter.Inc(ctx)
	}
	return &resp, true
}

// Set 存入一条响应，TTL 交由 Redis 生效
func (c *redisCache) Set(ctx context.Context, fingerprint string, resp *transport.Response) error {
	if resp == nil {
		return nil
	}

	data, err := c.serializer.Marshal(resp)
	if err != nil {
		return xerrors.Wrap(err, "cache: marshal response")
	}
	return c.client.Set(ctx, c.key(fingerprint), data, c.cfg.TTL).Err()
}

// Snapshot 返回缓存状态快照。
// 条目数和容量由 Redis 管理，这里只暴露本进程观测到的命中情况。
func (c *redisCache) Snapshot() Snapshot {
	return Snapshot{
		Mode:   "distributed",
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// Close 缓存仅借用连接器，不关闭底层连接
func (c *redisCache) Close() error {
	return nil
}

func (c *redisCache) miss(ctx context.Context) {
	c.misses.Add(1)
	if c.missCounter != nil {
		c.missCounter.Inc(ctx)
	}
}
