package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ceyewan/outpost/balancer"
	"github.com/ceyewan/outpost/breaker"
	"github.com/ceyewan/outpost/cache"
	"github.com/ceyewan/outpost/clog"
	"github.com/ceyewan/outpost/metrics"
	"github.com/ceyewan/outpost/queue"
	"github.com/ceyewan/outpost/ratelimit"
	"github.com/ceyewan/outpost/transport"
	"github.com/ceyewan/outpost/xerrors"
)

// orchestrator Dispatcher 的实现，持有全部治理组件的单例
type orchestrator struct {
	cfg    *Config
	logger clog.Logger

	queue    queue.Queue
	limiter  ratelimit.Limiter
	breaker  breaker.Breaker
	balancer balancer.Balancer
	cache    cache.Cache
	client   transport.Client

	startedAt time.Time
	started   atomic.Bool
	stopping  atomic.Bool
	done      chan struct{}
	wg        sync.WaitGroup

	submitted atomic.Uint64
	success   atomic.Uint64
	failed    atomic.Uint64
	throttled atomic.Uint64
	rejected  atomic.Uint64
	cacheHits atomic.Uint64
	retries   atomic.Uint64

	attemptCounter metrics.Counter
}

func newOrchestrator(cfg *Config, opt *options) (*orchestrator, error) {
	d := &orchestrator{
		cfg:    cfg,
		logger: opt.logger,
		done:   make(chan struct{}),
	}

	var err error

	var qopts []queue.Option
	var ropts []ratelimit.Option
	var bopts []breaker.Option
	var lopts []balancer.Option
	var copts []cache.Option
	var topts []transport.Option
	if opt.rawLogger != nil {
		qopts = append(qopts, queue.WithLogger(opt.rawLogger))
		ropts = append(ropts, ratelimit.WithLogger(opt.rawLogger))
		bopts = append(bopts, breaker.WithLogger(opt.rawLogger))
		lopts = append(lopts, balancer.WithLogger(opt.rawLogger))
		copts = append(copts, cache.WithLogger(opt.rawLogger))
		topts = append(topts, transport.WithLogger(opt.rawLogger))
	}
	if opt.meter != nil {
		qopts = append(qopts, queue.WithMeter(opt.meter))
		ropts = append(ropts, ratelimit.WithMeter(opt.meter))
		bopts = append(bopts, breaker.WithMeter(opt.meter))
		lopts = append(lopts, balancer.WithMeter(opt.meter))
		copts = append(copts, cache.WithMeter(opt.meter))
	}
	if opt.redisConn != nil {
		copts = append(copts, cache.WithRedisConnector(opt.redisConn))
	}

	if d.queue, err = queue.New(&cfg.Queue, qopts...); err != nil {
		return nil, xerrors.Wrap(err, "dispatch: build queue")
	}
	if d.limiter, err = ratelimit.New(&cfg.RateLimit, ropts...); err != nil {
		return nil, xerrors.Wrap(err, "dispatch: build rate limiter")
	}
	if d.breaker, err = breaker.New(&cfg.Breaker, bopts...); err != nil {
		return nil, xerrors.Wrap(err, "dispatch: build breaker")
	}
	if d.balancer, err = balancer.New(&cfg.Balancer, lopts...); err != nil {
		return nil, xerrors.Wrap(err, "dispatch: build balancer")
	}
	if d.cache, err = cache.New(&cfg.Cache, copts...); err != nil {
		return nil, xerrors.Wrap(err, "dispatch: build cache")
	}

	d.client = opt.client
	if d.client == nil {
		if d.client, err = transport.New(&cfg.Transport, topts...); err != nil {
			return nil, xerrors.Wrap(err, "dispatch: build transport")
		}
	}

	if opt.meter != nil {
		d.attemptCounter, _ = opt.meter.Counter(MetricAttemptTotal, "Number of dispatch attempts by outcome")
	}

	d.logger.Info("dispatcher created",
		clog.Int("workers", cfg.WorkerCount),
		clog.Int("endpoints", len(cfg.Balancer.Endpoints)))
	return d, nil
}

// Start 启动工作协程池
func (d *orchestrator) Start() error {
	if d.started.Swap(true) {
		return nil
	}
	d.startedAt = time.Now()

	for i := 0; i < d.cfg.WorkerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	d.logger.Info("dispatcher started", clog.Int("workers", d.cfg.WorkerCount))
	return nil
}

// Stop 停止调度
func (d *orchestrator) Stop(ctx context.Context) error {
	if !d.started.Load() || d.stopping.Swap(true) {
		return nil
	}

	close(d.done)
	d.queue.Close()

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		d.logger.Warn("stop timed out waiting for workers", clog.Error(ctx.Err()))
		return ctx.Err()
	}

	err := d.client.Close()
	d.logger.Info("dispatcher stopped")
	return err
}

// Submit 提交一个请求
func (d *orchestrator) Submit(req *transport.Request) error {
	if req == nil {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "dispatch: nil request")
	}
	if d.stopping.Load() {
		return ErrStopped
	}
	if err := d.queue.Submit(req); err != nil {
		if errors.Is(err, queue.ErrQueueClosed) {
			return ErrStopped
		}
		return ErrQueueSaturated
	}
	d.submitted.Add(1)
	return nil
}

// worker 消费循环。轮询受 TakeTimeout 约束，停机信号因此被及时观测；
// 停机后不再取新元素，当前尝试完成即退出。
func (d *orchestrator) worker(id int) {
	defer d.wg.Done()

	for {
		if d.stopping.Load() {
			return
		}
		req, ok := d.queue.Take(d.cfg.TakeTimeout)
		if !ok {
			continue
		}
		d.process(req)
	}
}

// process 执行一次完整的调度尝试。
// 任何 panic 都被吸收：单个请求的失败不能拖垮协程池。
func (d *orchestrator) process(req *transport.Request) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("worker recovered from panic",
				clog.Any("panic", r),
				clog.String("request_id", req.ID))
		}
	}()

	fp := cache.Fingerprint(req.Method, req.Path, req.Body)

	// 命中缓存：不触发网络，也不触碰任何失败/速率记账
	if resp, ok := d.cache.Get(context.Background(), fp); ok {
		d.cacheHits.Add(1)
		d.countAttempt(outcomeCacheHit)
		d.finish(req, resp)
		return
	}

	// 熔断拒绝：计为 rejection 而非失败，不自动重试
	if !d.breaker.Allow() {
		d.rejected.Add(1)
		d.countAttempt(outcomeRejected)
		d.logger.Debug("attempt rejected by breaker",
			clog.String("request_id", req.ID),
			clog.Error(breaker.ErrOpenState))
		d.finish(req, nil)
		return
	}

	// 限速等待：只挂起当前协程
	if wait := d.limiter.Reserve(); wait > 0 {
		d.sleep(wait)
	}

	url, ok := d.balancer.Select()
	if !ok {
		d.failed.Add(1)
		d.countAttempt(outcomeFailure)
		d.limiter.Record(false, 0)
		d.breaker.RecordFailure()
		d.logger.Warn("no endpoint available", clog.String("request_id", req.ID))
		d.finish(req, nil)
		return
	}

	start := time.Now()
	resp, err := d.client.Do(context.Background(), url, req)

	switch {
	case err != nil:
		d.recordFailure(url, time.Since(start))
		d.logger.Warn("transport attempt failed",
			clog.String("request_id", req.ID),
			clog.String("endpoint", url),
			clog.Error(err))
		d.finish(req, nil)

	case resp.Success():
		if err := d.cache.Set(context.Background(), fp, resp); err != nil {
			d.logger.Warn("cache write failed", clog.Error(err))
		}
		d.limiter.Record(true, resp.Latency)
		d.breaker.RecordSuccess()
		d.balancer.RecordOutcome(url, true, resp.Latency)
		d.success.Add(1)
		d.countAttempt(outcomeSuccess)
		d.finish(req, resp)

	case resp.Throttled():
		// 服务端限流：限速器和均衡器记非成功，熔断器不记账
		d.throttled.Add(1)
		d.countAttempt(outcomeThrottled)
		d.limiter.Record(false, resp.Latency)
		d.balancer.RecordOutcome(url, false, resp.Latency)
		d.finish(req, nil)
		d.retryAfterThrottle(req, resp)

	default:
		d.recordFailure(url, resp.Latency)
		d.logger.Warn("attempt failed with status",
			clog.String("request_id", req.ID),
			clog.String("endpoint", url),
			clog.Int("status", resp.StatusCode))
		d.finish(req, nil)
	}
}

// recordFailure 把一次传输失败回馈给限速器、熔断器和均衡器
func (d *orchestrator) recordFailure(url string, latency time.Duration) {
	d.limiter.Record(false, latency)
	d.breaker.RecordFailure()
	d.balancer.RecordOutcome(url, false, latency)
	d.failed.Add(1)
	d.countAttempt(outcomeFailure)
}

// retryAfterThrottle 按服务端建议挂起后，在重试预算内按原优先级重新入队
func (d *orchestrator) retryAfterThrottle(req *transport.Request, resp *transport.Response) {
	wait := resp.RetryAfter()
	d.logger.Info("throttled by remote, suspending",
		clog.String("request_id", req.ID),
		clog.Duration("retry_after", wait),
		clog.Int("retry_count", req.RetryCount))
	d.sleep(wait)

	if req.RetryCount >= req.MaxRetries {
		d.logger.Warn("retry budget exhausted, dropping request",
			clog.String("request_id", req.ID),
			clog.Int("max_retries", req.MaxRetries))
		return
	}

	req.RetryCount++
	if err := d.queue.Submit(req); err != nil {
		d.logger.Warn("resubmit rejected by queue",
			clog.String("request_id", req.ID),
			clog.Error(err))
		return
	}
	d.retries.Add(1)
}

// finish 每次尝试恰好调用一次回调；回调内的 panic 被吸收
func (d *orchestrator) finish(req *transport.Request, resp *transport.Response) {
	if req.Callback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("callback panic absorbed",
				clog.Any("panic", r),
				clog.String("request_id", req.ID))
		}
	}()
	req.Callback(resp, req.UserCtx)
}

// sleep 可被停机信号打断的挂起
func (d *orchestrator) sleep(dur time.Duration) {
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-d.done:
	}
}

func (d *orchestrator) countAttempt(outcome string) {
	if d.attemptCounter == nil {
		return
	}
	d.attemptCounter.Inc(context.Background(), metrics.L(metrics.LabelOutcome, outcome))
}
