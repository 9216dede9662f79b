package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/LJTian/NewsShow/internal/collector"
	"github.com/LJTian/NewsShow/internal/logger"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency  = 4
	defaultRoundTimeout = 2 * time.Minute
	// 延迟执行首轮预热，避免与启动后的首批请求争抢出口带宽
	defaultStartupDelay = 15 * time.Second
)

// FeedWarmer 下载并缓存单个数据源
type FeedWarmer interface {
	Warm(ctx context.Context, src collector.FeedSource) error
}

// Scheduler 定时预热 feed 缓存：固定源 + 关注关键词的搜索源
type Scheduler struct {
	cron         *cron.Cron
	registry     *collector.Registry
	warmer       FeedWarmer
	keywords     func(ctx context.Context) ([]string, error)
	searchSource func(keyword string) collector.FeedSource
	concurrency  int
	roundTimeout time.Duration
	startupDelay time.Duration
}

type Option func(*Scheduler)

// WithKeywords 每轮开始时读取需要预热的关键词；读取失败时本轮只预热固定源
func WithKeywords(fn func(ctx context.Context) ([]string, error)) Option {
	return func(s *Scheduler) { s.keywords = fn }
}

func WithSearchSource(fn func(keyword string) collector.FeedSource) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.searchSource = fn
		}
	}
}

func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithStartupDelay(d time.Duration) Option {
	return func(s *Scheduler) { s.startupDelay = d }
}

func New(spec string, registry *collector.Registry, warmer FeedWarmer, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		cron:         cron.New(),
		registry:     registry,
		warmer:       warmer,
		searchSource: collector.SearchSource,
		concurrency:  defaultConcurrency,
		roundTimeout: defaultRoundTimeout,
		startupDelay: defaultStartupDelay,
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	time.AfterFunc(s.startupDelay, func() {
		go s.RunOnce(context.Background())
	})
}

// Stop 停止调度，返回的 ctx 在进行中的任务结束后 Done
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// sources 本轮需要预热的数据源
func (s *Scheduler) sources(ctx context.Context) []collector.FeedSource {
	out := s.registry.Sources()
	if s.keywords == nil {
		return out
	}
	keywords, err := s.keywords(ctx)
	if err != nil {
		logger.Warnf("load watch keywords error: %v", err)
		return out
	}
	for _, k := range keywords {
		out = append(out, s.searchSource(k))
	}
	return out
}

// RunOnce 单次预热，单个数据源失败只记日志；返回成功与失败数
func (s *Scheduler) RunOnce(ctx context.Context) (warmed, failed int) {
	ctx, cancel := context.WithTimeout(ctx, s.roundTimeout)
	defer cancel()

	srcs := s.sources(ctx)
	logger.Infof("start warm job, %d sources...", len(srcs))

	var ok, bad atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, src := range srcs {
		src := src
		g.Go(func() error {
			if err := s.warmer.Warm(gctx, src); err != nil {
				logger.Warnf("warm %s error: %v", src.Name, err)
				bad.Add(1)
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	warmed, failed = int(ok.Load()), int(bad.Load())
	logger.Infof("warm job done, warmed=%d failed=%d", warmed, failed)
	return warmed, failed
}
