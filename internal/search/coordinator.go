// Package search 实现一次关键词搜索的并发抓取、过滤、汇总与进度推送。
package search

import (
	"context"
	"strings"
	"time"

	"github.com/LJTian/NewsShow/internal/collector"
	"github.com/LJTian/NewsShow/internal/logger"
	"github.com/LJTian/NewsShow/internal/processor"
	"github.com/google/uuid"
)

const (
	DefaultFallbackKeyword = "Mumbai"

	recordTimeout = 5 * time.Second
)

// Summary 一次搜索完成后的概要，不含条目本身
type Summary struct {
	ID        string
	Keyword   string
	Sources   int
	Items     int
	Failures  []Failure
	StartedAt time.Time
	Duration  time.Duration
}

// Recorder 接收搜索概要，例如写入搜索历史
type Recorder interface {
	RecordSearch(ctx context.Context, s Summary) error
}

// Coordinator 每个请求并发抓取 搜索源 + 固定源，按完成顺序推送事件。
// Coordinator 本身无请求级状态，可被并发请求共享。
type Coordinator struct {
	registry     *collector.Registry
	fetcher      collector.Fetcher
	fallback     string
	searchSource func(keyword string) collector.FeedSource
	recorder     Recorder
	now          func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithFallbackKeyword(k string) Option {
	return func(c *Coordinator) {
		if k = strings.TrimSpace(k); k != "" {
			c.fallback = k
		}
	}
}

// WithSearchSource 替换搜索源的构造方式
func WithSearchSource(fn func(keyword string) collector.FeedSource) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.searchSource = fn
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		c.recorder = r
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

func New(registry *collector.Registry, fetcher collector.Fetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry:     registry,
		fetcher:      fetcher,
		fallback:     DefaultFallbackKeyword,
		searchSource: collector.SearchSource,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Keyword 去掉首尾空白，为空时返回兜底关键词
func (c *Coordinator) Keyword(raw string) string {
	if k := strings.TrimSpace(raw); k != "" {
		return k
	}
	return c.fallback
}

// Search 启动一次搜索并立即返回事件 channel。
// 每个数据源完成时先推送 progress，失败再追加 error；全部完成后推送唯一的 done 并关闭 channel。
// ctx 取消后不再推送任何事件，channel 直接关闭。
func (c *Coordinator) Search(ctx context.Context, keyword string) <-chan Event {
	keyword = c.Keyword(keyword)
	now := c.now()
	work := c.registry.WorkSet(c.searchSource(keyword))

	r := &run{
		id:       uuid.NewString(),
		keyword:  keyword,
		started:  now,
		begin:    time.Now(),
		criteria: processor.NewCriteria(keyword, now),
		work:     work,
		state:    newProgressState(len(work)),
		// progress + error 每源最多 2 条，外加 1 条 done
		out:     make(chan Event, 2*len(work)+1),
		results: make(chan processor.Outcome, len(work)),
	}

	ctx, cancel := context.WithCancel(ctx)
	r.dispatch(ctx, c.fetcher)
	go func() {
		defer cancel()
		if !r.await(ctx) {
			return
		}
		c.record(r)
	}()
	return r.out
}

type run struct {
	id       string
	keyword  string
	started  time.Time
	begin    time.Time
	criteria processor.Criteria
	work     []collector.FeedSource
	state    *ProgressState
	out      chan Event
	results  chan processor.Outcome
}

func (r *run) dispatch(ctx context.Context, f collector.Fetcher) {
	r.state.Phase = PhaseDispatching
	logger.Infof("[%s] search %q: dispatching %d sources", r.id, r.keyword, len(r.work))
	for _, src := range r.work {
		go runWorker(ctx, f, job{requestID: r.id, source: src, criteria: r.criteria}, r.results)
	}
	r.state.Phase = PhaseAwaiting
}

// await 消费 worker 结果直到全部完成；返回 false 表示请求被取消
func (r *run) await(ctx context.Context) bool {
	defer close(r.out)

	for !r.state.Done() {
		select {
		case <-ctx.Done():
			logger.Infof("[%s] search %q canceled after %d/%d sources", r.id, r.keyword, r.state.Completed, r.state.Total)
			return false
		case o := <-r.results:
			if !r.state.record(o) {
				continue
			}
			if !r.emit(ctx, Event{Kind: EventProgress, Percent: r.state.Percent()}) {
				return false
			}
			if o.Failed() {
				if !r.emit(ctx, Event{Kind: EventError, Source: o.Source, Message: o.Err.Error()}) {
					return false
				}
			}
		}
	}

	r.state.Phase = PhaseFinalizing
	items := processor.Aggregate(r.state.Outcomes)
	if !r.emit(ctx, Event{Kind: EventDone, Items: items}) {
		return false
	}
	r.state.Phase = PhaseTerminated
	logger.Infof("[%s] search %q done: items=%d failed=%d elapsed=%s",
		r.id, r.keyword, len(items), len(r.state.Failures), time.Since(r.begin).Round(time.Millisecond))
	return true
}

func (r *run) emit(ctx context.Context, ev Event) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case r.out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Coordinator) record(r *run) {
	if c.recorder == nil {
		return
	}
	s := Summary{
		ID:        r.id,
		Keyword:   r.keyword,
		Sources:   r.state.Total,
		Items:     r.state.ItemCount(),
		Failures:  r.state.Failures,
		StartedAt: r.started,
		Duration:  time.Since(r.begin),
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := c.recorder.RecordSearch(ctx, s); err != nil {
		logger.Warnf("[%s] record search error: %v", r.id, err)
	}
}
