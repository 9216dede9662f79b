package collector

import (
	"context"
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/LJTian/NewsShow/internal/logger"
	"github.com/gocolly/colly/v2"
)

const (
	defaultUserAgent    = "NewsShowBot/1.0"
	defaultFetchTimeout = 10 * time.Second
	defaultMaxBodyBytes = 4 << 20 // 4MB，单个 feed 不会超过这个量级
)

var (
	// ErrTransport 网络层失败：连接、超时、非 2xx 状态码
	ErrTransport = errors.New("transport error")
	// ErrParse feed 内容无法解析
	ErrParse = errors.New("parse error")
)

// NewsItem 从 feed 中抽取出的一条新闻，构造后不再修改
type NewsItem struct {
	Title string
	Link  string
	// 解析失败或缺失时为 nil，不参与时效过滤
	PublishedAt *time.Time
	Source      string
	ImageURL    string
	// 描述的纯文本，只用于关键词匹配，不对外输出
	Summary string
}

// Fetcher 抽象单个数据源的抓取 + 解析
type Fetcher interface {
	Fetch(ctx context.Context, src FeedSource) ([]NewsItem, error)
}

// FeedCache 原始 feed 内容缓存，命中后跳过网络请求
type FeedCache interface {
	GetFeed(ctx context.Context, endpoint string) ([]byte, bool)
	SetFeed(ctx context.Context, endpoint string, body []byte) error
}

// FeedFetcher 基于 colly 下载 feed，再交给 gofeed 解析
type FeedFetcher struct {
	userAgent string
	timeout   time.Duration
	maxBody   int
	cache     FeedCache
}

// Option configures a FeedFetcher.
type Option func(*FeedFetcher)

func WithUserAgent(ua string) Option {
	return func(f *FeedFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(f *FeedFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func WithMaxBodySize(n int) Option {
	return func(f *FeedFetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// WithCache 为 nil 时不启用缓存
func WithCache(c FeedCache) Option {
	return func(f *FeedFetcher) {
		f.cache = c
	}
}

func NewFeedFetcher(opts ...Option) *FeedFetcher {
	f := &FeedFetcher{
		userAgent: defaultUserAgent,
		timeout:   defaultFetchTimeout,
		maxBody:   defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch 下载并解析一个数据源，按 src.Limit 截断
func (f *FeedFetcher) Fetch(ctx context.Context, src FeedSource) ([]NewsItem, error) {
	body, err := f.body(ctx, src.Endpoint)
	if err != nil {
		return nil, err
	}
	feed, err := ParseFeed(body)
	if err != nil {
		return nil, err
	}
	return Extract(feed, src), nil
}

// Warm 绕过缓存直接下载并回写缓存，供定时预热使用
func (f *FeedFetcher) Warm(ctx context.Context, src FeedSource) error {
	if f.cache == nil {
		return nil
	}
	body, err := f.Download(ctx, src.Endpoint)
	if err != nil {
		return err
	}
	// 解析失败的内容不写入缓存
	if _, err := ParseFeed(body); err != nil {
		return err
	}
	return f.cache.SetFeed(ctx, src.Endpoint, body)
}

func (f *FeedFetcher) body(ctx context.Context, endpoint string) ([]byte, error) {
	if f.cache != nil {
		if bs, ok := f.cache.GetFeed(ctx, endpoint); ok {
			return bs, nil
		}
	}

	bs, err := f.Download(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.SetFeed(ctx, endpoint, bs); err != nil {
			logger.Debugf("feed cache set %s error: %v", endpoint, err)
		}
	}
	return bs, nil
}

// Download 每次调用新建 collector，请求随 ctx 取消而中止
func (f *FeedFetcher) Download(ctx context.Context, endpoint string) ([]byte, error) {
	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.UserAgent(f.userAgent),
		colly.MaxBodySize(f.maxBody),
		colly.IgnoreRobotsTxt(),
	)
	c.SetRequestTimeout(f.timeout)

	var body []byte
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		// Content-Type 带 charset 时 colly 已把 body 转成 UTF-8
		if strings.Contains(strings.ToLower(r.Headers.Get("Content-Type")), "charset") {
			body = declareUTF8(body)
		}
	})

	if err := c.Visit(endpoint); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if body == nil {
		return nil, fmt.Errorf("%w: no response from %s", ErrTransport, endpoint)
	}
	return body, nil
}

var prologEncoding = regexp.MustCompile(`(?i)encoding\s*=\s*["'][^"']*["']`)

// declareUTF8 把 XML 声明中的 encoding 改为 UTF-8，避免解析时再次转码
func declareUTF8(body []byte) []byte {
	start := bytes.Index(body, []byte("<?xml"))
	if start < 0 || len(bytes.TrimSpace(body[:start])) > 3 {
		return body
	}
	end := bytes.Index(body[start:], []byte("?>"))
	if end < 0 {
		return body
	}
	end += start
	prolog := prologEncoding.ReplaceAll(body[start:end], []byte(`encoding="UTF-8"`))

	out := make([]byte, 0, len(body)+len(prolog)-(end-start))
	out = append(out, body[:start]...)
	out = append(out, prolog...)
	return append(out, body[end:]...)
}
