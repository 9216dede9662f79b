package collector

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// SearchSourceName 关键词搜索源的名称
	SearchSourceName = "Google News"

	searchEndpointTemplate = "https://news.google.com/rss/search?q=%s&hl=en-IN&gl=IN&ceid=IN:en"

	// 单源截断上限，用于控制耗时与返回体积
	SearchLimit   = 30
	RegistryLimit = 15
)

// FeedSource 一个 feed 数据源
type FeedSource struct {
	Name     string
	Endpoint string
	Limit    int
	// 搜索源已按关键词查询，不再做关键词过滤
	PreFiltered bool
}

// Registry 固定的数据源列表，初始化后只读，可在请求间共享
type Registry struct {
	sources []FeedSource
}

// NewRegistry 复制一份入参，外部后续修改不影响 Registry
func NewRegistry(sources ...FeedSource) *Registry {
	cp := make([]FeedSource, len(sources))
	copy(cp, sources)
	return &Registry{sources: cp}
}

// DefaultRegistry 内置的 9 个新闻源
func DefaultRegistry() *Registry {
	return NewRegistry(
		registrySource("Times of India", "https://timesofindia.indiatimes.com/rssfeedstopstories.cms"),
		registrySource("Indian Express", "https://indianexpress.com/feed/"),
		registrySource("Hindustan Times", "https://www.hindustantimes.com/feeds/rss/india-news/rssfeed.xml"),
		registrySource("PTI", "https://www.ptinews.com/rss/pti.xml"),
		registrySource("ANI", "https://www.aninews.in/rssfeed.aspx?cat=home"),
		registrySource("Mid-Day", "https://www.mid-day.com/rss-feed"),
		registrySource("Mumbai Live", "https://www.mumbailive.com/en/rss"),
		registrySource("Free Press Journal", "https://www.freepressjournal.in/rss"),
		registrySource("Mumbai Mirror", "https://mumbaimirror.indiatimes.com/rss.cms"),
	)
}

func registrySource(name, endpoint string) FeedSource {
	return FeedSource{Name: name, Endpoint: endpoint, Limit: RegistryLimit}
}

// Sources 返回副本
func (r *Registry) Sources() []FeedSource {
	cp := make([]FeedSource, len(r.sources))
	copy(cp, r.sources)
	return cp
}

func (r *Registry) Len() int {
	return len(r.sources)
}

// WorkSet 本次请求要抓取的全部数据源：搜索源在前，其后是固定源
func (r *Registry) WorkSet(search FeedSource) []FeedSource {
	out := make([]FeedSource, 0, len(r.sources)+1)
	out = append(out, search)
	return append(out, r.sources...)
}

// SearchSource 按关键词构造搜索源，空白按 + 连接
func SearchSource(keyword string) FeedSource {
	return SearchSourceAt(searchEndpointTemplate, keyword)
}

// SearchSourceAt 使用自定义模板（需包含一个 %s），测试中指向本地服务
func SearchSourceAt(template, keyword string) FeedSource {
	q := url.QueryEscape(strings.Join(strings.Fields(keyword), " "))
	return FeedSource{
		Name:        SearchSourceName,
		Endpoint:    fmt.Sprintf(template, q),
		Limit:       SearchLimit,
		PreFiltered: true,
	}
}
