package processor

import (
	"strings"
	"time"

	"github.com/LJTian/NewsShow/internal/collector"
)

// RecencyWindow 只保留最近 24 小时内发布的新闻
const RecencyWindow = 24 * time.Hour

// Criteria 单次请求的过滤条件；Cutoff 在请求开始时计算一次，所有条目用同一时刻判断
type Criteria struct {
	Keyword string
	Cutoff  time.Time

	keywordLower string
}

func NewCriteria(keyword string, now time.Time) Criteria {
	return Criteria{
		Keyword:      keyword,
		Cutoff:       now.Add(-RecencyWindow),
		keywordLower: strings.ToLower(keyword),
	}
}

// Fresh 发布时间未知的条目一律视为足够新
func (c Criteria) Fresh(it collector.NewsItem) bool {
	if it.PublishedAt == nil {
		return true
	}
	return !it.PublishedAt.Before(c.Cutoff)
}

// Matches 在 标题 + 空格 + 摘要 中做大小写不敏感的子串匹配
func (c Criteria) Matches(it collector.NewsItem) bool {
	text := it.Title
	if it.Summary != "" {
		text += " " + it.Summary
	}
	return strings.Contains(strings.ToLower(text), c.keywordLower)
}

// Keep 搜索源只做时效过滤，固定源还要求命中关键词
func (c Criteria) Keep(src collector.FeedSource, it collector.NewsItem) bool {
	if !c.Fresh(it) {
		return false
	}
	if src.PreFiltered {
		return true
	}
	return c.Matches(it)
}

// Filter 返回通过过滤的条目，保持原有顺序
func (c Criteria) Filter(src collector.FeedSource, items []collector.NewsItem) []collector.NewsItem {
	out := make([]collector.NewsItem, 0, len(items))
	for _, it := range items {
		if c.Keep(src, it) {
			out = append(out, it)
		}
	}
	return out
}
