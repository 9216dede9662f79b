package processor

import (
	"sort"

	"github.com/LJTian/NewsShow/internal/collector"
)

// Outcome 单个数据源的抓取结果：Err 为 nil 时是条目列表，否则是该源的失败原因
type Outcome struct {
	Source string
	Items  []collector.NewsItem
	Err    error
}

func Success(source string, items []collector.NewsItem) Outcome {
	return Outcome{Source: source, Items: items}
}

func Failure(source string, err error) Outcome {
	return Outcome{Source: source, Err: err}
}

func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Aggregate 合并所有成功结果并按发布时间倒序排列（稳定排序）。
// 发布时间未知的条目排在最前，同一时间按来源名升序。
func Aggregate(outcomes []Outcome) []collector.NewsItem {
	n := 0
	for _, o := range outcomes {
		if !o.Failed() {
			n += len(o.Items)
		}
	}

	out := make([]collector.NewsItem, 0, n)
	for _, o := range outcomes {
		if o.Failed() {
			continue
		}
		out = append(out, o.Items...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i], out[j])
	})
	return out
}

// newer 报告 a 是否应排在 b 之前
func newer(a, b collector.NewsItem) bool {
	switch {
	case a.PublishedAt == nil && b.PublishedAt == nil:
		return a.Source < b.Source
	case a.PublishedAt == nil:
		return true
	case b.PublishedAt == nil:
		return false
	case !a.PublishedAt.Equal(*b.PublishedAt):
		return a.PublishedAt.After(*b.PublishedAt)
	default:
		return a.Source < b.Source
	}
}
