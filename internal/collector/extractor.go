package collector

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// ParseFeed 解析 RSS / Atom / JSON Feed；gofeed.Parser 非并发安全，每次新建
func ParseFeed(body []byte) (*gofeed.Feed, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty feed body", ErrParse)
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return feed, nil
}

// Extract 将 feed 条目转换为 NewsItem，最多取 src.Limit 条（<=0 表示不限）
func Extract(feed *gofeed.Feed, src FeedSource) []NewsItem {
	if feed == nil {
		return nil
	}

	entries := feed.Items
	if src.Limit > 0 && len(entries) > src.Limit {
		entries = entries[:src.Limit]
	}

	items := make([]NewsItem, 0, len(entries))
	for _, it := range entries {
		if it == nil {
			continue
		}
		title := strings.TrimSpace(it.Title)
		link := strings.TrimSpace(it.Link)
		if title == "" && link == "" {
			continue
		}

		rawDesc := it.Description
		if rawDesc == "" {
			rawDesc = it.Content
		}
		summary, descImage := parseDescription(rawDesc)

		image := itemImage(it)
		if image == "" {
			image = descImage
		}

		items = append(items, NewsItem{
			Title:       title,
			Link:        link,
			PublishedAt: publishedAt(it),
			Source:      src.Name,
			ImageURL:    image,
			Summary:     summary,
		})
	}
	return items
}

// publishedAt 优先 published，其次 Atom 的 updated；都没有则返回 nil
func publishedAt(it *gofeed.Item) *time.Time {
	var t *time.Time
	switch {
	case it.PublishedParsed != nil:
		t = it.PublishedParsed
	case it.UpdatedParsed != nil:
		t = it.UpdatedParsed
	default:
		return nil
	}
	utc := t.UTC()
	return &utc
}

// itemImage 依次尝试 <image>、图片类型 enclosure、media:content / media:thumbnail
func itemImage(it *gofeed.Item) string {
	if it.Image != nil && strings.TrimSpace(it.Image.URL) != "" {
		return strings.TrimSpace(it.Image.URL)
	}
	for _, enc := range it.Enclosures {
		if enc != nil && enc.URL != "" && strings.HasPrefix(strings.ToLower(enc.Type), "image/") {
			return enc.URL
		}
	}
	if media, ok := it.Extensions["media"]; ok {
		for _, name := range []string{"content", "thumbnail"} {
			for _, ext := range media[name] {
				if u := strings.TrimSpace(ext.Attrs["url"]); u != "" {
					return u
				}
			}
		}
	}
	return ""
}

// parseDescription 将描述中的 HTML 转为纯文本，并顺带取出第一张图片
func parseDescription(raw string) (text, image string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	if !strings.Contains(raw, "<") {
		return collapseSpaces(raw), ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return collapseSpaces(raw), ""
	}
	if src, ok := doc.Find("img").First().Attr("src"); ok {
		image = strings.TrimSpace(src)
	}
	return collapseSpaces(doc.Text()), image
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
