// Package stream 把搜索事件编码到 HTTP 响应或标准输出。
package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/LJTian/NewsShow/internal/collector"
	"github.com/LJTian/NewsShow/internal/search"
	"github.com/gin-contrib/sse"
)

const (
	DateLayout = "2006-01-02 15:04"

	ContentTypeLines = "text/plain; charset=utf-8"
	ContentTypeSSE   = sse.ContentType
)

// Item done 事件中单条新闻的输出格式
type Item struct {
	Title  string `json:"title"`
	Link   string `json:"link"`
	Date   string `json:"date"`
	Source string `json:"source"`
	Image  string `json:"image"`
}

// Encoder 每次写入一条完整事件，调用方负责 flush
type Encoder interface {
	Encode(w io.Writer, ev search.Event) error
	ContentType() string
}

// ForFormat 按 format 参数选择编码器，未知格式返回 false
func ForFormat(format string) (Encoder, bool) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "lines", "text":
		return LineEncoder{}, true
	case "sse":
		return SSEEncoder{}, true
	default:
		return nil, false
	}
}

// ToItems 转成输出格式；结果不为 nil
func ToItems(items []collector.NewsItem) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		date := ""
		if it.PublishedAt != nil {
			date = it.PublishedAt.UTC().Format(DateLayout)
		}
		out = append(out, Item{
			Title:  it.Title,
			Link:   it.Link,
			Date:   date,
			Source: it.Source,
			Image:  it.ImageURL,
		})
	}
	return out
}

// marshalItems 不转义 & < >，链接原样输出
func marshalItems(items []collector.NewsItem) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ToItems(items)); err != nil {
		return "", fmt.Errorf("encode items: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// oneLine 一条事件只能占一行
var oneLine = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// LineEncoder 行协议：progress:N / error:源: 原因 / done:[...]
type LineEncoder struct{}

func (LineEncoder) ContentType() string { return ContentTypeLines }

func (LineEncoder) Encode(w io.Writer, ev search.Event) error {
	var line string
	switch ev.Kind {
	case search.EventProgress:
		line = fmt.Sprintf("progress:%d", ev.Percent)
	case search.EventError:
		line = "error:" + oneLine.Replace(ev.Source) + ": " + oneLine.Replace(ev.Message)
	case search.EventDone:
		data, err := marshalItems(ev.Items)
		if err != nil {
			return err
		}
		line = "done:" + data
	default:
		return fmt.Errorf("unknown event kind %d", ev.Kind)
	}
	_, err := io.WriteString(w, line+"\n")
	return err
}

// SSEEncoder 与行协议相同的负载，按 Server-Sent Events 分帧
type SSEEncoder struct{}

func (SSEEncoder) ContentType() string { return ContentTypeSSE }

func (SSEEncoder) Encode(w io.Writer, ev search.Event) error {
	var data string
	switch ev.Kind {
	case search.EventProgress:
		data = fmt.Sprintf("%d", ev.Percent)
	case search.EventError:
		data = oneLine.Replace(ev.Source) + ": " + oneLine.Replace(ev.Message)
	case search.EventDone:
		s, err := marshalItems(ev.Items)
		if err != nil {
			return err
		}
		data = s
	default:
		return fmt.Errorf("unknown event kind %d", ev.Kind)
	}
	return sse.Encode(w, sse.Event{Event: ev.Kind.String(), Data: data})
}
