package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const maxKeywordRunes = 100

// WatchKeyword 关注的关键词：通过 Web 添加，定时预热时会一并抓取其搜索源
type WatchKeyword struct {
	Keyword   string    `gorm:"primaryKey;size:100" json:"keyword"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListWatchKeywords 按添加顺序返回
func (h *History) ListWatchKeywords(ctx context.Context) ([]string, error) {
	var list []WatchKeyword
	if err := h.DB.WithContext(ctx).Order("created_at ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list watch keywords: %w", err)
	}
	out := make([]string, 0, len(list))
	for _, w := range list {
		out = append(out, w.Keyword)
	}
	return out, nil
}

// AddWatchKeyword 已存在则忽略；返回规范化后的关键词
func (h *History) AddWatchKeyword(ctx context.Context, keyword string) (string, error) {
	keyword = NormalizeKeyword(keyword)
	if keyword == "" {
		return "", nil
	}
	w := WatchKeyword{Keyword: keyword, CreatedAt: time.Now()}
	return keyword, h.DB.WithContext(ctx).Where("keyword = ?", keyword).FirstOrCreate(&w).Error
}

func (h *History) RemoveWatchKeyword(ctx context.Context, keyword string) error {
	keyword = NormalizeKeyword(keyword)
	if keyword == "" {
		return nil
	}
	return h.DB.WithContext(ctx).Where("keyword = ?", keyword).Delete(&WatchKeyword{}).Error
}

// NormalizeKeyword 合并空白并限制长度，非法时返回空串，供 API 校验使用
func NormalizeKeyword(keyword string) string {
	keyword = strings.Join(strings.Fields(toValidUTF8(keyword)), " ")
	if keyword == "" || len([]rune(keyword)) > maxKeywordRunes {
		return ""
	}
	return keyword
}
