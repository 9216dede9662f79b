package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/NewsShow/internal/logger"
	"github.com/LJTian/NewsShow/internal/search"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	feedKeyPrefix = "newsshow:feed:"

	defaultFeedTTL     = 2 * time.Minute
	defaultSearchLimit = 20
	maxSearchLimit     = 200
)

// OpenRedis 连接 Redis 并 ping 一次；失败时调用方应关闭缓存继续运行
func OpenRedis(addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// OpenPostgres 打开数据库，只输出 warn 以上的 SQL 日志
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// ---------- feed 缓存 ----------

// FeedCache 以 endpoint 为 key 缓存原始 feed，短 TTL 自然过期
type FeedCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewFeedCache(rdb *redis.Client, ttl time.Duration) *FeedCache {
	if ttl <= 0 {
		ttl = defaultFeedTTL
	}
	return &FeedCache{rdb: rdb, ttl: ttl}
}

func feedKey(endpoint string) string {
	return feedKeyPrefix + endpoint
}

// GetFeed Redis 不可用时按未命中处理
func (c *FeedCache) GetFeed(ctx context.Context, endpoint string) ([]byte, bool) {
	bs, err := c.rdb.Get(ctx, feedKey(endpoint)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warnf("feed cache get %s error: %v", endpoint, err)
		}
		return nil, false
	}
	return bs, true
}

func (c *FeedCache) SetFeed(ctx context.Context, endpoint string, body []byte) error {
	if err := c.rdb.Set(ctx, feedKey(endpoint), body, c.ttl).Err(); err != nil {
		return fmt.Errorf("feed cache set %s: %w", endpoint, err)
	}
	return nil
}

// ---------- 搜索历史 ----------

// SearchRecord 一次完成的搜索；Failures 为 数据源 -> 失败原因
type SearchRecord struct {
	ID         string            `gorm:"primaryKey;size:40" json:"id"`
	Keyword    string            `gorm:"size:256;index" json:"keyword"`
	Sources    int               `json:"sources"`
	Items      int               `json:"items"`
	Failed     int               `json:"failed"`
	Failures   datatypes.JSONMap `json:"failures"`
	DurationMs int64             `json:"durationMs"`
	StartedAt  time.Time         `gorm:"index" json:"startedAt"`

	CreatedAt time.Time `json:"createdAt"`
}

// History 搜索历史、数据源失败统计与关注关键词
type History struct {
	DB *gorm.DB
}

func NewHistory(db *gorm.DB) (*History, error) {
	if err := db.AutoMigrate(&SearchRecord{}, &SourceFailure{}, &WatchKeyword{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &History{DB: db}, nil
}

// toValidUTF8 关键词与错误信息来自外部输入，入库前规范为合法 UTF-8
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunes 按 rune 截断，避免超过字段长度
func truncateRunes(s string, limit int) string {
	rs := []rune(strings.TrimSpace(s))
	if len(rs) <= limit {
		return string(rs)
	}
	return string(rs[:limit])
}

// RecordSearch 写入搜索记录，并累加失败数据源的计数
func (h *History) RecordSearch(ctx context.Context, s search.Summary) error {
	failures := datatypes.JSONMap{}
	for _, f := range s.Failures {
		failures[f.Source] = toValidUTF8(f.Message)
	}
	rec := &SearchRecord{
		ID:         s.ID,
		Keyword:    truncateRunes(toValidUTF8(s.Keyword), 256),
		Sources:    s.Sources,
		Items:      s.Items,
		Failed:     len(s.Failures),
		Failures:   failures,
		DurationMs: s.Duration.Milliseconds(),
		StartedAt:  s.StartedAt.UTC(),
	}

	return h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("save search %s: %w", s.ID, err)
		}
		for _, f := range s.Failures {
			if err := recordFailure(tx, f.Source, f.Message, rec.StartedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListRecentSearches 按开始时间倒序返回最近的搜索
func (h *History) ListRecentSearches(ctx context.Context, limit int) ([]SearchRecord, error) {
	if limit <= 0 || limit > maxSearchLimit {
		limit = defaultSearchLimit
	}
	var list []SearchRecord
	err := h.DB.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	return list, nil
}
