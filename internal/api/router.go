package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/LJTian/NewsShow/internal/collector"
	"github.com/LJTian/NewsShow/internal/logger"
	"github.com/LJTian/NewsShow/internal/search"
	"github.com/LJTian/NewsShow/internal/storage"
	"github.com/LJTian/NewsShow/internal/stream"
	"github.com/gin-gonic/gin"
)

// Searcher 启动一次搜索，返回按顺序推送的事件
type Searcher interface {
	Search(ctx context.Context, keyword string) <-chan search.Event
}

// HistoryStore 搜索历史相关的只读查询与关注关键词管理
type HistoryStore interface {
	ListRecentSearches(ctx context.Context, limit int) ([]storage.SearchRecord, error)
	SourceFailures(ctx context.Context) (map[string]storage.SourceFailure, error)
	ListWatchKeywords(ctx context.Context) ([]string, error)
	AddWatchKeyword(ctx context.Context, keyword string) (string, error)
	RemoveWatchKeyword(ctx context.Context, keyword string) error
}

type Server struct {
	searcher Searcher
	registry *collector.Registry
	// 未配置数据库时为 nil
	history HistoryStore
}

func NewServer(searcher Searcher, registry *collector.Registry, history HistoryStore) *Server {
	return &Server{searcher: searcher, registry: registry, history: history}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/search", s.search)
		v1.GET("/sources", s.listSources)
		v1.GET("/searches", s.listSearches)
		v1.GET("/keywords", s.listKeywords)
		v1.POST("/keywords", s.addKeyword)
		v1.DELETE("/keywords/:keyword", s.removeKeyword)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

func internalError(c *gin.Context) {
	fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
}

// historyDisabled 未配置数据库时返回 503
func (s *Server) historyDisabled(c *gin.Context) bool {
	if s.history != nil {
		return false
	}
	fail(c, http.StatusServiceUnavailable, "history_disabled", "search history is not configured")
	return true
}

// search 流式输出：每个事件写一条并立即 flush，done 之后结束响应
func (s *Server) search(c *gin.Context) {
	enc, found := stream.ForFormat(c.Query("format"))
	if !found {
		fail(c, http.StatusBadRequest, "invalid_format", "format must be lines or sse")
		return
	}

	events := s.searcher.Search(c.Request.Context(), c.Query("keyword"))

	h := c.Writer.Header()
	h.Set("Content-Type", enc.ContentType())
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for ev := range events {
		if err := enc.Encode(c.Writer, ev); err != nil {
			logger.Warnf("write %s event error: %v", ev.Kind, err)
			return
		}
		c.Writer.Flush()
	}
}

type sourceView struct {
	Name         string `json:"name"`
	Endpoint     string `json:"endpoint,omitempty"`
	Limit        int    `json:"limit"`
	KeywordMatch bool   `json:"keywordMatch"`
	Failures     int    `json:"failures"`
	LastError    string `json:"lastError,omitempty"`
}

// listSources 搜索源 + 固定源；配置了数据库时附带累计失败信息
func (s *Server) listSources(c *gin.Context) {
	var failures map[string]storage.SourceFailure
	if s.history != nil {
		f, err := s.history.SourceFailures(c.Request.Context())
		if err != nil {
			logger.Warnf("list source failures error: %v", err)
		}
		failures = f
	}

	list := make([]sourceView, 0, s.registry.Len()+1)
	list = append(list, sourceView{Name: collector.SearchSourceName, Limit: collector.SearchLimit})
	for _, src := range s.registry.Sources() {
		list = append(list, sourceView{
			Name:         src.Name,
			Endpoint:     src.Endpoint,
			Limit:        src.Limit,
			KeywordMatch: !src.PreFiltered,
		})
	}
	for i := range list {
		if f, found := failures[list[i].Name]; found {
			list[i].Failures = f.Count
			list[i].LastError = f.LastError
		}
	}
	ok(c, list)
}

func (s *Server) listSearches(c *gin.Context) {
	if s.historyDisabled(c) {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	items, err := s.history.ListRecentSearches(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("list searches error: %v", err)
		internalError(c)
		return
	}
	ok(c, items)
}

func (s *Server) listKeywords(c *gin.Context) {
	if s.historyDisabled(c) {
		return
	}
	keywords, err := s.history.ListWatchKeywords(c.Request.Context())
	if err != nil {
		logger.Errorf("list keywords error: %v", err)
		internalError(c)
		return
	}
	ok(c, keywords)
}

type keywordRequest struct {
	Keyword string `json:"keyword" binding:"required"`
}

func (s *Server) addKeyword(c *gin.Context) {
	if s.historyDisabled(c) {
		return
	}
	var req keywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", "keyword is required")
		return
	}
	keyword, err := s.history.AddWatchKeyword(c.Request.Context(), req.Keyword)
	if err != nil {
		logger.Errorf("add keyword %q error: %v", req.Keyword, err)
		internalError(c)
		return
	}
	if keyword == "" {
		fail(c, http.StatusBadRequest, "invalid_keyword", "keyword must be 1-100 characters")
		return
	}
	ok(c, gin.H{"keyword": keyword})
}

func (s *Server) removeKeyword(c *gin.Context) {
	if s.historyDisabled(c) {
		return
	}
	if err := s.history.RemoveWatchKeyword(c.Request.Context(), c.Param("keyword")); err != nil {
		logger.Errorf("remove keyword %q error: %v", c.Param("keyword"), err)
		internalError(c)
		return
	}
	ok(c, nil)
}
