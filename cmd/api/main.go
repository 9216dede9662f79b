package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/NewsShow/internal/api"
	"github.com/LJTian/NewsShow/internal/collector"
	"github.com/LJTian/NewsShow/internal/config"
	"github.com/LJTian/NewsShow/internal/logger"
	"github.com/LJTian/NewsShow/internal/scheduler"
	"github.com/LJTian/NewsShow/internal/search"
	"github.com/LJTian/NewsShow/internal/storage"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer logger.Sync()

	registry := collector.DefaultRegistry()
	fetcherOpts := []collector.Option{
		collector.WithUserAgent(cfg.UserAgent),
		collector.WithTimeout(cfg.FetchTimeout),
	}

	// Redis 可选：不可用时直接抓取，不启用预热
	var cache *storage.FeedCache
	if cfg.RedisAddr != "" {
		rdb, err := storage.OpenRedis(cfg.RedisAddr)
		if err != nil {
			logger.Warnf("feed cache disabled: %v", err)
		} else {
			defer rdb.Close()
			cache = storage.NewFeedCache(rdb, cfg.FeedCacheTTL)
			fetcherOpts = append(fetcherOpts, collector.WithCache(cache))
		}
	}
	fetcher := collector.NewFeedFetcher(fetcherOpts...)

	searchOpts := []search.Option{
		search.WithFallbackKeyword(cfg.FallbackKeyword),
	}

	// 数据库可选：用于搜索历史与关注关键词
	var history *storage.History
	if cfg.PostgresDSN != "" {
		db, err := storage.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("init history store failed: %v", err)
		}
		history, err = storage.NewHistory(db)
		if err != nil {
			log.Fatalf("init history store failed: %v", err)
		}
		searchOpts = append(searchOpts, search.WithRecorder(history))
	}
	coordinator := search.New(registry, fetcher, searchOpts...)

	if cache != nil {
		var schedOpts []scheduler.Option
		if history != nil {
			schedOpts = append(schedOpts, scheduler.WithKeywords(history.ListWatchKeywords))
		}
		s, err := scheduler.New(cfg.CronSpec, registry, fetcher, schedOpts...)
		if err != nil {
			log.Fatalf("init scheduler failed: %v", err)
		}
		s.Start()
		defer s.Stop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), api.AccessLog())
	r.Use(api.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware())

	var hs api.HistoryStore
	if history != nil {
		hs = history
	}
	api.NewServer(coordinator, registry, hs).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("starting api server at %s ...", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server exit: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Infof("shutting down api server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("server shutdown error: %v", err)
	}
}
