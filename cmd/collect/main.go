package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/LJTian/NewsShow/internal/collector"
	"github.com/LJTian/NewsShow/internal/config"
	"github.com/LJTian/NewsShow/internal/logger"
	"github.com/LJTian/NewsShow/internal/search"
	"github.com/LJTian/NewsShow/internal/stream"
)

// 命令行执行一次搜索，事件按行协议写到标准输出，日志写到标准错误
func main() {
	format := flag.String("format", "lines", "output format: lines or sse")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer logger.Sync()

	enc, ok := stream.ForFormat(*format)
	if !ok {
		log.Fatalf("unknown format %q", *format)
	}

	fetcher := collector.NewFeedFetcher(
		collector.WithUserAgent(cfg.UserAgent),
		collector.WithTimeout(cfg.FetchTimeout),
	)
	coordinator := search.New(collector.DefaultRegistry(), fetcher,
		search.WithFallbackKeyword(cfg.FallbackKeyword))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	for ev := range coordinator.Search(ctx, strings.Join(flag.Args(), " ")) {
		if err := enc.Encode(out, ev); err != nil {
			logger.Errorf("write event error: %v", err)
			return
		}
		_ = out.Flush()
	}
}
