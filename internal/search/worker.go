package search

import (
	"context"
	"fmt"

	"github.com/LJTian/NewsShow/internal/collector"
	"github.com/LJTian/NewsShow/internal/logger"
	"github.com/LJTian/NewsShow/internal/processor"
)

// job 一个 worker 需要的全部参数，显式传入，不依赖循环变量
type job struct {
	requestID string
	source    collector.FeedSource
	criteria  processor.Criteria
}

// runWorker 恰好向 results 写入一个 Outcome；results 的容量保证这里不会阻塞
func runWorker(ctx context.Context, f collector.Fetcher, j job, results chan<- processor.Outcome) {
	results <- work(ctx, f, j)
}

func work(ctx context.Context, f collector.Fetcher, j job) (o processor.Outcome) {
	name := j.source.Name
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[%s] fetch %s panic: %v", j.requestID, name, r)
			o = processor.Failure(name, fmt.Errorf("internal error: %v", r))
		}
	}()

	items, err := f.Fetch(ctx, j.source)
	if err != nil {
		logger.Warnf("[%s] fetch %s error: %v", j.requestID, name, err)
		return processor.Failure(name, err)
	}

	kept := j.criteria.Filter(j.source, items)
	logger.Debugf("[%s] %s done, fetched=%d kept=%d", j.requestID, name, len(items), len(kept))
	return processor.Success(name, kept)
}
