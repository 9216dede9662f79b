package search

import (
	"github.com/LJTian/NewsShow/internal/collector"
	"github.com/LJTian/NewsShow/internal/processor"
)

type EventKind int

const (
	EventProgress EventKind = iota + 1
	EventError
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventError:
		return "error"
	case EventDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event 推送给客户端的一条进度 / 错误 / 完成事件
type Event struct {
	Kind EventKind
	// EventProgress: 0-100
	Percent int
	// EventError
	Source  string
	Message string
	// EventDone: 合并排序后的全部结果，可能为空但不为 nil
	Items []collector.NewsItem
}

// Failure 某个数据源的失败原因
type Failure struct {
	Source  string
	Message string
}

// Phase 协调器所处阶段
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDispatching
	PhaseAwaiting
	PhaseFinalizing
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDispatching:
		return "dispatching"
	case PhaseAwaiting:
		return "awaiting"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ProgressState 单次请求的进度，只由协调器 goroutine 读写
type ProgressState struct {
	Total     int
	Completed int
	Outcomes  []processor.Outcome
	Failures  []Failure
	Phase     Phase
}

func newProgressState(total int) *ProgressState {
	return &ProgressState{
		Total:    total,
		Outcomes: make([]processor.Outcome, 0, total),
		Phase:    PhaseIdle,
	}
}

// record 记录一个数据源的结果；超出 Total 的结果被忽略并返回 false
func (p *ProgressState) record(o processor.Outcome) bool {
	if p.Completed >= p.Total {
		return false
	}
	p.Completed++
	p.Outcomes = append(p.Outcomes, o)
	if o.Failed() {
		p.Failures = append(p.Failures, Failure{Source: o.Source, Message: o.Err.Error()})
	}
	return true
}

// Percent 向下取整的完成百分比
func (p *ProgressState) Percent() int {
	if p.Total <= 0 {
		return 100
	}
	return p.Completed * 100 / p.Total
}

func (p *ProgressState) Done() bool {
	return p.Completed >= p.Total
}

// ItemCount 目前累计的成功条目数
func (p *ProgressState) ItemCount() int {
	n := 0
	for _, o := range p.Outcomes {
		n += len(o.Items)
	}
	return n
}
