package batch

import (
	"context"
	"iter"
	"log/slog"
	"sync/atomic"

	"github.com/chaos-io/nobg/apperr"
	"github.com/chaos-io/nobg/compose"
	"github.com/chaos-io/nobg/imaging"
)

// State 批处理条目的状态
type State int

const (
	Pending State = iota
	Processing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Processing:
		return "processing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Progress 每个条目结束时的通知，Result 与 Error 恰有一个非空
type Progress struct {
	Index  int    `json:"index"`
	Total  int    `json:"total"`
	Name   string `json:"name"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`

	Kind   apperr.Kind `json:"-"`
	Output *Result     `json:"-"`
}

func (p Progress) State() State {
	if p.Error != "" {
		return Failed
	}
	return Completed
}

// Batch 先执行准备步骤，失败直接返回错误；成功后返回按顺序处理各条目的序列。
// 序列是惰性的，只能遍历一次，再次遍历不产生任何元素。
// 每个条目之前检查 ctx，取消后剩余条目都以取消原因报告为失败。
func (p *Processor) Batch(ctx context.Context, sources []imaging.Source, bg compose.Background) (iter.Seq[Progress], error) {
	if err := p.Prepare(ctx); err != nil {
		return nil, err
	}

	var started atomic.Bool
	total := len(sources)
	return func(yield func(Progress) bool) {
		if !started.CompareAndSwap(false, true) {
			return
		}

		for i, src := range sources {
			progress := Progress{Index: i, Total: total, Name: src.DisplayName()}

			if err := ctx.Err(); err != nil {
				progress.Error = err.Error()
				progress.Kind = apperr.KindOf(err)
			} else if res, err := p.process(ctx, src, bg); err != nil {
				progress.Error = err.Error()
				progress.Kind = apperr.KindOf(err)
				slog.Warn("batch item failed", "index", i, "name", progress.Name, "error", err)
			} else {
				progress.Result = res.DataURL
				progress.Output = res
			}

			if !yield(progress) {
				return
			}
		}
	}, nil
}

// Run 把 Batch 的结果依次交给 sink，只有准备失败时返回错误
func (p *Processor) Run(ctx context.Context, sources []imaging.Source, bg compose.Background, sink func(Progress)) error {
	seq, err := p.Batch(ctx, sources, bg)
	if err != nil {
		return err
	}

	var failed int
	for progress := range seq {
		if progress.State() == Failed {
			failed++
		}
		sink(progress)
	}
	slog.Info("batch finished", "total", len(sources), "failed", failed)
	return nil
}
