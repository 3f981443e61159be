// Package watch 定时扫描收件目录，把新图片去背景后写到输出目录。
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"github.com/chaos-io/nobg/batch"
	"github.com/chaos-io/nobg/compose"
	"github.com/chaos-io/nobg/config"
	"github.com/chaos-io/nobg/imaging"
	"github.com/chaos-io/nobg/util"
)

const lockName = ".nobg.lock"

// ErrBusy 另一个进程持有输出目录的锁
var ErrBusy = errors.New("outbox is locked by another watcher")

// Stats 一次扫描的结果
type Stats struct {
	Found     int
	Processed int
	Failed    int
}

type Watcher struct {
	inbox     string
	outbox    string
	schedule  string
	bg        compose.Background
	processor *batch.Processor
	lock      *flock.Flock

	mu     sync.Mutex
	failed map[string]time.Time
	// done 本进程写出过结果的输入：修改时间和输出路径
	done map[string]processed
}

type processed struct {
	modTime time.Time
	dest    string
}

func New(cfg config.Watch, processor *batch.Processor) (*Watcher, error) {
	bg, err := compose.ParseBackground(cfg.Background)
	if err != nil {
		return nil, err
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", cfg.Schedule, err)
	}
	for _, dir := range []string{cfg.Inbox, cfg.Outbox} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	return &Watcher{
		inbox:     cfg.Inbox,
		outbox:    cfg.Outbox,
		schedule:  cfg.Schedule,
		bg:        bg,
		processor: processor,
		lock:      flock.New(filepath.Join(cfg.Outbox, lockName)),
		failed:    make(map[string]time.Time),
		done:      make(map[string]processed),
	}, nil
}

// Scan 返回收件目录中尚未处理的图片，按文件名排序。
// 处理过或失败过且未修改的文件会被跳过；进程重启后，主名唯一且输出已存在的文件也视为处理过。
func (w *Watcher) Scan() ([]imaging.Source, error) {
	entries, err := os.ReadDir(w.inbox)
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var candidates []os.DirEntry
	stems := make(map[string]int)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !imaging.IsSupported(name) {
			continue
		}
		candidates = append(candidates, entry)
		stems[strings.ToLower(util.FileStem(name))]++
	}

	var sources []imaging.Source
	for _, entry := range candidates {
		name := entry.Name()
		var modTime time.Time
		if info, err := entry.Info(); err == nil {
			modTime = info.ModTime()
		}

		if prev, ok := w.done[name]; ok {
			if prev.modTime.Equal(modTime) {
				continue
			}
		} else if stems[strings.ToLower(util.FileStem(name))] == 1 && exists(filepath.Join(w.outbox, imaging.OutputName(name))) {
			continue
		}
		if at, ok := w.failed[name]; ok && at.Equal(modTime) {
			continue
		}
		sources = append(sources, imaging.FromPath(filepath.Join(w.inbox, name)))
	}
	return sources, nil
}

// Tick 扫描并处理一次。拿不到锁时返回 ErrBusy。
func (w *Watcher) Tick(ctx context.Context) (Stats, error) {
	locked, err := w.lock.TryLock()
	if err != nil {
		return Stats{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return Stats{}, ErrBusy
	}
	defer func() {
		if err := w.lock.Unlock(); err != nil {
			slog.Warn("failed to release outbox lock", "error", err)
		}
	}()

	sources, err := w.Scan()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Found: len(sources)}
	if len(sources) == 0 {
		return stats, nil
	}

	var names imaging.OutputNames
	err = w.processor.Run(ctx, sources, w.bg, func(p batch.Progress) {
		src := sources[p.Index]
		if p.State() == batch.Failed {
			stats.Failed++
			w.markFailed(src.Path)
			return
		}
		dest := w.destFor(&names, p.Name)
		if err := imaging.WritePNG(p.Output.PNG, dest); err != nil {
			stats.Failed++
			slog.Error("write result", "path", dest, "error", err)
			return
		}
		stats.Processed++
		w.markDone(src.Path, dest)
		slog.Info("result written", "source", src.Path, "path", dest)
	})
	return stats, err
}

// destFor 同一个输入重新处理时覆盖它上次的结果，否则取输出目录里还没被占用的名字
func (w *Watcher) destFor(names *imaging.OutputNames, name string) string {
	w.mu.Lock()
	prev, ok := w.done[name]
	w.mu.Unlock()
	if ok {
		return prev.dest
	}
	for {
		dest := filepath.Join(w.outbox, names.Next(name))
		if !exists(dest) {
			return dest
		}
	}
}

func (w *Watcher) markDone(path, dest string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	name := filepath.Base(path)
	w.done[name] = processed{modTime: info.ModTime(), dest: dest}
	delete(w.failed, name)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (w *Watcher) markFailed(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failed[filepath.Base(path)] = info.ModTime()
}

// Run 按 schedule 执行 Tick，直到 ctx 结束。上一次还没结束时跳过本次。
func (w *Watcher) Run(ctx context.Context) error {
	logger := cronLogger{}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	_, err := c.AddFunc(w.schedule, func() {
		stats, err := w.Tick(ctx)
		switch {
		case errors.Is(err, ErrBusy):
			slog.Info("outbox locked, skipping tick", "outbox", w.outbox)
		case err != nil:
			slog.Error("watch tick failed", "error", err)
		case stats.Found > 0:
			slog.Info("watch tick done", "found", stats.Found, "processed", stats.Processed, "failed", stats.Failed)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", w.schedule, err)
	}

	slog.Info("watching", "inbox", w.inbox, "outbox", w.outbox, "schedule", w.schedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// cronLogger 把 cron 的日志转给 slog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
