package util

import (
	"log/slog"
	"time"
)

// Trace 记录一段代码的耗时，用法: defer util.Trace("batch")()
func Trace(msg string) func() {
	start := time.Now()
	slog.Debug("enter", "trace", msg)
	return func() {
		slog.Debug("exit", "trace", msg, "elapsed", time.Since(start))
	}
}
