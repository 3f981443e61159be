package rembg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeEngine 返回固定概率的输出
type fakeEngine struct {
	mu     sync.Mutex
	prob   float32
	size   int
	panics bool
	fail   error
	calls  int
	closed bool
}

func (e *fakeEngine) Run(_ context.Context, input []float32) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.panics {
		e.panics = false
		panic("boom")
	}
	if e.fail != nil {
		return nil, e.fail
	}
	if len(input) != 3*planeSize {
		return nil, errors.New("bad input length")
	}
	size := e.size
	if size == 0 {
		size = planeSize
	}
	out := make([]float32, size)
	for i := range out {
		out[i] = e.prob
	}
	return out, nil
}

func (e *fakeEngine) Close() error {
	e.closed = true
	return nil
}

type countingLoader struct {
	engine *fakeEngine
	loads  atomic.Int32
	err    error
}

func (l *countingLoader) Load(context.Context, string) (Engine, error) {
	l.loads.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	return l.engine, nil
}

func writeModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(path, []byte("onnx"), 0o644))
	return path
}
