package rembg

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/nobg/apperr"
)

func TestSession_InitIdempotent(t *testing.T) {
	loader := &countingLoader{engine: &fakeEngine{prob: 1}}
	s := NewSession(loader.Load)
	model := writeModel(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Init(context.Background(), model))
		}()
	}
	wg.Wait()
	require.NoError(t, s.Init(context.Background(), model))

	assert.EqualValues(t, 1, loader.loads.Load())
	assert.True(t, s.Ready())
	assert.Equal(t, model, s.ModelPath())
}

func TestSession_InitMissingModel(t *testing.T) {
	loader := &countingLoader{engine: &fakeEngine{}}
	s := NewSession(loader.Load)
	missing := filepath.Join(t.TempDir(), "nope", "model.onnx")

	err := s.Init(context.Background(), missing)
	require.Error(t, err)
	assert.Equal(t, apperr.ModelNotInitialized, apperr.KindOf(err))
	assert.Contains(t, err.Error(), missing)
	assert.EqualValues(t, 0, loader.loads.Load())
	assert.False(t, s.Ready())
}

func TestSession_InitLoaderError(t *testing.T) {
	loader := &countingLoader{err: errors.New("corrupt model")}
	s := NewSession(loader.Load)

	err := s.Init(context.Background(), writeModel(t))
	require.Error(t, err)
	assert.Equal(t, apperr.Inference, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "corrupt model")
	assert.False(t, s.Ready())
}

func TestSession_WithoutModelFile(t *testing.T) {
	loader := &countingLoader{engine: &fakeEngine{prob: 1}}
	s := NewSession(loader.Load, WithoutModelFile())

	require.NoError(t, s.Init(context.Background(), "rmbg"))
	assert.True(t, s.Ready())
}

func TestSession_InferBeforeInit(t *testing.T) {
	s := NewSession((&countingLoader{engine: &fakeEngine{}}).Load)

	_, err := s.Infer(context.Background(), image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	assert.Equal(t, apperr.ModelNotInitialized, apperr.KindOf(err))
}

func TestSession_InferZeroArea(t *testing.T) {
	engine := &fakeEngine{prob: 1}
	s := NewSession((&countingLoader{engine: engine}).Load)
	require.NoError(t, s.Init(context.Background(), writeModel(t)))

	_, err := s.Infer(context.Background(), image.NewNRGBA(image.Rect(0, 0, 0, 5)))
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
	assert.Equal(t, 0, engine.calls)
}

func TestSession_Infer(t *testing.T) {
	tests := []struct {
		name string
		prob float32
		want uint8
	}{
		{name: "foreground", prob: 1, want: 255},
		{name: "background", prob: 0, want: 0},
		{name: "above one clamps", prob: 3, want: 255},
		{name: "negative clamps", prob: -2, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession((&countingLoader{engine: &fakeEngine{prob: tt.prob}}).Load)
			require.NoError(t, s.Init(context.Background(), writeModel(t)))

			mask, err := s.Infer(context.Background(), image.NewNRGBA(image.Rect(0, 0, 30, 20)))
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 30, 20), mask.Bounds())
			for _, v := range mask.Pix {
				require.Equal(t, tt.want, v)
			}
			assert.EqualValues(t, 1, s.Inferences())
		})
	}
}

func TestSession_OutputSizeMismatch(t *testing.T) {
	s := NewSession((&countingLoader{engine: &fakeEngine{prob: 1, size: 10}}).Load)
	require.NoError(t, s.Init(context.Background(), writeModel(t)))

	_, err := s.Infer(context.Background(), image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	require.Error(t, err)
	assert.Equal(t, apperr.Inference, apperr.KindOf(err))
}

func TestSession_EngineError(t *testing.T) {
	s := NewSession((&countingLoader{engine: &fakeEngine{fail: errors.New("device lost")}}).Load)
	require.NoError(t, s.Init(context.Background(), writeModel(t)))

	_, err := s.Infer(context.Background(), image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	require.Error(t, err)
	assert.Equal(t, apperr.Inference, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "device lost")
}

func TestSession_PanicRecovered(t *testing.T) {
	engine := &fakeEngine{prob: 1, panics: true}
	s := NewSession((&countingLoader{engine: engine}).Load)
	require.NoError(t, s.Init(context.Background(), writeModel(t)))
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))

	_, err := s.Infer(context.Background(), img)
	require.Error(t, err)
	assert.Equal(t, apperr.Inference, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "boom")

	// 锁已释放，后续推理正常
	mask, err := s.Infer(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), mask.GrayAt(3, 3).Y)
}

func TestSession_Close(t *testing.T) {
	engine := &fakeEngine{prob: 1}
	loader := &countingLoader{engine: engine}
	s := NewSession(loader.Load)
	model := writeModel(t)
	require.NoError(t, s.Init(context.Background(), model))

	require.NoError(t, s.Close())
	assert.True(t, engine.closed)
	assert.False(t, s.Ready())
	assert.Empty(t, s.ModelPath())

	require.NoError(t, s.Init(context.Background(), model))
	assert.EqualValues(t, 2, loader.loads.Load())
}
