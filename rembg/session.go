package rembg

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/chaos-io/nobg/apperr"
)

// Session 持有已加载的模型。整个进程通常只创建一个，由调用方注入到各处。
//
// Init 幂等且并发安全；Infer 在持锁期间调用引擎，同一时刻最多一个推理在执行。
// 引擎 panic 会被转换为 Inference 错误，锁随 defer 释放，Session 仍然可用。
type Session struct {
	loader     Loader
	checkFile  bool
	initMu     sync.Mutex
	ready      atomic.Bool
	runMu      sync.Mutex
	engine     Engine
	modelPath  string
	inferences atomic.Int64
}

type Option func(*Session)

// WithoutModelFile 远程引擎使用，Init 不检查本地模型文件
func WithoutModelFile() Option {
	return func(s *Session) {
		s.checkFile = false
	}
}

func NewSession(loader Loader, opts ...Option) *Session {
	s := &Session{loader: loader, checkFile: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init 加载模型；已经加载过则直接返回 nil
func (s *Session) Init(ctx context.Context, modelPath string) error {
	if s.ready.Load() {
		return nil
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.ready.Load() {
		return nil
	}

	if s.checkFile {
		if _, err := os.Stat(modelPath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return apperr.Newf(apperr.ModelNotInitialized,
					"model.onnx not found at %s; download RMBG-1.4 and place it there", modelPath)
			}
			return apperr.Wrap(apperr.ModelNotInitialized, err, "cannot access model "+modelPath)
		}
	}

	engine, err := s.loader(ctx, modelPath)
	if err != nil {
		return apperr.Wrap(apperr.Inference, err, "load model "+modelPath)
	}

	s.runMu.Lock()
	s.engine = engine
	s.modelPath = modelPath
	s.runMu.Unlock()
	s.ready.Store(true)

	slog.Info("model loaded", "path", modelPath)
	return nil
}

// Ready 模型是否已加载
func (s *Session) Ready() bool {
	return s.ready.Load()
}

// ModelPath 已加载模型的路径，未加载时为空
func (s *Session) ModelPath() string {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.modelPath
}

// Inferences 已完成的推理次数
func (s *Session) Inferences() int64 {
	return s.inferences.Load()
}

// Infer 预测前景 mask，尺寸与 img 相同
func (s *Session) Infer(ctx context.Context, img *image.NRGBA) (*image.Gray, error) {
	if !s.ready.Load() {
		return nil, apperr.New(apperr.ModelNotInitialized, "call Init before running inference")
	}

	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return nil, apperr.New(apperr.InvalidInput, "image has zero area")
	}

	input := ToTensor(img)
	output, err := s.run(ctx, input)
	if err != nil {
		return nil, err
	}
	return MaskFromTensor(output, w, h), nil
}

func (s *Session) run(ctx context.Context, input []float32) (output []float32, err error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("inference engine panicked", "panic", r)
			output, err = nil, apperr.Newf(apperr.Inference, "engine panicked: %v", r)
		}
	}()

	output, err = s.engine.Run(ctx, input)
	if err != nil {
		return nil, apperr.Wrap(apperr.Inference, err, "run")
	}
	if len(output) != planeSize {
		return nil, apperr.Newf(apperr.Inference,
			"unexpected output size %d, want %d (1x1x%dx%d)", len(output), planeSize, InputSize, InputSize)
	}
	s.inferences.Add(1)
	return output, nil
}

// Close 释放引擎。进程内一般不需要调用，测试和命令退出时使用。
func (s *Session) Close() error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.engine == nil {
		return nil
	}
	err := s.engine.Close()
	s.engine = nil
	s.modelPath = ""
	s.ready.Store(false)
	return err
}
