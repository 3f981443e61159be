package rembg

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortOnce sync.Once
	ortErr  error
)

// initRuntime 整个进程只初始化一次 onnxruntime 环境
func initRuntime(libPath string) error {
	ortOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortErr = ort.InitializeEnvironment()
		if ortErr != nil {
			ortErr = fmt.Errorf("initialize onnxruntime (lib %q): %w", libPath, ortErr)
		}
	})
	return ortErr
}

type onnxEngine struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// ONNXLoader 返回使用本地 onnxruntime 的 Loader，libPath 为空时使用默认的共享库
func ONNXLoader(libPath string) Loader {
	return func(ctx context.Context, modelPath string) (Engine, error) {
		if err := initRuntime(libPath); err != nil {
			return nil, err
		}

		_, outputs, err := ort.GetInputOutputInfo(modelPath)
		if err != nil {
			return nil, fmt.Errorf("read model io info: %w", err)
		}
		if len(outputs) == 0 {
			return nil, fmt.Errorf("model %s declares no outputs", modelPath)
		}
		outputName := outputs[0].Name

		input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, InputSize, InputSize))
		if err != nil {
			return nil, fmt.Errorf("create input tensor: %w", err)
		}
		output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, InputSize, InputSize))
		if err != nil {
			_ = input.Destroy()
			return nil, fmt.Errorf("create output tensor: %w", err)
		}

		session, err := ort.NewAdvancedSession(modelPath,
			[]string{InputName}, []string{outputName},
			[]ort.Value{input}, []ort.Value{output}, nil)
		if err != nil {
			_ = input.Destroy()
			_ = output.Destroy()
			return nil, fmt.Errorf("create session: %w", err)
		}

		slog.Debug("onnx session created", "model", modelPath, "output", outputName)
		return &onnxEngine{session: session, input: input, output: output}, nil
	}
}

func (e *onnxEngine) Run(ctx context.Context, data []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dst := e.input.GetData()
	if len(data) != len(dst) {
		return nil, fmt.Errorf("input has %d values, want %d", len(data), len(dst))
	}
	copy(dst, data)

	if err := e.session.Run(); err != nil {
		return nil, err
	}
	return slices.Clone(e.output.GetData()), nil
}

func (e *onnxEngine) Close() error {
	err := e.session.Destroy()
	_ = e.input.Destroy()
	_ = e.output.Destroy()
	return err
}
