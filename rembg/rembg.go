// Package rembg 管理分割模型的推理会话：加载模型、图片与张量互转、执行推理。
//
// 模型约定（RMBG-1.4）：
//
//	输入  "input"  [1, 3, 1024, 1024] float32，CHW，(pixel/255) - 0.5
//	输出  单个张量 [1, 1, 1024, 1024] float32，sigmoid 后的前景概率
package rembg

import (
	"context"
	"image"
)

const (
	// InputSize 模型固定的输入边长
	InputSize = 1024
	// InputName 模型输入张量的名字
	InputName = "input"

	planeSize = InputSize * InputSize
)

// MaskPredictor 根据图片预测前景 mask，*Session 实现了它
type MaskPredictor interface {
	Infer(ctx context.Context, img *image.NRGBA) (*image.Gray, error)
}

// Engine 推理引擎。Run 不要求可重入，Session 会保证串行调用。
type Engine interface {
	Run(ctx context.Context, input []float32) ([]float32, error)
	Close() error
}

// Loader 根据模型路径（或远程模型名）创建引擎
type Loader func(ctx context.Context, modelPath string) (Engine, error)
