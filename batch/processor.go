// Package batch 串联 imaging、rembg 和 compose：单张处理、顺序批处理和结果保存。
package batch

import (
	"context"
	"image"
	"log/slog"

	"github.com/chaos-io/nobg/apperr"
	"github.com/chaos-io/nobg/compose"
	"github.com/chaos-io/nobg/imaging"
	"github.com/chaos-io/nobg/rembg"
	"github.com/chaos-io/nobg/util"
)

// Result 一张图片的处理结果
type Result struct {
	Image   *image.NRGBA
	PNG     []byte
	DataURL string
}

type Processor struct {
	normalizer *imaging.Normalizer
	predictor  rembg.MaskPredictor
	prepare    func(ctx context.Context) error
	crop       int
}

type Option func(*Processor)

// WithPrepare 设置处理前的准备步骤（通常是加载模型），失败时不处理任何条目
func WithPrepare(fn func(ctx context.Context) error) Option {
	return func(p *Processor) {
		p.prepare = fn
	}
}

func NewProcessor(normalizer *imaging.Normalizer, predictor rembg.MaskPredictor, opts ...Option) *Processor {
	p := &Processor{
		normalizer: normalizer,
		predictor:  predictor,
		prepare:    func(context.Context) error { return nil },
		crop:       -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithCrop 合成后裁掉主体四周的背景，保留 padding 像素边距
func WithCrop(padding int) Option {
	return func(p *Processor) {
		p.crop = max(padding, 0)
	}
}

// ForSession 使用 session 推理，处理前先加载 modelPath
func ForSession(normalizer *imaging.Normalizer, session *rembg.Session, modelPath string, opts ...Option) *Processor {
	prepare := WithPrepare(func(ctx context.Context) error {
		return session.Init(ctx, modelPath)
	})
	return NewProcessor(normalizer, session, append([]Option{prepare}, opts...)...)
}

// Prepare 执行准备步骤
func (p *Processor) Prepare(ctx context.Context) error {
	return p.prepare(ctx)
}

// ProcessOne 处理单张图片，错误原样返回
func (p *Processor) ProcessOne(ctx context.Context, src imaging.Source, bg compose.Background) (*Result, error) {
	if err := p.Prepare(ctx); err != nil {
		return nil, err
	}
	return p.process(ctx, src, bg)
}

func (p *Processor) process(ctx context.Context, src imaging.Source, bg compose.Background) (*Result, error) {
	defer util.Trace("process " + src.DisplayName())()

	img, err := p.normalizer.Normalize(ctx, src)
	if err != nil {
		return nil, err
	}

	mask, err := p.predictor.Infer(ctx, img)
	if err != nil {
		return nil, err
	}
	if mask.Bounds() != img.Bounds() {
		return nil, apperr.Newf(apperr.Inference, "mask size %v does not match image size %v",
			mask.Bounds().Size(), img.Bounds().Size())
	}

	out := compose.Composite(img, mask, bg)
	if p.crop >= 0 {
		out = compose.CropToSubject(out, mask, p.crop)
	}
	data, err := imaging.EncodePNG(out)
	if err != nil {
		return nil, err
	}

	slog.Debug("image processed", "name", src.DisplayName(), "width", out.Rect.Dx(), "height", out.Rect.Dy(),
		"background", bg.String())
	return &Result{Image: out, PNG: data, DataURL: imaging.PNGToDataURL(data)}, nil
}
