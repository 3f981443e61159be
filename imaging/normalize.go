package imaging

import (
	"context"
	"image"
	"log/slog"

	"github.com/chaos-io/nobg/apperr"
	"github.com/chaos-io/nobg/util"
	nhttp "github.com/chaos-io/nobg/util/http"
	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// MaxDimension 解码后任一边超过该值时等比缩小
const MaxDimension = 4096

// Normalizer 把各种输入统一成 NRGBA
type Normalizer struct {
	cli nhttp.IClient
}

func NewNormalizer() *Normalizer {
	return &Normalizer{cli: nhttp.NewHTTPClient()}
}

func NewNormalizerWithClient(cli nhttp.IClient) *Normalizer {
	return &Normalizer{cli: cli}
}

// Normalize 读取并解码输入，SVG 会被栅格化，超过 4096 的图片会被缩小
func (n *Normalizer) Normalize(ctx context.Context, src Source) (*image.NRGBA, error) {
	var (
		data []byte
		ext  string
		err  error
	)

	switch {
	case src.Path != "":
		ext = Ext(src.Path)
		if !IsSupported(src.Path) {
			return nil, apperr.Newf(apperr.UnsupportedFormat, "%s (.%s)", src.Path, ext)
		}
		data, err = util.ReadImageFile(src.Path)
		if err != nil {
			return nil, apperr.Wrap(apperr.InvalidInput, err, "cannot read image")
		}
	case src.URL != "":
		ext = Ext(src.Name)
		if !IsSupported(src.Name) {
			return nil, apperr.Newf(apperr.UnsupportedFormat, "%s (.%s)", src.URL, ext)
		}
		data, err = util.DownloadImage(ctx, n.cli, src.URL)
		if err != nil {
			return nil, apperr.Wrap(apperr.Io, err, "cannot fetch image")
		}
	default:
		data = src.Data
	}

	if len(data) == 0 {
		return nil, apperr.Newf(apperr.InvalidInput, "%s is empty", src.location())
	}

	img, err := decode(data, ext)
	if err != nil {
		if apperr.KindOf(err) != apperr.Unknown {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.InvalidInput, err, "cannot open "+src.location())
	}

	if img.Rect.Dx() == 0 || img.Rect.Dy() == 0 {
		return nil, apperr.Newf(apperr.InvalidInput, "%s has zero area", src.location())
	}

	out := SmartDownscale(img)
	if out.Rect.Dx() == 0 || out.Rect.Dy() == 0 {
		return nil, apperr.Newf(apperr.InvalidInput, "%s has zero area after downscale", src.location())
	}

	slog.Debug("normalized image", "name", src.DisplayName(),
		"width", out.Rect.Dx(), "height", out.Rect.Dy())
	return out, nil
}

// NormalizeBytes 内存数据的快捷入口
func (n *Normalizer) NormalizeBytes(ctx context.Context, name string, data []byte) (*image.NRGBA, error) {
	return n.Normalize(ctx, FromBytes(name, data))
}

func decode(data []byte, ext string) (*image.NRGBA, error) {
	if ext == "svg" || (ext == "" && looksLikeSVG(data)) {
		return RasterizeSVG(data)
	}
	img, err := decodeRaster(data, ext)
	if err != nil {
		return nil, err
	}
	return ToNRGBA(img), nil
}

// SmartDownscale 任一边超过 MaxDimension 时用 Lanczos3 等比缩小，从不放大
func SmartDownscale(img *image.NRGBA) *image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w <= MaxDimension && h <= MaxDimension {
		return img
	}

	// 整数运算保证长边恰好为 MaxDimension
	var nw, nh int
	if w >= h {
		nw, nh = MaxDimension, h*MaxDimension/w
	} else {
		nw, nh = w*MaxDimension/h, MaxDimension
	}
	if nw == 0 || nh == 0 {
		return image.NewNRGBA(image.Rect(0, 0, nw, nh))
	}

	resized := resize.Resize(uint(nw), uint(nh), img, resize.Lanczos3)
	return ToNRGBA(resized)
}

// ToNRGBA 转为原点在 (0,0) 的 NRGBA，方便统一处理
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if nrgba, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return nrgba
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
