package imaging

import (
	"bytes"
	"encoding/xml"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/chaos-io/nobg/apperr"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

const (
	// MinSVGWidth SVG 栅格化后的最小宽度
	MinSVGWidth = 2048.0
	// MaxSVGSide 栅格化尺寸上限，防止恶意的超大画布耗尽内存
	MaxSVGSide = 8192
)

// RasterizeSVG 把 SVG 渲染成非预乘的 NRGBA
func RasterizeSVG(data []byte) (*image.NRGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.WarnErrorMode)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, err, "parse svg")
	}

	w, h, err := canvasSize(data, icon.ViewBox.W, icon.ViewBox.H)
	if err != nil {
		return nil, err
	}
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		// 没有 viewBox 时用户坐标就是声明的尺寸
		icon.ViewBox.X, icon.ViewBox.Y = 0, 0
		icon.ViewBox.W, icon.ViewBox.H = w, h
	}

	scale := math.Max(MinSVGWidth/w, 1)
	pxW := int(math.Min(w*scale, MaxSVGSide))
	pxH := int(math.Min(h*scale, MaxSVGSide))
	if pxW <= 0 || pxH <= 0 {
		return nil, apperr.Newf(apperr.InvalidInput, "svg renders to an empty %dx%d bitmap", pxW, pxH)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, pxW, pxH))
	// 先平移 viewBox 原点再缩放到完整比例，超出上限的部分被裁掉
	icon.Transform = rasterx.Identity.
		Scale(w*scale/icon.ViewBox.W, h*scale/icon.ViewBox.H).
		Translate(-icon.ViewBox.X, -icon.ViewBox.Y)
	scanner := rasterx.NewScannerGV(pxW, pxH, canvas, canvas.Bounds())
	icon.Draw(rasterx.NewDasher(pxW, pxH, scanner), 1)

	return unpremultiply(canvas), nil
}

// unpremultiply 预乘 RGBA -> 直通 alpha，完全透明的像素全部置零
func unpremultiply(src *image.RGBA) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		s := src.Pix[y*src.Stride : y*src.Stride+b.Dx()*4]
		d := dst.Pix[y*dst.Stride : y*dst.Stride+b.Dx()*4]
		for i := 0; i < len(s); i += 4 {
			alpha := s[i+3]
			if alpha == 0 {
				continue
			}
			a := float32(alpha) / 255
			d[i] = clampByte(float32(s[i]) / a)
			d[i+1] = clampByte(float32(s[i+1]) / a)
			d[i+2] = clampByte(float32(s[i+2]) / a)
			d[i+3] = alpha
		}
	}
	return dst
}

// clampByte 截断（不四舍五入）并饱和到 [0,255]
func clampByte(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// canvasSize 以根元素的 width/height 为准，缺失的一边按 viewBox 比例补齐，都没有时用 viewBox
func canvasSize(data []byte, vbW, vbH float64) (float64, float64, error) {
	w, h, hasW, hasH := declaredSize(data)
	// 必须在分配任何像素之前拦截
	if (hasW && !(w > 0)) || (hasH && !(h > 0)) {
		return 0, 0, apperr.Newf(apperr.InvalidInput, "svg declares zero or negative size (%gx%g)", w, h)
	}

	viewBoxOK := vbW > 0 && vbH > 0
	switch {
	case hasW && hasH:
	case hasW && viewBoxOK:
		h = w * vbH / vbW
	case hasH && viewBoxOK:
		w = h * vbW / vbH
	case !hasW && !hasH:
		w, h = vbW, vbH
	default:
		w, h = 0, 0
	}

	if !(w > 0) || !(h > 0) || math.IsInf(w, 0) || math.IsInf(h, 0) {
		return 0, 0, apperr.Newf(apperr.InvalidInput, "svg canvas has zero or negative size (%gx%g)", w, h)
	}
	return w, h, nil
}

// declaredSize 读取根 <svg> 的 width/height（只接受纯数字或 px，百分比等视为未声明）
func declaredSize(data []byte) (w, h float64, hasW, hasH bool) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local != "svg" {
			return
		}
		for _, attr := range se.Attr {
			switch attr.Name.Local {
			case "width":
				w, hasW = parseLength(attr.Value)
			case "height":
				h, hasH = parseLength(attr.Value)
			}
		}
		return
	}
}

func parseLength(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
