package rembg

import (
	"image"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// ToTensor 缩放到 1024x1024，丢弃 alpha，归一化为 (p/255)-0.5 的 CHW 张量
func ToTensor(img *image.NRGBA) []float32 {
	resized := asRGBA(resize.Resize(InputSize, InputSize, opaqueRGB(img), resize.Lanczos3))

	data := make([]float32, 3*planeSize)
	for y := 0; y < InputSize; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < InputSize; x++ {
			idx := y*InputSize + x
			data[idx] = float32(row[x*4])/255 - 0.5
			data[planeSize+idx] = float32(row[x*4+1])/255 - 0.5
			data[2*planeSize+idx] = float32(row[x*4+2])/255 - 0.5
		}
	}
	return data
}

// opaqueRGB 复制 RGB 并把 alpha 置为 255，缩放时各通道独立插值，不受透明度影响
func opaqueRGB(img *image.NRGBA) *image.RGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+w*4]
		for i := 0; i < len(src); i += 4 {
			dst[i], dst[i+1], dst[i+2], dst[i+3] = src[i], src[i+1], src[i+2], 255
		}
	}
	return out
}

// MaskFromTensor 把 [1,1,1024,1024] 输出转成 mask 并缩放回原图尺寸。
// out 长度必须是 InputSize*InputSize。
func MaskFromTensor(out []float32, width, height int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, InputSize, InputSize))
	for i, v := range out[:planeSize] {
		mask.Pix[i] = probToByte(v)
	}
	if width == InputSize && height == InputSize {
		return mask
	}
	return asGray(resize.Resize(uint(width), uint(height), mask, resize.Lanczos3))
}

// probToByte clamp 到 [0,1] 后乘 255，截断取整
func probToByte(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(float32(v * 255))
}

func asRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func asGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok && gray.Rect.Min == (image.Point{}) {
		return gray
	}
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
