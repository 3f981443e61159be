package compose

import (
	"fmt"
	"image"
)

// 3x3 高斯核 (1-2-1 / 2-4-2 / 1-2-1) / 16
var kernel = [9]float32{
	1.0 / 16.0, 2.0 / 16.0, 1.0 / 16.0,
	2.0 / 16.0, 4.0 / 16.0, 2.0 / 16.0,
	1.0 / 16.0, 2.0 / 16.0, 1.0 / 16.0,
}

// BlurMask 对 mask 做 3x3 高斯模糊，边界像素复制（clamp），消除“剪刀剪出来”的硬边
func BlurMask(mask *image.Gray) *image.Gray {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float32
			for ky := 0; ky < 3; ky++ {
				py := clamp(y+ky-1, 0, h-1)
				row := mask.Pix[py*mask.Stride:]
				for kx := 0; kx < 3; kx++ {
					px := clamp(x+kx-1, 0, w-1)
					// 显式转换阻止编译器生成 FMA，保证各平台结果一致
					sum += float32(float32(row[px]) * kernel[ky*3+kx])
				}
			}
			out.Pix[y*out.Stride+x] = truncByte(sum)
		}
	}
	return out
}

// Composite 用模糊后的 mask 作为 alpha，把原图合成到指定背景上。
// img 与 mask 尺寸必须一致，否则视为程序错误直接 panic。
func Composite(img *image.NRGBA, mask *image.Gray, bg Background) *image.NRGBA {
	if img.Rect.Size() != mask.Rect.Size() {
		panic(fmt.Sprintf("compose: image %v and mask %v differ in size", img.Rect.Size(), mask.Rect.Size()))
	}

	w, h := img.Rect.Dx(), img.Rect.Dy()
	alpha := BlurMask(mask)
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+w*4]
		m := alpha.Pix[y*alpha.Stride : y*alpha.Stride+w]

		for x := 0; x < w; x++ {
			s := src[x*4 : x*4+4]
			d := dst[x*4 : x*4+4]
			a := float32(m[x]) / 255

			switch bg.Kind {
			case Transparent:
				d[0], d[1], d[2], d[3] = s[0], s[1], s[2], m[x]
			case White:
				d[0] = blend(s[0], 255, a)
				d[1] = blend(s[1], 255, a)
				d[2] = blend(s[2], 255, a)
				d[3] = 255
			case Black:
				d[0] = truncByte(float32(s[0]) * a)
				d[1] = truncByte(float32(s[1]) * a)
				d[2] = truncByte(float32(s[2]) * a)
				d[3] = 255
			case Color:
				d[0] = blend(s[0], bg.R, a)
				d[1] = blend(s[1], bg.G, a)
				d[2] = blend(s[2], bg.B, a)
				d[3] = 255
			default:
				panic(fmt.Sprintf("compose: unknown background %v", bg.Kind))
			}
		}
	}
	return out
}

func blend(fg, bg uint8, a float32) uint8 {
	return truncByte(float32(float32(fg)*a) + float32(float32(bg)*(1-a)))
}

// truncByte 截断而不是四舍五入，保持输出可复现
func truncByte(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
