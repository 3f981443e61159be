package compose

import (
	"image"

	"golang.org/x/image/draw"
)

// SubjectThreshold 判定为主体的 mask 值下限（不含）
const SubjectThreshold = 127

// SubjectBounds 从 mask 计算主体的 bounding box，mask 值 > threshold 的像素视为主体。
// 没有主体时 ok 为 false。
func SubjectBounds(mask *image.Gray, threshold uint8) (bbox image.Rectangle, ok bool) {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	minX, minY := w, h
	maxX, maxY := -1, -1

	for y := 0; y < h; y++ {
		row := mask.Pix[y*mask.Stride : y*mask.Stride+w]
		for x, v := range row {
			if v <= threshold {
				continue
			}
			minX = min(minX, x)
			maxX = max(maxX, x)
			minY = min(minY, y)
			maxY = max(maxY, y)
		}
	}

	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// CropToSubject 裁掉主体四周的背景，保留 padding 像素的边距。
// 没有主体时返回原图。
func CropToSubject(img *image.NRGBA, mask *image.Gray, padding int) *image.NRGBA {
	bbox, ok := SubjectBounds(mask, SubjectThreshold)
	if !ok {
		return img
	}

	rect := bbox.Inset(-max(padding, 0)).Intersect(image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy()))
	if rect == image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy()) {
		return img
	}

	dst := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, img.Rect.Min.Add(rect.Min), draw.Src)
	return dst
}
