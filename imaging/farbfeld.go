package imaging

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
)

const farbfeldMagic = "farbfeld"

// farbfeld: 8 字节魔数 + 宽高(uint32 BE) + 每像素 4x uint16 BE 的非预乘 RGBA
func readFarbfeldHeader(r io.Reader) (int, int, error) {
	var hdr [16]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, 0, fmt.Errorf("farbfeld header: %w", err)
	}
	if string(hdr[:8]) != farbfeldMagic {
		return 0, 0, errors.New("farbfeld: bad magic")
	}
	w := binary.BigEndian.Uint32(hdr[8:12])
	h := binary.BigEndian.Uint32(hdr[12:16])
	if w > 1<<20 || h > 1<<20 {
		return 0, 0, fmt.Errorf("farbfeld: dimensions %dx%d too large", w, h)
	}
	if err := checkPixelBudget(int(w), int(h)); err != nil {
		return 0, 0, err
	}
	return int(w), int(h), nil
}

func decodeFarbfeldConfig(r io.Reader) (image.Config, error) {
	w, h, err := readFarbfeldHeader(r)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{ColorModel: color.NRGBA64Model, Width: w, Height: h}, nil
}

func decodeFarbfeld(r io.Reader) (image.Image, error) {
	w, h, err := readFarbfeldHeader(r)
	if err != nil {
		return nil, err
	}
	img := image.NewNRGBA64(image.Rect(0, 0, w, h))
	row := make([]byte, w*8)
	for y := 0; y < h; y++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return nil, fmt.Errorf("farbfeld row %d: %w", y, err)
		}
		// 像素布局与 NRGBA64.Pix 相同（大端 16 位）
		copy(img.Pix[y*img.Stride:], row)
	}
	return img, nil
}
