package imaging

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"strings"
)

// Radiance RGBE (.hdr) 解码，只支持标准的 "-Y h +X w" 方向
func readHDRHeader(br *bufio.Reader) (int, int, error) {
	first, err := br.ReadString('\n')
	if err != nil {
		return 0, 0, fmt.Errorf("hdr header: %w", err)
	}
	if !strings.HasPrefix(first, "#?") {
		return 0, 0, errors.New("hdr: bad magic")
	}
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return 0, 0, fmt.Errorf("hdr header: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "FORMAT="); ok && v != "32-bit_rle_rgbe" {
			return 0, 0, fmt.Errorf("hdr: unsupported format %q", v)
		}
	}
	res, err := br.ReadString('\n')
	if err != nil {
		return 0, 0, fmt.Errorf("hdr resolution: %w", err)
	}
	var w, h int
	if _, err := fmt.Sscanf(strings.TrimSpace(res), "-Y %d +X %d", &h, &w); err != nil {
		return 0, 0, fmt.Errorf("hdr: unsupported resolution line %q", strings.TrimSpace(res))
	}
	if w <= 0 || h <= 0 || w > 1<<16 || h > 1<<16 {
		return 0, 0, fmt.Errorf("hdr: invalid dimensions %dx%d", w, h)
	}
	if err := checkPixelBudget(w, h); err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

func decodeHDRConfig(r io.Reader) (image.Config, error) {
	w, h, err := readHDRHeader(bufio.NewReader(r))
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{ColorModel: color.NRGBAModel, Width: w, Height: h}, nil
}

func decodeHDR(r io.Reader) (image.Image, error) {
	br := bufio.NewReader(r)
	w, h, err := readHDRHeader(br)
	if err != nil {
		return nil, err
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	scan := make([]byte, w*4)
	for y := 0; y < h; y++ {
		if err := readHDRScanline(br, scan, w); err != nil {
			return nil, fmt.Errorf("hdr scanline %d: %w", y, err)
		}
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			e := scan[x*4+3]
			row[x*4+3] = 255
			if e == 0 {
				continue
			}
			f := math.Ldexp(1, int(e)-(128+8))
			for c := 0; c < 3; c++ {
				row[x*4+c] = linearToByte(float64(scan[x*4+c]) * f)
			}
		}
	}
	return img, nil
}

// readHDRScanline 读取一行 RGBE 像素到 dst（交错 RGBE）
func readHDRScanline(br *bufio.Reader, dst []byte, w int) error {
	var head [4]byte
	if _, err := io.ReadFull(br, head[:]); err != nil {
		return err
	}
	if w < 8 || w > 0x7fff || head[0] != 2 || head[1] != 2 || head[2]&0x80 != 0 {
		// 未压缩
		copy(dst, head[:])
		_, err := io.ReadFull(br, dst[4:])
		return err
	}
	if int(head[2])<<8|int(head[3]) != w {
		return errors.New("scanline width mismatch")
	}

	// 新式 RLE：四个通道分别编码
	for c := 0; c < 4; c++ {
		for x := 0; x < w; {
			count, err := br.ReadByte()
			if err != nil {
				return err
			}
			if count > 128 {
				n := int(count) - 128
				if x+n > w {
					return errors.New("run overflows scanline")
				}
				v, err := br.ReadByte()
				if err != nil {
					return err
				}
				for i := 0; i < n; i++ {
					dst[(x+i)*4+c] = v
				}
				x += n
				continue
			}
			n := int(count)
			if n == 0 || x+n > w {
				return errors.New("bad literal run")
			}
			for i := 0; i < n; i++ {
				v, err := br.ReadByte()
				if err != nil {
					return err
				}
				dst[(x+i)*4+c] = v
			}
			x += n
		}
	}
	return nil
}

func linearToByte(v float64) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
