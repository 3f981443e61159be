package imaging

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	ico "github.com/biessek/golang-ico"
	"github.com/chaos-io/nobg/apperr"
	"github.com/ftrvxmtrx/tga"
	"github.com/spakin/netpbm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xfmoulet/qoi"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

var red = color.NRGBA{R: 255, A: 255}

func solidRed(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		copy(img.Pix[i:], []uint8{red.R, red.G, red.B, red.A})
	}
	return img
}

func encodeWith(t *testing.T, enc func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, enc(&buf, solidRed(4, 3)))
	return buf.Bytes()
}

func hdrRed(w, h int) []byte {
	var buf bytes.Buffer
	buf.WriteString("#?RADIANCE\nFORMAT=32-bit_rle_rgbe\n\n")
	fmt.Fprintf(&buf, "-Y %d +X %d\n", h, w)
	for i := 0; i < w*h; i++ {
		buf.Write([]byte{128, 0, 0, 129})
	}
	return buf.Bytes()
}

func farbfeldRed(w, h int) []byte {
	var buf bytes.Buffer
	buf.WriteString(farbfeldMagic)
	_ = binary.Write(&buf, binary.BigEndian, uint32(w))
	_ = binary.Write(&buf, binary.BigEndian, uint32(h))
	for i := 0; i < w*h; i++ {
		_ = binary.Write(&buf, binary.BigEndian, [4]uint16{0xffff, 0, 0, 0xffff})
	}
	return buf.Bytes()
}

func TestNormalize_EveryFormat(t *testing.T) {
	t.Parallel()

	webpData, err := os.ReadFile(filepath.Join("testdata", "sample.webp"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		ext   string
		data  func(t *testing.T) []byte
		w, h  int
		delta float64
		// 为 false 时只检查尺寸
		checkPixel bool
	}{
		{name: "png", ext: "png", w: 4, h: 3, checkPixel: true, data: func(t *testing.T) []byte {
			return encodeWith(t, func(b *bytes.Buffer, m image.Image) error { return png.Encode(b, m) })
		}},
		{name: "jpeg", ext: "jpg", w: 4, h: 3, delta: 12, checkPixel: true, data: func(t *testing.T) []byte {
			return encodeWith(t, func(b *bytes.Buffer, m image.Image) error {
				return jpeg.Encode(b, m, &jpeg.Options{Quality: 100})
			})
		}},
		{name: "gif", ext: "gif", w: 4, h: 3, checkPixel: true, data: func(t *testing.T) []byte {
			pal := image.NewPaletted(image.Rect(0, 0, 4, 3), color.Palette{red, color.Black})
			var buf bytes.Buffer
			require.NoError(t, gif.Encode(&buf, pal, nil))
			return buf.Bytes()
		}},
		{name: "bmp", ext: "bmp", w: 4, h: 3, checkPixel: true, data: func(t *testing.T) []byte {
			return encodeWith(t, func(b *bytes.Buffer, m image.Image) error { return bmp.Encode(b, m) })
		}},
		{name: "tiff", ext: "tiff", w: 4, h: 3, checkPixel: true, data: func(t *testing.T) []byte {
			return encodeWith(t, func(b *bytes.Buffer, m image.Image) error { return tiff.Encode(b, m, nil) })
		}},
		{name: "ico", ext: "ico", w: 4, h: 3, checkPixel: true, data: func(t *testing.T) []byte {
			return encodeWith(t, func(b *bytes.Buffer, m image.Image) error { return ico.Encode(b, m) })
		}},
		{name: "qoi", ext: "qoi", w: 4, h: 3, checkPixel: true, data: func(t *testing.T) []byte {
			return encodeWith(t, func(b *bytes.Buffer, m image.Image) error { return qoi.Encode(b, m) })
		}},
		{name: "ppm", ext: "ppm", w: 4, h: 3, checkPixel: true, data: func(t *testing.T) []byte {
			return encodeWith(t, func(b *bytes.Buffer, m image.Image) error {
				return netpbm.Encode(b, m, &netpbm.EncodeOptions{Format: netpbm.PPM, MaxValue: 255})
			})
		}},
		{name: "tga", ext: "tga", w: 4, h: 3, checkPixel: true, data: func(t *testing.T) []byte {
			return encodeWith(t, func(b *bytes.Buffer, m image.Image) error { return tga.Encode(b, m) })
		}},
		{name: "hdr", ext: "hdr", w: 4, h: 3, checkPixel: true, data: func(*testing.T) []byte { return hdrRed(4, 3) }},
		{name: "farbfeld", ext: "ff", w: 4, h: 3, checkPixel: true, data: func(*testing.T) []byte { return farbfeldRed(4, 3) }},
		{name: "svg", ext: "svg", w: 2048, h: 1536, checkPixel: true, data: func(*testing.T) []byte {
			return svgDoc("0 0 4 3", `<rect width="4" height="3" fill="#ff0000"/>`)
		}},
		{name: "webp", ext: "webp", w: 150, h: 100, data: func(*testing.T) []byte { return webpData }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := tt.data(t)
			path := filepath.Join(t.TempDir(), "in."+tt.ext)
			require.NoError(t, os.WriteFile(path, data, 0o644))

			sources := map[string]Source{
				"path":  FromPath(path),
				"bytes": FromBytes("clipboard", data),
			}
			for kind, src := range sources {
				got, err := NewNormalizer().Normalize(context.Background(), src)
				require.NoError(t, err, kind)
				assert.Equal(t, tt.w, got.Rect.Dx(), kind)
				assert.Equal(t, tt.h, got.Rect.Dy(), kind)
				if !tt.checkPixel {
					continue
				}
				c := got.NRGBAAt(1, 1)
				assert.InDelta(t, 255, float64(c.R), tt.delta, kind)
				assert.InDelta(t, 0, float64(c.G), tt.delta, kind)
				assert.InDelta(t, 0, float64(c.B), tt.delta, kind)
				assert.Equal(t, uint8(255), c.A, kind)
			}
		})
	}
}

func TestNormalize_MislabeledExtension(t *testing.T) {
	t.Parallel()

	data := encodeWith(t, func(b *bytes.Buffer, m image.Image) error { return png.Encode(b, m) })
	path := filepath.Join(t.TempDir(), "actually-png.jpg")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := NewNormalizer().Normalize(context.Background(), FromPath(path))
	require.NoError(t, err)
	assert.Equal(t, red, got.NRGBAAt(0, 0))
}

// pngHeaderOnly 只有签名和 IHDR 的 PNG，声明任意尺寸
func pngHeaderOnly(w, h uint32) []byte {
	var ihdr bytes.Buffer
	ihdr.WriteString("IHDR")
	_ = binary.Write(&ihdr, binary.BigEndian, w)
	_ = binary.Write(&ihdr, binary.BigEndian, h)
	ihdr.Write([]byte{8, 6, 0, 0, 0})

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(ihdr.Bytes())
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(ihdr.Bytes()))
	return buf.Bytes()
}

func TestNormalize_RejectsOversizedHeaders(t *testing.T) {
	t.Parallel()

	icoBomb := []byte{0, 0, 1, 0, 1, 0, 0, 0, 0, 0, 1, 0, 32, 0, 0xf0, 0xff, 0xff, 0xff, 22, 0, 0, 0}

	tests := []struct {
		name string
		data []byte
	}{
		{name: "hdr", data: []byte("#?RADIANCE\n\n-Y 65536 +X 65536\n")},
		{name: "farbfeld", data: farbfeldHeader(1<<20, 1<<20)},
		{name: "png", data: pngHeaderOnly(100000, 100000)},
		{name: "ico", data: icoBomb},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewNormalizer().NormalizeBytes(context.Background(), "upload", tt.data)
			require.Error(t, err)
			assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err), err.Error())
		})
	}
}

func TestDecodeHDR_RejectsHugeHeader(t *testing.T) {
	t.Parallel()

	_, err := decodeHDR(bytes.NewReader([]byte("#?RADIANCE\n\n-Y 65536 +X 65536\n")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func farbfeldHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString(farbfeldMagic)
	_ = binary.Write(&buf, binary.BigEndian, w)
	_ = binary.Write(&buf, binary.BigEndian, h)
	return buf.Bytes()
}

func TestPickCodec(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		ext  string
		want string
	}{
		{name: "magic wins over extension", data: []byte("\x89PNG\r\n\x1a\nrest"), ext: "gif", want: "png"},
		{name: "webp riff", data: []byte("RIFF\x10\x00\x00\x00WEBPVP8 "), want: "webp"},
		{name: "extension when no magic", data: []byte{1, 2, 3, 4}, ext: "jpeg", want: "jpeg"},
		{name: "tga by extension", data: []byte("P6 looks like ppm"), ext: "tga", want: "tga"},
		{name: "tga as last resort", data: []byte{0, 0, 2, 0}, want: "tga"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pickCodec(tt.data, tt.ext).name, tt.name)
	}
}
