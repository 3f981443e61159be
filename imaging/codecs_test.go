package imaging

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupported(t *testing.T) {
	for _, name := range []string{"a.png", "b.JPG", "c.jpeg", "d.webp", "e.svg", "f.Tiff", "g.qoi", "h.ff", "i.hdr", "j.pgm", "k.tga", "l.ico"} {
		assert.True(t, IsSupported(name), name)
	}
	for _, name := range []string{"a.txt", "b", "c.heic", "d.png.bak", "e.psd"} {
		assert.False(t, IsSupported(name), name)
	}
}

func TestDecodeFarbfeld(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	buf.WriteString(farbfeldMagic)
	_ = binary.Write(&buf, binary.BigEndian, uint32(2))
	_ = binary.Write(&buf, binary.BigEndian, uint32(1))
	for _, px := range [][4]uint16{{0xffff, 0, 0, 0xffff}, {0, 0, 0xffff, 0x8080}} {
		_ = binary.Write(&buf, binary.BigEndian, px)
	}

	img, err := NewNormalizer().NormalizeBytes(context.Background(), "", buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, 2, img.Rect.Dx())
	require.Equal(t, 1, img.Rect.Dy())

	assert.Equal(t, []uint8{255, 0, 0, 255}, img.Pix[0:4])
	assert.Equal(t, uint8(255), img.Pix[6])
	assert.Equal(t, uint8(0x80), img.Pix[7])
}

func TestDecodeFarbfeld_Truncated(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	buf.WriteString(farbfeldMagic)
	_ = binary.Write(&buf, binary.BigEndian, uint32(4))
	_ = binary.Write(&buf, binary.BigEndian, uint32(4))

	_, err := decodeFarbfeld(bytes.NewReader(buf.Bytes()))
	assert.Error(t, err)
}

func TestDecodeHDR_Flat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	buf.WriteString("#?RADIANCE\nFORMAT=32-bit_rle_rgbe\nEXPOSURE=1.0\n\n-Y 2 +X 2\n")
	buf.Write([]byte{
		128, 0, 0, 129, // 1.0 红
		64, 0, 0, 128, // 0.25 红
		0, 0, 0, 0, // 黑
		255, 255, 255, 140, // 过曝，截到 255
	})

	img, err := NewNormalizer().NormalizeBytes(context.Background(), "", buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, 2, img.Rect.Dx())

	assert.Equal(t, []uint8{255, 0, 0, 255}, img.Pix[0:4])
	assert.Equal(t, []uint8{64, 0, 0, 255}, img.Pix[4:8])
	assert.Equal(t, []uint8{0, 0, 0, 255}, img.Pix[8:12])
	assert.Equal(t, []uint8{255, 255, 255, 255}, img.Pix[12:16])
}

func TestDecodeHDR_RLE(t *testing.T) {
	t.Parallel()

	const w = 8
	var buf bytes.Buffer
	buf.WriteString("#?RGBE\n\n-Y 1 +X 8\n")
	buf.Write([]byte{2, 2, 0, w})
	// R: 一段 run，G/B: literal，E: run
	buf.Write([]byte{128 + w, 128})
	buf.Write(append([]byte{w}, make([]byte, w)...))
	buf.Write([]byte{128 + 4, 0, 128 + 4, 0})
	buf.Write([]byte{128 + w, 129})

	img, err := decodeHDR(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	n := ToNRGBA(img)
	for x := 0; x < w; x++ {
		assert.Equal(t, []uint8{255, 0, 0, 255}, n.Pix[x*4:x*4+4])
	}
}

func TestDecodeHDR_BadResolution(t *testing.T) {
	t.Parallel()

	_, err := decodeHDR(bytes.NewReader([]byte("#?RADIANCE\n\n+Y 2 -X 2\n")))
	assert.Error(t, err)
}
