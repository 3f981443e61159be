package imaging

import (
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chaos-io/nobg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataURL_RoundTrip(t *testing.T) {
	t.Parallel()

	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 0})
	src.SetNRGBA(1, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 128})
	src.SetNRGBA(2, 1, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	url, err := EncodeDataURL(src)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, DataURLPrefix))

	got, err := DecodeDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, src.Rect, got.Rect)
	assert.Equal(t, src.Pix, got.Pix)

	// 没有前缀也能解码
	got, err = DecodeDataURL(strings.TrimPrefix(url, DataURLPrefix))
	require.NoError(t, err)
	assert.Equal(t, src.Pix, got.Pix)
}

func TestDecodeDataURL_Errors(t *testing.T) {
	t.Parallel()

	_, err := DecodeDataURL(DataURLPrefix + "!!!not base64")
	assert.Equal(t, apperr.Encoding, apperr.KindOf(err))

	_, err = DecodeDataURL(DataURLPrefix + "aGVsbG8=")
	assert.Equal(t, apperr.Encoding, apperr.KindOf(err))
}

func TestSavePNG(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.png")
	require.NoError(t, SavePNG(patternImage(4, 4), dest))

	got, err := NewNormalizer().Normalize(t.Context(), FromPath(dest))
	require.NoError(t, err)
	assert.Equal(t, patternImage(4, 4).Pix, got.Pix)

	err = SavePNG(patternImage(1, 1), filepath.Join(dir, "missing", "out.png"))
	assert.Equal(t, apperr.Io, apperr.KindOf(err))
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "cat_nobg.png", OutputName("cat.jpg"))
	assert.Equal(t, "cat_nobg.png", OutputName("/tmp/photos/cat.webp"))
	assert.Equal(t, "output_nobg.png", OutputName(""))
}

func TestOutputNames_Next(t *testing.T) {
	var names OutputNames
	got := []string{
		names.Next("a.png"),
		names.Next("a.jpg"),
		names.Next("x/cat.png"),
		names.Next("y/cat.png"),
		names.Next("A.webp"),
		names.Next("b.png"),
	}
	assert.Equal(t, []string{
		"a_nobg.png",
		"a_nobg-1.png",
		"cat_nobg.png",
		"cat_nobg-1.png",
		"A_nobg-2.png",
		"b_nobg.png",
	}, got)
}
