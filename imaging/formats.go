package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"slices"
	"strings"

	ico "github.com/biessek/golang-ico"
	"github.com/chaos-io/nobg/apperr"
	"github.com/ftrvxmtrx/tga"
	"github.com/spakin/netpbm"
	"github.com/xfmoulet/qoi"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// SupportedExtensions 支持的输入格式（小写，不含点）
var SupportedExtensions = []string{
	"png", "jpg", "jpeg", "webp", "svg",
	"bmp", "gif", "tif", "tiff", "ico",
	"tga", "pnm", "pbm", "pgm", "ppm",
	"hdr", "ff", "qoi",
}

// MaxDecodePixels 解码前按头部声明的尺寸拦截，超过即拒绝
const MaxDecodePixels = 1 << 27

// codec 一种位图格式。magic 中的 '?' 匹配任意字节，为空表示无法嗅探
type codec struct {
	name   string
	exts   []string
	magic  []string
	decode func(io.Reader) (image.Image, error)
	config func(io.Reader) (image.Config, error)
	// guard 在调用第三方解码器之前检查原始数据
	guard func([]byte) error
}

// 不走 image.Decode：tga 以空魔数注册，会吞掉所有输入
var codecs = []codec{
	{name: "png", exts: []string{"png"}, magic: []string{"\x89PNG\r\n\x1a\n"}, decode: png.Decode, config: png.DecodeConfig},
	{name: "jpeg", exts: []string{"jpg", "jpeg"}, magic: []string{"\xff\xd8"}, decode: jpeg.Decode, config: jpeg.DecodeConfig},
	{name: "gif", exts: []string{"gif"}, magic: []string{"GIF87a", "GIF89a"}, decode: gif.Decode, config: gif.DecodeConfig},
	{name: "webp", exts: []string{"webp"}, magic: []string{"RIFF????WEBP"}, decode: webp.Decode, config: webp.DecodeConfig},
	{name: "bmp", exts: []string{"bmp"}, magic: []string{"BM"}, decode: bmp.Decode, config: bmp.DecodeConfig},
	{name: "tiff", exts: []string{"tif", "tiff"}, magic: []string{"II*\x00", "MM\x00*"}, decode: tiff.Decode, config: tiff.DecodeConfig},
	{name: "ico", exts: []string{"ico"}, magic: []string{"\x00\x00\x01\x00"}, decode: ico.Decode, config: ico.DecodeConfig, guard: checkICOEntries},
	{name: "qoi", exts: []string{"qoi"}, magic: []string{"qoif"}, decode: qoi.Decode, config: qoi.DecodeConfig},
	{
		name:   "netpbm",
		exts:   []string{"pnm", "pbm", "pgm", "ppm"},
		magic:  []string{"P1", "P2", "P3", "P4", "P5", "P6", "P7"},
		decode: decodeNetpbm,
		config: netpbm.DecodeConfig,
	},
	{name: "hdr", exts: []string{"hdr"}, magic: []string{"#?RADIANCE", "#?RGBE"}, decode: decodeHDR, config: decodeHDRConfig},
	{name: "farbfeld", exts: []string{"ff"}, magic: []string{farbfeldMagic}, decode: decodeFarbfeld, config: decodeFarbfeldConfig},
	{name: "tga", exts: []string{"tga"}, decode: tga.Decode, config: tga.DecodeConfig},
}

func decodeNetpbm(r io.Reader) (image.Image, error) {
	return netpbm.Decode(r, nil)
}

// checkICOEntries ico 解码器按目录项声明的大小分配缓冲区，声明超过文件本身的直接拒绝
func checkICOEntries(data []byte) error {
	if len(data) < 6 {
		return errors.New("ico: short header")
	}
	n := int(binary.LittleEndian.Uint16(data[4:6]))
	if n == 0 || len(data) < 6+n*16 {
		return errors.New("ico: bad directory")
	}
	for i := 0; i < n; i++ {
		entry := data[6+i*16 : 6+(i+1)*16]
		if int64(binary.LittleEndian.Uint32(entry[8:12])) > int64(len(data)) {
			return errors.New("ico: entry larger than file")
		}
	}
	return nil
}

// Ext 返回小写扩展名（不含点）
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// IsSupported 按扩展名判断是否支持（大小写不敏感）
func IsSupported(name string) bool {
	return slices.Contains(SupportedExtensions, Ext(name))
}

// looksLikeSVG 检查数据开头是否包含 <svg 标签
func looksLikeSVG(data []byte) bool {
	head := data
	if len(head) > 4096 {
		head = head[:4096]
	}
	head = bytes.TrimSpace(head)
	if !bytes.HasPrefix(head, []byte("<")) {
		return false
	}
	return bytes.Contains(head, []byte("<svg"))
}

func matchMagic(data []byte, magic string) bool {
	if len(data) < len(magic) {
		return false
	}
	for i := 0; i < len(magic); i++ {
		if magic[i] != '?' && magic[i] != data[i] {
			return false
		}
	}
	return true
}

// pickCodec 先按内容嗅探，再按扩展名；都不中时只剩没有魔数的 TGA
func pickCodec(data []byte, ext string) codec {
	tgaCodec := codecs[len(codecs)-1]
	if ext == "tga" {
		return tgaCodec
	}
	for _, c := range codecs {
		for _, m := range c.magic {
			if matchMagic(data, m) {
				return c
			}
		}
	}
	for _, c := range codecs {
		if slices.Contains(c.exts, ext) {
			return c
		}
	}
	return tgaCodec
}

// decodeRaster 解码位图，像素分配之前先用头部尺寸做预算检查
func decodeRaster(data []byte, ext string) (image.Image, error) {
	c := pickCodec(data, ext)
	if c.guard != nil {
		if err := c.guard(data); err != nil {
			return nil, err
		}
	}

	cfg, err := c.config(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	if err := checkPixelBudget(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, err := c.decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	return img, nil
}

func checkPixelBudget(w, h int) error {
	if w <= 0 || h <= 0 {
		return apperr.Newf(apperr.InvalidInput, "image has zero area (%dx%d)", w, h)
	}
	if int64(w)*int64(h) > MaxDecodePixels {
		return apperr.Newf(apperr.InvalidInput, "image is too large to decode (%dx%d)", w, h)
	}
	return nil
}
