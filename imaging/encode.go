package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	"github.com/chaos-io/nobg/apperr"
	"github.com/chaos-io/nobg/util"
)

// DataURLPrefix 前端/进程间传输使用的 data URL 前缀
const DataURLPrefix = "data:image/png;base64,"

// EncodePNG 把图片编码为 PNG 字节
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, apperr.Wrap(apperr.Encoding, err, "png encode")
	}
	return buf.Bytes(), nil
}

// EncodeDataURL PNG + base64，包装成 data URL
func EncodeDataURL(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return PNGToDataURL(data), nil
}

func PNGToDataURL(data []byte) string {
	return DataURLPrefix + base64.StdEncoding.EncodeToString(data)
}

// DataURLToPNG 取出 data URL 中的 PNG 字节，前缀可有可无
func DataURLToPNG(dataURL string) ([]byte, error) {
	b64 := strings.TrimPrefix(strings.TrimSpace(dataURL), DataURLPrefix)
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, apperr.Wrap(apperr.Encoding, err, "base64 decode")
	}
	return data, nil
}

// DecodeDataURL data URL -> NRGBA
func DecodeDataURL(dataURL string) (*image.NRGBA, error) {
	data, err := DataURLToPNG(dataURL)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.Encoding, err, "png decode")
	}
	return ToNRGBA(img), nil
}

// SavePNG 把图片写成 PNG 文件
func SavePNG(img image.Image, dest string) error {
	data, err := EncodePNG(img)
	if err != nil {
		return err
	}
	return WritePNG(data, dest)
}

// WritePNG 写入已编码的 PNG
func WritePNG(data []byte, dest string) error {
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return apperr.Wrap(apperr.Io, err, "save png to "+dest)
	}
	return nil
}

// OutputName 批量保存时的文件名：<原文件名>_nobg.png
func OutputName(name string) string {
	return util.FileStem(name) + "_nobg.png"
}

// OutputNames 同一批内分配不重复的输出文件名，重名时依次加 -1、-2 后缀（不区分大小写）
type OutputNames struct {
	used map[string]struct{}
}

func (o *OutputNames) Next(name string) string {
	if o.used == nil {
		o.used = make(map[string]struct{})
	}
	stem := strings.TrimSuffix(OutputName(name), ".png")
	out := stem + ".png"
	for i := 1; ; i++ {
		if _, taken := o.used[strings.ToLower(out)]; !taken {
			break
		}
		out = fmt.Sprintf("%s-%d.png", stem, i)
	}
	o.used[strings.ToLower(out)] = struct{}{}
	return out
}
