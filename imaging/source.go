package imaging

import (
	"path"
	"path/filepath"
	"strings"
)

// Source 待处理的输入：本地路径、http(s) 地址或内存中的字节（剪贴板、上传）
type Source struct {
	Name string
	Path string
	URL  string
	Data []byte
}

func FromPath(p string) Source {
	return Source{Name: filepath.Base(p), Path: p}
}

func FromURL(u string) Source {
	name := path.Base(strings.SplitN(u, "?", 2)[0])
	return Source{Name: name, URL: u}
}

// FromBytes name 仅用于展示和输出文件命名，格式由内容判断
func FromBytes(name string, data []byte) Source {
	return Source{Name: name, Data: data}
}

// DisplayName 用于进度通知的名字
func (s Source) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	switch {
	case s.Path != "":
		return filepath.Base(s.Path)
	case s.URL != "":
		return s.URL
	default:
		return "unknown"
	}
}

// location 用于错误信息
func (s Source) location() string {
	switch {
	case s.Path != "":
		return s.Path
	case s.URL != "":
		return s.URL
	default:
		return s.DisplayName()
	}
}
