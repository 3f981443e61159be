package batch

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/chaos-io/nobg/apperr"
	"github.com/chaos-io/nobg/imaging"
)

// Saved 待保存的结果，Name 是原始文件名
type Saved struct {
	Name    string `json:"name"`
	DataURL string `json:"result"`
}

// SaveToFolder 把结果写成 folder/<stem>_nobg.png，folder 不存在时创建，重名的加序号后缀。
// 返回写入的文件路径，遇到第一个错误即停止。
func SaveToFolder(folder string, items []Saved) ([]string, error) {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.Io, err, "create folder "+folder)
	}

	var names imaging.OutputNames
	paths := make([]string, 0, len(items))
	for _, item := range items {
		img, err := imaging.DecodeDataURL(item.DataURL)
		if err != nil {
			return paths, err
		}
		dest := filepath.Join(folder, names.Next(item.Name))
		if err := imaging.SavePNG(img, dest); err != nil {
			return paths, err
		}
		paths = append(paths, dest)
	}
	return paths, nil
}

// Retained 保存最近一次捕获的原始字节，换背景重新处理时无需重新上传
type Retained struct {
	mu   sync.Mutex
	name string
	data []byte
}

func (r *Retained) Store(name string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = name
	r.data = data
}

// Load 返回保存的名字和字节，没有保存过时 ok 为 false
func (r *Retained) Load() (name string, data []byte, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.data == nil {
		return "", nil, false
	}
	return r.name, r.data, true
}
