package rembg

import (
	"errors"
	"io/fs"
	"os"

	"github.com/chaos-io/nobg/apperr"
)

// ModelInfo 本地模型文件的检查结果
type ModelInfo struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Size   int64  `json:"size"`
}

// CheckModel 检查模型文件是否存在且是普通文件
func CheckModel(path string) (ModelInfo, error) {
	info := ModelInfo{Path: path}
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return info, apperr.Newf(apperr.ModelNotInitialized, "model.onnx not found at %s", path)
		}
		return info, apperr.Wrap(apperr.Io, err, "stat model")
	}
	if st.IsDir() {
		return info, apperr.Newf(apperr.ModelNotInitialized, "%s is a directory, not a model file", path)
	}
	if st.Size() == 0 {
		return info, apperr.Newf(apperr.ModelNotInitialized, "model file %s is empty", path)
	}
	info.Exists = true
	info.Size = st.Size()
	return info, nil
}
