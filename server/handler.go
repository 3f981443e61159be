package server

import (
	"encoding/base64"
	"errors"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"

	"github.com/chaos-io/nobg/apperr"
	"github.com/chaos-io/nobg/batch"
	"github.com/chaos-io/nobg/compose"
	"github.com/chaos-io/nobg/config"
	"github.com/chaos-io/nobg/imaging"
	"github.com/chaos-io/nobg/rembg"
	"github.com/chaos-io/nobg/util"
)

// Health 健康检查
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"model_loaded": s.session.Ready(),
	})
}

// Model 模型状态
func (s *Server) Model(c *gin.Context) {
	m := s.cfg.Model
	resp := gin.H{
		"engine":     m.Engine,
		"loaded":     s.session.Ready(),
		"inferences": s.session.Inferences(),
	}

	if m.Engine == config.EngineRemote {
		resp["url"] = m.RemoteURL
		resp["model"] = m.RemoteModel
		c.JSON(http.StatusOK, resp)
		return
	}

	info, err := rembg.CheckModel(m.Path)
	resp["path"] = info.Path
	resp["size"] = info.Size
	if err != nil {
		resp["error"] = err.Error()
		c.JSON(StatusFor(err), resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type removeRequest struct {
	Source     string             `json:"source" binding:"required"`
	Background compose.Background `json:"background"`
}

// Remove 处理单张图片：multipart 字段 file + background，或 JSON {source, background}
func (s *Server) Remove(c *gin.Context) {
	var (
		src imaging.Source
		bg  compose.Background
		err error
	)

	if c.ContentType() == gin.MIMEJSON {
		var req removeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, apperr.Wrap(apperr.InvalidInput, err, "bad request body"))
			return
		}
		src, err = sourceFromString(req.Source, s.cfg.Server.AllowURLSources)
		bg = req.Background
	} else {
		src, err = formSource(c, "file")
		if err == nil {
			bg, err = formBackground(c)
		}
	}
	if err != nil {
		abortWithError(c, err)
		return
	}

	s.respondProcessed(c, src, bg)
}

// Batch multipart 字段 files，按顺序以 SSE 推送 progress 事件，最后推送 done
func (s *Server) Batch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		abortWithError(c, apperr.Wrap(apperr.InvalidInput, err, "expected multipart form"))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		abortWithError(c, apperr.New(apperr.InvalidInput, "no files uploaded"))
		return
	}
	bg, err := formBackground(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	sources := make([]imaging.Source, 0, len(files))
	for _, fh := range files {
		src, err := readUpload(fh)
		if err != nil {
			abortWithError(c, err)
			return
		}
		sources = append(sources, src)
	}

	seq, err := s.processor.Batch(c.Request.Context(), sources, bg)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	failed := 0
	for progress := range seq {
		if progress.State() == batch.Failed {
			failed++
		}
		c.SSEvent("progress", progress)
		c.Writer.Flush()
	}
	c.SSEvent("done", gin.H{"total": len(sources), "failed": failed})
	c.Writer.Flush()
}

// Capture 保存上传的原图，之后可以用 Reprocess 换背景重新处理
func (s *Server) Capture(c *gin.Context) {
	src, err := formSource(c, "file")
	if err != nil {
		abortWithError(c, err)
		return
	}
	bg, err := formBackground(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if src.Name == "" || src.Name == "blob" {
		src.Name = "capture-" + ksuid.New().String() + ".png"
	}
	s.retained.Store(src.Name, src.Data)

	s.respondProcessed(c, src, bg)
}

type reprocessRequest struct {
	Background compose.Background `json:"background"`
}

// Reprocess 用新的背景重新处理最近一次 Capture 的图片
func (s *Server) Reprocess(c *gin.Context) {
	var bg compose.Background
	if c.ContentType() == gin.MIMEJSON {
		var req reprocessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, apperr.Wrap(apperr.InvalidInput, err, "bad request body"))
			return
		}
		bg = req.Background
	} else {
		var err error
		if bg, err = formBackground(c); err != nil {
			abortWithError(c, err)
			return
		}
	}

	name, data, ok := s.retained.Load()
	if !ok {
		abortWithError(c, apperr.New(apperr.InvalidInput, "no captured image to reprocess"))
		return
	}
	s.respondProcessed(c, imaging.FromBytes(name, data), bg)
}

type saveRequest struct {
	Folder string        `json:"folder" binding:"required"`
	Items  []batch.Saved `json:"items" binding:"required"`
}

// Save 把结果写到 server.save_root 下的 folder 目录
func (s *Server) Save(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.Wrap(apperr.InvalidInput, err, "bad request body"))
		return
	}

	folder, err := confineFolder(s.cfg.Server.SaveRoot, req.Folder)
	if err != nil {
		abortWithError(c, err)
		return
	}
	paths, err := batch.SaveToFolder(folder, req.Items)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": paths})
}

func (s *Server) respondProcessed(c *gin.Context, src imaging.Source, bg compose.Background) {
	res, err := s.processor.ProcessOne(c.Request.Context(), src, bg)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resultResponse{Result: res.DataURL, Name: imaging.OutputName(src.DisplayName())})
}

func formSource(c *gin.Context, field string) (imaging.Source, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return imaging.Source{}, apperr.Wrap(apperr.InvalidInput, err, "missing form file \""+field+"\"")
	}
	return readUpload(fh)
}

func readUpload(fh *multipart.FileHeader) (imaging.Source, error) {
	f, err := fh.Open()
	if err != nil {
		return imaging.Source{}, apperr.Wrap(apperr.InvalidInput, err, "open upload "+fh.Filename)
	}
	defer func() {
		_ = f.Close()
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return imaging.Source{}, apperr.Wrap(apperr.InvalidInput, err, "read upload "+fh.Filename)
	}
	return imaging.FromBytes(fh.Filename, data), nil
}

func formBackground(c *gin.Context) (compose.Background, error) {
	bg, err := compose.ParseBackground(c.PostForm("background"))
	if err != nil {
		return bg, apperr.Wrap(apperr.InvalidInput, err, "background")
	}
	return bg, nil
}

// confineFolder 把 folder 解析到 root 之下（相对路径以 root 为基准），跳出 root 的一律拒绝。
// 已存在的部分按真实路径比较，符号链接不能用来绕出去。
func confineFolder(root, folder string) (string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", apperr.Wrap(apperr.Io, err, "resolve save root")
	}
	target := filepath.Clean(folder)
	if !filepath.IsAbs(target) {
		target = filepath.Join(rootAbs, target)
	}
	if !within(rootAbs, target) {
		return "", apperr.Newf(apperr.InvalidInput, "folder %q is outside the save root", folder)
	}

	realRoot, err := filepath.EvalSymlinks(rootAbs)
	if errors.Is(err, fs.ErrNotExist) {
		// root 还不存在，下面的目录也不可能是链接
		return target, nil
	}
	if err != nil {
		return "", apperr.Wrap(apperr.Io, err, "resolve save root")
	}
	if !within(realRoot, existingPrefix(target)) {
		return "", apperr.Newf(apperr.InvalidInput, "folder %q is outside the save root", folder)
	}
	return target, nil
}

// existingPrefix 返回 path 最深的已存在祖先的真实路径，再拼上不存在的部分
func existingPrefix(path string) string {
	rest := ""
	for p := path; ; p = filepath.Dir(p) {
		if _, err := os.Lstat(p); err == nil {
			if resolved, err := filepath.EvalSymlinks(p); err == nil {
				return filepath.Join(resolved, rest)
			}
			return path
		}
		parent := filepath.Dir(p)
		if parent == p {
			return path
		}
		rest = filepath.Join(filepath.Base(p), rest)
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// sourceFromString data URL，或在 allowURL 时的 http(s) 地址；不接受服务端本地路径
func sourceFromString(s string, allowURL bool) (imaging.Source, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "data:"):
		header, payload, ok := strings.Cut(s, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return imaging.Source{}, apperr.New(apperr.InvalidInput, "data URL must be base64 encoded")
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return imaging.Source{}, apperr.Wrap(apperr.InvalidInput, err, "decode data URL")
		}
		return imaging.FromBytes("upload", data), nil
	case util.IsURL(s):
		if !allowURL {
			return imaging.Source{}, apperr.New(apperr.InvalidInput, "URL sources are disabled (server.allow_url_sources)")
		}
		return imaging.FromURL(s), nil
	default:
		return imaging.Source{}, apperr.New(apperr.InvalidInput, "source must be a data URL or, when enabled, an http(s) URL")
	}
}
