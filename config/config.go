// Package config 读取 nobg.toml 并用 NOBG_* 环境变量覆盖。
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample.toml
var sampleConfig string

const (
	EngineONNX   = "onnx"
	EngineRemote = "remote"
)

type Model struct {
	Path        string `toml:"path"`
	Engine      string `toml:"engine"`
	ORTLib      string `toml:"ort_lib"`
	RemoteURL   string `toml:"remote_url"`
	RemoteModel string `toml:"remote_model"`
}

type Server struct {
	Addr        string `toml:"addr"`
	Mode        string `toml:"mode"`
	MaxUploadMB int    `toml:"max_upload_mb"`
	// SaveRoot /api/v1/save 只能写到该目录之下
	SaveRoot string `toml:"save_root"`
	// AllowURLSources 为 true 时 /api/v1/remove 才会替客户端下载 http(s) 地址
	AllowURLSources bool `toml:"allow_url_sources"`
}

type Watch struct {
	Inbox      string `toml:"inbox"`
	Outbox     string `toml:"outbox"`
	Schedule   string `toml:"schedule"`
	Background string `toml:"background"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Config struct {
	Model  Model  `toml:"model"`
	Server Server `toml:"server"`
	Watch  Watch  `toml:"watch"`
	Log    Log    `toml:"log"`
}

func Default() Config {
	return Config{
		Model: Model{
			Path:        filepath.Join("resources", "model.onnx"),
			Engine:      EngineONNX,
			RemoteModel: "rmbg",
		},
		Server: Server{
			Addr:        "127.0.0.1:8080",
			Mode:        "release",
			MaxUploadMB: 64,
			SaveRoot:    "saved",
		},
		Watch: Watch{
			Inbox:      "inbox",
			Outbox:     "outbox",
			Schedule:   "@every 10s",
			Background: "transparent",
		},
		Log: Log{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load 读取配置文件（path 为空时依次尝试 ./nobg.toml 和 ~/.config/nobg/config.toml），
// 应用环境变量并校验。返回实际使用的路径，以及文件是否存在。
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolvePath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer func() {
			_ = file.Close()
		}()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// Parse 解析 TOML 文本，不读取环境变量
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Sample 带注释的示例配置，用于 config init
func Sample() string {
	return sampleConfig
}

// WriteSample 写入示例配置，文件已存在时报错
func WriteSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	if _, err := f.WriteString(sampleConfig); err != nil {
		_ = f.Close()
		return fmt.Errorf("write config: %w", err)
	}
	return f.Close()
}

// DefaultPath 用户级配置文件路径
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "nobg", "config.toml"), nil
}

func resolvePath(path string) (string, bool, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, fmt.Errorf("config file %s does not exist", path)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return path, true, nil
	}

	if info, err := os.Stat("nobg.toml"); err == nil && !info.IsDir() {
		return "nobg.toml", true, nil
	}

	userPath, err := DefaultPath()
	if err != nil {
		return "", false, nil
	}
	if info, err := os.Stat(userPath); err == nil && !info.IsDir() {
		return userPath, true, nil
	}
	return userPath, false, nil
}

func (c *Config) normalize() {
	c.Model.Engine = strings.ToLower(strings.TrimSpace(c.Model.Engine))
	c.Model.RemoteURL = strings.TrimRight(strings.TrimSpace(c.Model.RemoteURL), "/")
	c.Server.Mode = strings.ToLower(strings.TrimSpace(c.Server.Mode))
	c.Server.SaveRoot = strings.TrimSpace(c.Server.SaveRoot)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Watch.Schedule = strings.TrimSpace(c.Watch.Schedule)
}
