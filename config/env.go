package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// 环境变量 -> 配置项
var envBindings = []struct {
	name string
	dst  func(*Config) *string
}{
	{"NOBG_MODEL_PATH", func(c *Config) *string { return &c.Model.Path }},
	{"NOBG_ENGINE", func(c *Config) *string { return &c.Model.Engine }},
	{"NOBG_ORT_LIB", func(c *Config) *string { return &c.Model.ORTLib }},
	{"NOBG_REMOTE_URL", func(c *Config) *string { return &c.Model.RemoteURL }},
	{"NOBG_REMOTE_MODEL", func(c *Config) *string { return &c.Model.RemoteModel }},
	{"NOBG_ADDR", func(c *Config) *string { return &c.Server.Addr }},
	{"NOBG_MODE", func(c *Config) *string { return &c.Server.Mode }},
	{"NOBG_SAVE_ROOT", func(c *Config) *string { return &c.Server.SaveRoot }},
	{"NOBG_LOG_LEVEL", func(c *Config) *string { return &c.Log.Level }},
	{"NOBG_LOG_FORMAT", func(c *Config) *string { return &c.Log.Format }},
}

var envBoolBindings = []struct {
	name string
	dst  func(*Config) *bool
}{
	{"NOBG_ALLOW_URL_SOURCES", func(c *Config) *bool { return &c.Server.AllowURLSources }},
}

func (c *Config) applyEnv() {
	for _, b := range envBindings {
		if v, ok := os.LookupEnv(b.name); ok && strings.TrimSpace(v) != "" {
			*b.dst(c) = strings.TrimSpace(v)
		}
	}
	for _, b := range envBoolBindings {
		v, ok := os.LookupEnv(b.name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			slog.Warn("ignoring invalid boolean environment variable", "name", b.name, "value", v)
			continue
		}
		*b.dst(c) = parsed
	}
}
