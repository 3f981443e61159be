package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/chaos-io/nobg/compose"
)

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	return c.validateLog()
}

func (c *Config) validateModel() error {
	switch c.Model.Engine {
	case EngineONNX:
		if c.Model.Path == "" {
			return errors.New("model.path must be set")
		}
	case EngineRemote:
		if c.Model.RemoteURL == "" {
			return errors.New("model.remote_url is required when model.engine = \"remote\"")
		}
		if c.Model.RemoteModel == "" {
			return errors.New("model.remote_model must be set")
		}
	default:
		return fmt.Errorf("model.engine must be %q or %q, got %q", EngineONNX, EngineRemote, c.Model.Engine)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must be set")
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("server.max_upload_mb must be positive")
	}
	if c.Server.SaveRoot == "" {
		return errors.New("server.save_root must be set")
	}
	return nil
}

func (c *Config) validateWatch() error {
	if c.Watch.Schedule == "" {
		return errors.New("watch.schedule must be set")
	}
	if _, err := cron.ParseStandard(c.Watch.Schedule); err != nil {
		return fmt.Errorf("watch.schedule %q: %w", c.Watch.Schedule, err)
	}
	if _, err := compose.ParseBackground(c.Watch.Background); err != nil {
		return fmt.Errorf("watch.background: %w", err)
	}
	return nil
}

func (c *Config) validateLog() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("log.format must be auto, text or json, got %q", c.Log.Format)
	}
	return nil
}
