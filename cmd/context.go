package cmd

import (
	"log/slog"

	"github.com/chaos-io/nobg/batch"
	"github.com/chaos-io/nobg/config"
	"github.com/chaos-io/nobg/imaging"
	"github.com/chaos-io/nobg/logging"
	"github.com/chaos-io/nobg/rembg"
)

const skipConfigLoad = "skipConfigLoad"

// appContext 命令共享的配置和进程唯一的推理会话
type appContext struct {
	configPath string
	modelPath  string
	logLevel   string

	cfg          *config.Config
	resolvedPath string
	session      *rembg.Session
	processor    *batch.Processor
}

func (a *appContext) load() error {
	cfg, resolved, exists, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.modelPath != "" {
		cfg.Model.Path = a.modelPath
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	if exists {
		a.resolvedPath = resolved
	}
	slog.Debug("config loaded", "path", resolved, "exists", exists, "engine", cfg.Model.Engine)
	return nil
}

// modelName onnx 引擎为模型文件路径，remote 引擎为服务上的模型名
func (a *appContext) modelName() string {
	if a.cfg.Model.Engine == config.EngineRemote {
		return a.cfg.Model.RemoteModel
	}
	return a.cfg.Model.Path
}

// Session 第一次调用时创建，之后返回同一个
func (a *appContext) Session() *rembg.Session {
	if a.session != nil {
		return a.session
	}

	m := a.cfg.Model
	switch m.Engine {
	case config.EngineRemote:
		a.session = rembg.NewSession(rembg.RemoteLoader(m.RemoteURL, nil), rembg.WithoutModelFile())
	default:
		a.session = rembg.NewSession(rembg.ONNXLoader(m.ORTLib))
	}
	return a.session
}

// Processor opts 只在第一次创建时生效
func (a *appContext) Processor(opts ...batch.Option) *batch.Processor {
	if a.processor == nil {
		a.processor = batch.ForSession(imaging.NewNormalizer(), a.Session(), a.modelName(), opts...)
	}
	return a.processor
}

// Close 命令结束时释放引擎
func (a *appContext) Close() {
	if a.session == nil {
		return
	}
	if err := a.session.Close(); err != nil {
		slog.Warn("failed to close session", "error", err)
	}
}
