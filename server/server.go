// Package server 通过 gin 提供去背景 HTTP 接口。
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chaos-io/nobg/batch"
	"github.com/chaos-io/nobg/config"
	"github.com/chaos-io/nobg/rembg"
)

type Server struct {
	cfg       *config.Config
	processor *batch.Processor
	session   *rembg.Session
	retained  batch.Retained
	router    *gin.Engine
}

func New(cfg *config.Config, processor *batch.Processor, session *rembg.Session) *Server {
	gin.SetMode(cfg.Server.Mode)

	s := &Server{
		cfg:       cfg,
		processor: processor,
		session:   session,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger())
	r.Use(LimitBody(int64(cfg.Server.MaxUploadMB) << 20))

	r.GET("/health", s.Health)

	api := r.Group("/api/v1")
	{
		api.GET("/model", s.Model)
		api.POST("/remove", s.Remove)
		api.POST("/batch", s.Batch)
		api.POST("/capture", s.Capture)
		api.POST("/reprocess", s.Reprocess)
		api.POST("/save", s.Save)
	}

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 监听 cfg.Server.Addr，ctx 结束后优雅退出
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Server.Addr, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	slog.Info("server listening", "address", listener.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
