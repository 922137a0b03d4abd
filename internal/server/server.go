package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// 关闭服务时等待进行中请求的最长时间
const shutdownTimeout = 30 * time.Second

// Server 报告HTTP服务
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// Config 服务配置
type Config struct {
	// 监听地址，例如 :8080
	Addr string
	// 单个请求的写超时，需覆盖一次完整的OCR处理
	WriteTimeout time.Duration
	Logger       *zap.Logger
}

// New 创建服务
func New(cfg Config, service ReportService) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewHandler(service, cfg.Logger).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       120 * time.Second,
		},
		logger: cfg.Logger,
	}
}

// Run 在指定地址上监听，阻塞直到ctx取消或出错
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("监听 %s 失败: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve 在已有的listener上提供服务
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP服务已启动", zap.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("收到关闭信号")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP服务错误: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("关闭HTTP服务失败: %w", err)
	}
	s.logger.Info("HTTP服务已关闭")
	return nil
}
