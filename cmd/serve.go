package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"next-mission/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type drainer interface {
	Wait()
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewHandler(deps.service, logger.Named("api")),
		ReadHeaderTimeout: 10 * time.Second,
	}
	timeout, err := time.ParseDuration(cfg.Server.ShutdownTimeout)
	if err != nil || timeout <= 0 {
		timeout = 10 * time.Second
	}

	logger.Info("listening", zap.String("addr", cfg.Server.Addr))
	return runServer(ctx, srv, deps.service, timeout, logger)
}

// runServer 运行服务器直到 ctx 取消，然后优雅关闭并等待未完成的缓存提交。
func runServer(ctx context.Context, srv httpServer, pending drainer, shutdownTimeout time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("server stopped with error", zap.Error(err))
	}

	drained := make(chan struct{})
	go func() {
		if pending != nil {
			pending.Wait()
		}
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		logger.Warn("pending cache commits abandoned at shutdown")
	}
	return shutdownErr
}
