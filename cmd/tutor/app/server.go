// Package app provides the tutoring server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kart-io/logger"
	"github.com/spf13/viper"

	"github.com/kart-io/tutor-x/cmd/tutor/app/options"
	tutorsvc "github.com/kart-io/tutor-x/internal/tutor"
	"github.com/kart-io/tutor-x/pkg/infra/app"
)

const (
	// envPrefix 环境变量前缀，例如 TUTOR_HTTP_ADDR。
	envPrefix = "TUTOR"

	// commandDesc is the description of the command.
	commandDesc = `Tutor Service

The retrieval-augmented tutoring backend for university course materials.

This server provides:
  - Course material upload and background ingestion
  - Hybrid vector and keyword retrieval scoped to a teaching week
  - Streaming chat answers grounded in the week's materials
  - Practice question generation and notation tables`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(tutorsvc.Name),
		app.WithShortDescription("Tutor RAG service"),
		app.WithDescription(commandDesc),
		app.WithEnvPrefix(envPrefix),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
		app.WithConfigWatcher(watchLogLevel(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// watchLogLevel 配置文件变更时仅热更新日志级别，其余配置需要重启生效。
func watchLogLevel(opts *options.ServerOptions) app.ConfigChangeFunc {
	return func(v *viper.Viper) {
		level := v.GetString("log.level")
		if level == "" || strings.EqualFold(level, opts.LogOptions.Level) {
			return
		}
		old := opts.LogOptions.Level
		opts.LogOptions.Level = level
		if err := opts.LogOptions.Init(); err != nil {
			opts.LogOptions.Level = old
			logger.Warnw("Failed to apply log level", "level", level, "error", err.Error())
			return
		}
		logger.Infow("Log level updated", "from", old, "to", level)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
