// cmd/sitefence/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/FairForge/sitefence/internal/api"
	"github.com/FairForge/sitefence/internal/cloud"
	"github.com/FairForge/sitefence/internal/config"
	"github.com/FairForge/sitefence/internal/logging"
	"github.com/FairForge/sitefence/internal/metrics"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	showVersion := pflag.Bool("version", false, "print the version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println(api.Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sitefence: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.NewLogger(&logging.LoggerConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sitefence: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	factory, err := cloud.Load(context.Background(), cfg.AWS, cfg.Secrets.Region)
	if err != nil {
		logger.Fatal("failed to load AWS configuration", zap.Error(err))
	}

	server := api.NewServer(cfg, logger, api.CloudSessions(factory), metrics.New())

	// Handle shutdown gracefully
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("sitefence started",
		zap.String("version", api.Version),
		zap.String("accelerator_region", cfg.AWS.AcceleratorRegion),
		zap.String("secrets_region", cfg.Secrets.Region),
		zap.String("admin_user", cfg.Auth.AdminUser))

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	<-done
}
