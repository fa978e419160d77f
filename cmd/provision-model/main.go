// main package for the one-shot model provisioning tool. It takes no flags:
// the model and backend come from the same configuration as the service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-clone-service/internal/config"
	"github.com/book-expert/voice-clone-service/internal/fsutil"
	"github.com/book-expert/voice-clone-service/internal/model"
)

func run() error {
	log, err := logger.New(os.TempDir(), "voice-clone-provision.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create logger: %v\n", err)

		return err
	}

	defer func() { _ = log.Close() }()

	cfg, err := config.Load(log)
	if err != nil {
		log.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Model.CacheDir == "" {
		cfg.Model.CacheDir = fsutil.GetCacheDir()
	}

	err = fsutil.EnsureDir(cfg.Model.CacheDir)
	if err != nil {
		return err
	}

	speechModel, err := model.New(cfg.Model, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.System("Provisioning %s (backend %s, cache %s)", speechModel.ModelID(), cfg.Model.Backend, cfg.Model.CacheDir)

	err = speechModel.Provision(ctx)
	if err != nil {
		log.Error("Provisioning failed: %v", err)

		return err
	}

	log.System("Model %s is ready", speechModel.ModelID())
	fmt.Printf("Model %s is ready\n", speechModel.ModelID())

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Provisioning failed: %v\n", err)
		os.Exit(1)
	}
}
