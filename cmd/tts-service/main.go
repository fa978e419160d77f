// main package for the voice-clone-service
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/voice-clone-service/internal/audio"
	"github.com/book-expert/voice-clone-service/internal/config"
	"github.com/book-expert/voice-clone-service/internal/fsutil"
	"github.com/book-expert/voice-clone-service/internal/history"
	"github.com/book-expert/voice-clone-service/internal/model"
	"github.com/book-expert/voice-clone-service/internal/objectstore"
	"github.com/book-expert/voice-clone-service/internal/publish"
	"github.com/book-expert/voice-clone-service/internal/server"
	"github.com/book-expert/voice-clone-service/internal/synthesis"
	"github.com/book-expert/voice-clone-service/internal/text"
	"github.com/book-expert/voice-clone-service/internal/voices"
	"github.com/book-expert/voice-clone-service/internal/worker"
)

const (
	serviceName        = "voice-clone-service"
	readHeaderTimeout  = 10 * time.Second
	workerGraceTimeout = time.Minute
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func loadConfig(path string, log *logger.Logger) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}

	return config.Load(log)
}

// natsDeps holds what the service gets from NATS when it is enabled.
type natsDeps struct {
	conn      *nats.Conn
	archive   *objectstore.Archive
	publisher *publish.NatsPublisher
}

func connectNATS(cfg config.NATSConfig, log *logger.Logger) (*natsDeps, error) {
	natsConnection, err := nats.Connect(cfg.URL, nats.Name(serviceName))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}

	deps := &natsDeps{
		conn:      natsConnection,
		publisher: publish.NewNatsPublisher(natsConnection, cfg.SynthesizedSubject, cfg.TenantID),
	}

	if cfg.AudioObjectStoreBucket != "" {
		jetstreamContext, jsErr := natsConnection.JetStream()
		if jsErr != nil {
			natsConnection.Close()

			return nil, fmt.Errorf("failed to create JetStream context: %w", jsErr)
		}

		deps.archive, err = objectstore.New(jetstreamContext, cfg.AudioObjectStoreBucket)
		if err != nil {
			natsConnection.Close()

			return nil, err
		}

		log.Info("Archiving generated audio to bucket %s", cfg.AudioObjectStoreBucket)
	}

	return deps, nil
}

func synthesisOptions(cfg *config.Config) ([]synthesis.Option, error) {
	var opts []synthesis.Option

	if cfg.Synthesis.NormalizeReference {
		quality, err := audio.ParseQuality(cfg.Synthesis.ResampleQuality)
		if err != nil {
			return nil, err
		}

		normalizer, err := audio.NewNormalizer(cfg.Synthesis.TargetSampleRate, quality)
		if err != nil {
			return nil, err
		}

		opts = append(opts, synthesis.WithNormalizer(normalizer))
	}

	if cfg.Synthesis.ShouldCleanText() {
		opts = append(opts, synthesis.WithCleaner(text.NewCleaner()))
	}

	return opts, nil
}

func run() error {
	configPath := flag.String("config", "", "Path to a TOML configuration file (defaults to the configurator search)")
	flag.Parse()

	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), "voice-clone-service-bootstrap.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	// 2. Load configuration
	cfg, err := loadConfig(*configPath, bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	err = cfg.EnsureDirectories()
	if err != nil {
		bootstrapLog.Error("Failed to create directories: %v", err)

		return err
	}

	// 3. Initialize the final logger based on the loaded configuration
	log, err := setupLogger(cfg.Paths.BaseLogsDir, "voice-clone-service.log")
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return err
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, log)
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if cfg.Model.CacheDir == "" {
		cfg.Model.CacheDir = fsutil.GetCacheDir()
	}

	speechModel, err := model.New(cfg.Model, log)
	if err != nil {
		return err
	}

	guard := model.NewGuard(speechModel, cfg.Model.MaxConcurrent, cfg.Model.ModelTimeout())

	opts, err := synthesisOptions(cfg)
	if err != nil {
		return err
	}

	deps := server.Deps{
		Voices:         voices.NewLibrary(cfg.Synthesis.VoicesDir),
		Log:            log,
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}

	if cfg.History.Enabled {
		historyStore, openErr := history.Open(cfg.History.DBPath)
		if openErr != nil {
			return openErr
		}

		defer func() { _ = historyStore.Close() }()

		opts = append(opts, synthesis.WithHistory(historyStore))
		deps.History = historyStore
	}

	var natsClient *natsDeps

	if cfg.NATS.Enabled {
		natsClient, err = connectNATS(cfg.NATS, log)
		if err != nil {
			return err
		}

		defer natsClient.conn.Close()

		opts = append(opts, synthesis.WithPublisher(natsClient.publisher))

		if natsClient.archive != nil {
			opts = append(opts, synthesis.WithArchive(natsClient.archive))
			deps.Archive = natsClient.archive
		}
	}

	service := synthesis.New(cfg.Synthesis, guard, log, opts...)
	deps.Synthesizer = service

	workerDone := make(chan error, 1)

	if natsClient != nil {
		natsWorker := worker.NewNatsWorker(natsClient.conn, cfg.NATS.RequestSubject, serviceName, service,
			cfg.Model.ModelTimeout()+workerGraceTimeout, log)

		go func() { workerDone <- natsWorker.Run(ctx) }()
	} else {
		workerDone <- nil
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           server.New(deps).Router(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	serveErr := make(chan error, 1)

	go func() {
		log.System("Voice clone service listening on %s (model %s, backend %s)",
			httpServer.Addr, guard.ModelID(), cfg.Model.Backend)

		listenErr := httpServer.ListenAndServe()
		if listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
			serveErr <- listenErr
		}

		close(serveErr)
	}()

	select {
	case err = <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
		log.System("Shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	err = httpServer.Shutdown(shutdownCtx)
	if err != nil {
		log.Warn("HTTP server shutdown incomplete: %v", err)
	}

	err = <-workerDone
	if err != nil {
		log.Error("NATS worker stopped with error: %v", err)
	}

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
