// Package model provides the backends that reach the pretrained voice-cloning
// model and the Guard that serializes access to it.
package model

import (
	"fmt"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-clone-service/internal/config"
	"github.com/book-expert/voice-clone-service/internal/core"
)

// New builds the backend selected by cfg.Backend.
func New(cfg config.ModelConfig, log *logger.Logger) (core.SpeechModel, error) {
	switch cfg.Backend {
	case config.BackendCLI:
		return NewCLIModel(CLIConfig{
			BinaryPath:   cfg.BinaryPath,
			PythonPath:   cfg.PythonPath,
			ModelID:      cfg.ModelID,
			CacheDir:     cfg.CacheDir,
			AgreeToTerms: cfg.AgreeToTerms,
			UseGPU:       cfg.UseGPU,
		}, log), nil
	case config.BackendHTTP:
		return NewHTTPModel(cfg.ServiceURL, cfg.ModelID, cfg.Temperature, 0, log), nil
	default:
		return nil, fmt.Errorf("%w: '%s'", config.ErrUnknownBackend, cfg.Backend)
	}
}
