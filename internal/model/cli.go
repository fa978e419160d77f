package model

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-clone-service/internal/core"
)

// Environment understood by the Coqui TTS toolkit.
const (
	envAgreeToTerms = "COQUI_TOS_AGREED"
	envTTSHome      = "TTS_HOME"
)

// CLIConfig configures the command-line backend.
type CLIConfig struct {
	BinaryPath   string
	PythonPath   string
	ModelID      string
	CacheDir     string
	AgreeToTerms bool
	UseGPU       bool
}

// CLIModel runs the Coqui `tts` command for every synthesis. The model is
// loaded by the command itself, so each call pays the load cost; use the HTTP
// backend when a resident model process is available.
type CLIModel struct {
	config CLIConfig
	log    *logger.Logger
}

// NewCLIModel creates a CLIModel.
func NewCLIModel(cfg CLIConfig, log *logger.Logger) *CLIModel {
	return &CLIModel{config: cfg, log: log}
}

// ModelID returns the configured model identifier.
func (m *CLIModel) ModelID() string {
	return m.config.ModelID
}

// Synthesize runs the tts binary, which writes its output to job.OutputPath.
func (m *CLIModel) Synthesize(ctx context.Context, job core.SynthesisJob) error {
	if job.Text == "" {
		return ErrTextEmpty
	}

	if job.OutputPath == "" {
		return ErrOutputPathEmpty
	}

	args := []string{
		"--model_name", m.config.ModelID,
		"--text", job.Text,
		"--speaker_wav", job.SpeakerWavPath,
		"--language_idx", job.Language,
		"--out_path", job.OutputPath,
	}

	if m.config.UseGPU {
		args = append(args, "--use_cuda", "true")
	}

	// #nosec G204 -- binary path comes from configuration, text is passed as a single argv element
	cmd := exec.CommandContext(ctx, m.config.BinaryPath, args...)
	cmd.Env = m.environment()

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("tts binary execution failed: %w - output: %s", err, strings.TrimSpace(string(output)))
	}

	_, statErr := os.Stat(job.OutputPath)
	if statErr != nil {
		return fmt.Errorf("tts binary reported success but produced no output: %w", statErr)
	}

	return nil
}

// Provision downloads and caches the model by instantiating it once through
// the toolkit's Python API. Repeated runs reuse the cache.
func (m *CLIModel) Provision(ctx context.Context) error {
	script := fmt.Sprintf("from TTS.api import TTS; TTS(%s)", pythonQuote(m.config.ModelID))

	// #nosec G204 -- interpreter path comes from configuration
	cmd := exec.CommandContext(ctx, m.config.PythonPath, "-c", script)
	cmd.Env = m.environment()
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	m.log.Info("Provisioning model %s with %s", m.config.ModelID, m.config.PythonPath)

	err := cmd.Run()
	if err != nil {
		return fmt.Errorf("model provisioning failed for %s: %w", m.config.ModelID, err)
	}

	return nil
}

func (m *CLIModel) environment() []string {
	env := os.Environ()

	if m.config.AgreeToTerms {
		env = append(env, envAgreeToTerms+"=1")
	}

	if m.config.CacheDir != "" {
		env = append(env, envTTSHome+"="+m.config.CacheDir)
	}

	return env
}

func pythonQuote(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`)

	return "'" + replacer.Replace(value) + "'"
}
