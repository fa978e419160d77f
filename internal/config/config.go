// Package config provides the configuration structure for the voice-clone-service.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"
)

// Model backends.
const (
	BackendCLI  = "cli"
	BackendHTTP = "http"
)

// Defaults mirror the values the service historically hard-coded.
const (
	DefaultHost             = "127.0.0.1"
	DefaultPort             = 8000
	DefaultModelID          = "tts_models/multilingual/multi-dataset/xtts_v2"
	DefaultLanguageCode     = "ko"
	DefaultVoicesDir        = "voices"
	DefaultOutputDir        = "outputs"
	DefaultBinaryPath       = "tts"
	DefaultPythonPath       = "python3"
	DefaultTemperature      = 0.75
	DefaultMaxConcurrent    = 1
	DefaultTimeoutSeconds   = 300
	DefaultResampleQuality  = "best"
	DefaultMaxUploadMB      = 20
	DefaultShutdownSeconds  = 10
	DefaultRequestSubject   = "tts.synthesize"
	DefaultSynthesizedTopic = "tts.audio.synthesized"
	DefaultHistoryDB        = "history.db"

	dirPermissions = 0o750
)

// Validation errors.
var (
	ErrInvalidPort          = errors.New("server port must be between 1 and 65535")
	ErrUnknownBackend       = errors.New("unknown model backend")
	ErrServiceURLEmpty      = errors.New("model service_url is required for the http backend")
	ErrModelIDEmpty         = errors.New("model_id cannot be empty")
	ErrLanguageEmpty        = errors.New("language_code cannot be empty")
	ErrTargetRateRequired   = errors.New("target_sample_rate must be positive when normalize_reference is enabled")
	ErrMaxConcurrentInvalid = errors.New("max_concurrent must be at least 1")
	ErrNATSURLEmpty         = errors.New("nats url is required when nats is enabled")
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host                   string   `toml:"host"`
	Port                   int      `toml:"port"`
	ReadTimeoutSeconds     int      `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds    int      `toml:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int      `toml:"shutdown_timeout_seconds"`
	MaxUploadMB            int      `toml:"max_upload_mb"`
	AllowedOrigins         []string `toml:"allowed_origins"`
}

// ModelConfig describes how the pretrained voice-cloning model is reached.
type ModelConfig struct {
	ModelID        string  `toml:"model_id"`
	Backend        string  `toml:"backend"`
	BinaryPath     string  `toml:"binary_path"`
	PythonPath     string  `toml:"python_path"`
	ServiceURL     string  `toml:"service_url"`
	CacheDir       string  `toml:"cache_dir"`
	AgreeToTerms   bool    `toml:"agree_to_terms"`
	UseGPU         bool    `toml:"use_gpu"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxConcurrent  int     `toml:"max_concurrent"`
}

// SynthesisConfig holds the per-request synthesis behaviour.
type SynthesisConfig struct {
	LanguageCode       string `toml:"language_code"`
	TargetSampleRate   int    `toml:"target_sample_rate"`
	NormalizeReference bool   `toml:"normalize_reference"`
	ResampleQuality    string `toml:"resample_quality"`
	VoicesDir          string `toml:"voices_dir"`
	OutputDir          string `toml:"output_dir"`
	UniqueOutputNames  *bool  `toml:"unique_output_names"`
	CleanText          *bool  `toml:"clean_text"`
}

// HistoryConfig controls the synthesis history database.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	DBPath  string `toml:"db_path"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	Enabled                bool   `toml:"enabled"`
	URL                    string `toml:"url"`
	RequestSubject         string `toml:"request_subject"`
	SynthesizedSubject     string `toml:"synthesized_subject"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
	TenantID               string `toml:"tenant_id"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Model     ModelConfig     `toml:"model"`
	Synthesis SynthesisConfig `toml:"synthesis"`
	History   HistoryConfig   `toml:"history"`
	NATS      NATSConfig      `toml:"nats"`
	Paths     PathsConfig     `toml:"paths"`
}

// Load loads the configuration through the central configurator.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finalize(&cfg)
}

// LoadFile reads an explicit TOML file instead of going through the configurator.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes TOML data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	err := toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return finalize(&cfg)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config

	cfg.ApplyDefaults()

	return &cfg
}

func finalize(cfg *Config) (*Config, error) {
	cfg.ApplyDefaults()

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills every zero value with its documented default.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}

	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}

	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = DefaultShutdownSeconds
	}

	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = DefaultMaxUploadMB
	}

	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}

	c.applyModelDefaults()
	c.applySynthesisDefaults()

	if c.History.DBPath == "" {
		c.History.DBPath = DefaultHistoryDB
	}

	if c.NATS.RequestSubject == "" {
		c.NATS.RequestSubject = DefaultRequestSubject
	}

	if c.NATS.SynthesizedSubject == "" {
		c.NATS.SynthesizedSubject = DefaultSynthesizedTopic
	}

	if c.Paths.BaseLogsDir == "" {
		c.Paths.BaseLogsDir = "logs"
	}
}

func (c *Config) applyModelDefaults() {
	if c.Model.ModelID == "" {
		c.Model.ModelID = DefaultModelID
	}

	if c.Model.Backend == "" {
		c.Model.Backend = BackendCLI
	}

	if c.Model.BinaryPath == "" {
		c.Model.BinaryPath = DefaultBinaryPath
	}

	if c.Model.PythonPath == "" {
		c.Model.PythonPath = DefaultPythonPath
	}

	if c.Model.Temperature == 0 {
		c.Model.Temperature = DefaultTemperature
	}

	if c.Model.TimeoutSeconds == 0 {
		c.Model.TimeoutSeconds = DefaultTimeoutSeconds
	}

	if c.Model.MaxConcurrent == 0 {
		c.Model.MaxConcurrent = DefaultMaxConcurrent
	}
}

func (c *Config) applySynthesisDefaults() {
	if c.Synthesis.LanguageCode == "" {
		c.Synthesis.LanguageCode = DefaultLanguageCode
	}

	if c.Synthesis.ResampleQuality == "" {
		c.Synthesis.ResampleQuality = DefaultResampleQuality
	}

	if c.Synthesis.VoicesDir == "" {
		c.Synthesis.VoicesDir = DefaultVoicesDir
	}

	if c.Synthesis.OutputDir == "" {
		c.Synthesis.OutputDir = DefaultOutputDir
	}

	if c.Synthesis.UniqueOutputNames == nil {
		enabled := true
		c.Synthesis.UniqueOutputNames = &enabled
	}

	if c.Synthesis.CleanText == nil {
		disabled := false
		c.Synthesis.CleanText = &disabled
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Server.Port)
	}

	if c.Model.ModelID == "" {
		return ErrModelIDEmpty
	}

	switch c.Model.Backend {
	case BackendCLI:
	case BackendHTTP:
		if c.Model.ServiceURL == "" {
			return ErrServiceURLEmpty
		}
	default:
		return fmt.Errorf("%w: '%s'", ErrUnknownBackend, c.Model.Backend)
	}

	if c.Model.MaxConcurrent < 1 {
		return fmt.Errorf("%w: got %d", ErrMaxConcurrentInvalid, c.Model.MaxConcurrent)
	}

	if c.Synthesis.LanguageCode == "" {
		return ErrLanguageEmpty
	}

	if c.Synthesis.NormalizeReference && c.Synthesis.TargetSampleRate <= 0 {
		return ErrTargetRateRequired
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return ErrNATSURLEmpty
	}

	return nil
}

// Address returns the host:port the HTTP server binds to.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// MaxUploadBytes returns the upload limit in bytes.
func (s ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// ModelTimeout returns the per-call model timeout. Zero means no limit.
func (m ModelConfig) ModelTimeout() time.Duration {
	if m.TimeoutSeconds < 0 {
		return 0
	}

	return time.Duration(m.TimeoutSeconds) * time.Second
}

// UniqueNames reports whether output files get a collision-resistant suffix.
func (s SynthesisConfig) UniqueNames() bool {
	return s.UniqueOutputNames == nil || *s.UniqueOutputNames
}

// ShouldCleanText reports whether request text is cleaned before synthesis.
// Text reaches the model unchanged unless clean_text is set.
func (s SynthesisConfig) ShouldCleanText() bool {
	return s.CleanText != nil && *s.CleanText
}

// EnsureDirectories creates the voices, output and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Synthesis.VoicesDir, c.Synthesis.OutputDir, c.Paths.BaseLogsDir} {
		err := os.MkdirAll(dir, dirPermissions)
		if err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
