// Package config_test tests the configuration loading for the voice-clone-service.
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/voice-clone-service/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[server]
host = "0.0.0.0"
port = 9000
allowed_origins = ["https://avocado.example"]

[model]
model_id = "tts_models/multilingual/multi-dataset/xtts_v2"
backend = "http"
service_url = "http://127.0.0.1:8020"
timeout_seconds = 120
max_concurrent = 2

[synthesis]
language_code = "en"
target_sample_rate = 96000
normalize_reference = true
voices_dir = "data/voices"
output_dir = "data/outputs"
unique_output_names = false
clean_text = true

[nats]
enabled = true
url = "nats://127.0.0.1:4222"
request_subject = "voice.synthesize"
audio_object_store_bucket = "AUDIO_FILES"
tenant_id = "avocado"
`

	var raw config.Config

	err := toml.Unmarshal([]byte(tomlData), &raw)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", raw.Server.Host)
	assert.Equal(t, 96000, raw.Synthesis.TargetSampleRate)

	cfg, err := config.Parse([]byte(tomlData))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Address())
	assert.Equal(t, config.BackendHTTP, cfg.Model.Backend)
	assert.Equal(t, "http://127.0.0.1:8020", cfg.Model.ServiceURL)
	assert.Equal(t, 120*time.Second, cfg.Model.ModelTimeout())
	assert.Equal(t, 2, cfg.Model.MaxConcurrent)
	assert.Equal(t, "en", cfg.Synthesis.LanguageCode)
	assert.True(t, cfg.Synthesis.NormalizeReference)
	assert.Equal(t, "data/voices", cfg.Synthesis.VoicesDir)
	assert.Equal(t, "data/outputs", cfg.Synthesis.OutputDir)
	assert.False(t, cfg.Synthesis.UniqueNames())
	assert.True(t, cfg.Synthesis.ShouldCleanText())
	assert.Equal(t, "voice.synthesize", cfg.NATS.RequestSubject)
	assert.Equal(t, config.DefaultSynthesizedTopic, cfg.NATS.SynthesizedSubject)
	assert.Equal(t, "AUDIO_FILES", cfg.NATS.AudioObjectStoreBucket)
	assert.Equal(t, "avocado", cfg.NATS.TenantID)
	assert.Equal(t, []string{"https://avocado.example"}, cfg.Server.AllowedOrigins)
}

func TestDefaultsMatchLegacyConstants(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:8000", cfg.Server.Address())
	assert.Equal(t, config.DefaultModelID, cfg.Model.ModelID)
	assert.Equal(t, config.BackendCLI, cfg.Model.Backend)
	assert.Equal(t, "ko", cfg.Synthesis.LanguageCode)
	assert.Equal(t, "voices", cfg.Synthesis.VoicesDir)
	assert.Equal(t, "outputs", cfg.Synthesis.OutputDir)
	assert.False(t, cfg.Synthesis.NormalizeReference)
	assert.True(t, cfg.Synthesis.UniqueNames())
	assert.False(t, cfg.Synthesis.ShouldCleanText())
	assert.Equal(t, 1, cfg.Model.MaxConcurrent)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(20<<20), cfg.Server.MaxUploadBytes())
}

func TestValidateRejectsBadSettings(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		tomlStr string
		wantErr error
	}{
		{
			name:    "port out of range",
			tomlStr: "[server]\nport = 70000\n",
			wantErr: config.ErrInvalidPort,
		},
		{
			name:    "unknown backend",
			tomlStr: "[model]\nbackend = \"grpc\"\n",
			wantErr: config.ErrUnknownBackend,
		},
		{
			name:    "http backend without url",
			tomlStr: "[model]\nbackend = \"http\"\n",
			wantErr: config.ErrServiceURLEmpty,
		},
		{
			name:    "normalization without rate",
			tomlStr: "[synthesis]\nnormalize_reference = true\n",
			wantErr: config.ErrTargetRateRequired,
		},
		{
			name:    "nats without url",
			tomlStr: "[nats]\nenabled = true\n",
			wantErr: config.ErrNATSURLEmpty,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.Parse([]byte(testCase.tomlStr))
			require.ErrorIs(t, err, testCase.wantErr)
		})
	}
}

func TestLoadFileAndEnsureDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	voices := filepath.Join(root, "voices")
	outputs := filepath.Join(root, "outputs")
	logs := filepath.Join(root, "logs")

	path := filepath.Join(root, "project.toml")
	content := "[synthesis]\nvoices_dir = \"" + voices + "\"\noutput_dir = \"" + outputs +
		"\"\n[paths]\nbase_logs_dir = \"" + logs + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.EnsureDirectories())

	for _, dir := range []string{voices, outputs, logs} {
		info, statErr := os.Stat(dir)
		require.NoError(t, statErr)
		assert.True(t, info.IsDir())
	}
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
