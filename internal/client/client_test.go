package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-clone-service/internal/audio"
	"github.com/book-expert/voice-clone-service/internal/client"
	"github.com/book-expert/voice-clone-service/internal/config"
	"github.com/book-expert/voice-clone-service/internal/core"
	"github.com/book-expert/voice-clone-service/internal/model"
	"github.com/book-expert/voice-clone-service/internal/server"
	"github.com/book-expert/voice-clone-service/internal/synthesis"
	"github.com/book-expert/voice-clone-service/internal/voices"
)

// toneModel writes one second of silence at 24 kHz for every job.
type toneModel struct{}

func (toneModel) ModelID() string { return "tone" }

func (toneModel) Provision(context.Context) error { return nil }

func (toneModel) Synthesize(_ context.Context, job core.SynthesisJob) error {
	return audio.WritePCM16(job.OutputPath, 24000, make([]float64, 24000))
}

func startService(t *testing.T) (*client.Client, string) {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Synthesis.VoicesDir = filepath.Join(root, "voices")
	cfg.Synthesis.OutputDir = filepath.Join(root, "outputs")
	cfg.Paths.BaseLogsDir = filepath.Join(root, "logs")
	require.NoError(t, cfg.EnsureDirectories())

	log, err := logger.New(cfg.Paths.BaseLogsDir, "test.log")
	require.NoError(t, err)

	guard := model.NewGuard(toneModel{}, cfg.Model.MaxConcurrent, cfg.Model.ModelTimeout())
	service := synthesis.New(cfg.Synthesis, guard, log)

	httpServer := httptest.NewServer(server.New(server.Deps{
		Synthesizer:    service,
		Voices:         voices.NewLibrary(cfg.Synthesis.VoicesDir),
		Log:            log,
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}).Router())

	t.Cleanup(func() {
		httpServer.Close()
		_ = log.Close()
	})

	return client.New(httpServer.URL, 10*time.Second), root
}

func TestClient_EndToEnd(t *testing.T) {
	t.Parallel()

	serviceClient, root := startService(t)
	ctx := context.Background()

	health, err := serviceClient.HealthCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "tone", health.ModelID)

	samplePath := filepath.Join(root, "sample.wav")
	require.NoError(t, audio.WritePCM16(samplePath, 16000, make([]float64, 16000)))

	voice, err := serviceClient.UploadVoice(ctx, 7, samplePath)
	require.NoError(t, err)

	list, err := serviceClient.ListVoices(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, voice.Name, list[0].Name)

	result, err := serviceClient.Synthesize(ctx, synthesis.Request{Text: "hello", SpeakerWav: voice.Name, UserID: 7})
	require.NoError(t, err)
	assert.Equal(t, synthesis.SuccessMessage, result.Message)
	assert.Regexp(t, `^user_7_`+voice.Name+`_\d+_[0-9a-f]{8}\.wav$`, result.Filename)

	downloadPath := filepath.Join(root, "downloaded.wav")
	require.NoError(t, serviceClient.Download(ctx, result.Filename, downloadPath))

	info, err := audio.Probe(downloadPath)
	require.NoError(t, err)
	assert.Equal(t, 24000, info.SampleRate)
}

func TestClient_SynthesizeMissingVoice(t *testing.T) {
	t.Parallel()

	serviceClient, _ := startService(t)

	_, err := serviceClient.Synthesize(context.Background(), synthesis.Request{Text: "hello", SpeakerWav: "ghost", UserID: 1})
	require.Error(t, err)

	var responseErr *client.ResponseError
	require.ErrorAs(t, err, &responseErr)
	assert.Equal(t, http.StatusNotFound, responseErr.StatusCode)
	assert.Equal(t, synthesis.KindReferenceNotFound, responseErr.Failure.Kind)
	assert.Contains(t, responseErr.Failure.Path, "ghost.wav")
}

func TestClient_DownloadMissing(t *testing.T) {
	t.Parallel()

	serviceClient, root := startService(t)

	err := serviceClient.Download(context.Background(), "absent.wav", filepath.Join(root, "x.wav"))

	var responseErr *client.ResponseError
	require.ErrorAs(t, err, &responseErr)
	assert.Equal(t, http.StatusNotFound, responseErr.StatusCode)

	_, statErr := os.Stat(filepath.Join(root, "x.wav"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestClient_UnexpectedBody(t *testing.T) {
	t.Parallel()

	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer httpServer.Close()

	_, err := client.New(httpServer.URL, time.Second).HealthCheck(context.Background())
	require.ErrorIs(t, err, client.ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "upstream down")

	var responseErr *client.ResponseError
	assert.False(t, errors.As(err, &responseErr))
}
