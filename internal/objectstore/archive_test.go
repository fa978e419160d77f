package objectstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-clone-service/internal/objectstore"
)

func startJetStream(t *testing.T) nats.JetStreamContext {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		natsServer.Shutdown()
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	t.Cleanup(func() {
		natsConnection.Close()
		natsServer.Shutdown()
	})

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	return jetstreamContext
}

func TestArchive_UploadDownload(t *testing.T) {
	t.Parallel()

	archive, err := objectstore.New(startJetStream(t), "voice-audio")
	require.NoError(t, err)
	assert.Equal(t, "voice-audio", archive.Bucket())

	ctx := context.Background()
	payload := []byte("RIFF....WAVEfmt ")

	require.NoError(t, archive.Upload(ctx, "user_7_alice_1700000000.wav", payload))

	downloaded, err := archive.Download(ctx, "user_7_alice_1700000000.wav")
	require.NoError(t, err)
	assert.Equal(t, payload, downloaded)
}

func TestArchive_UploadFile(t *testing.T) {
	t.Parallel()

	archive, err := objectstore.New(startJetStream(t), "voice-audio")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.wav")
	payload := []byte("generated audio bytes")
	require.NoError(t, os.WriteFile(path, payload, 0o600))

	ctx := context.Background()
	require.NoError(t, archive.UploadFile(ctx, "out.wav", path))

	downloaded, err := archive.Download(ctx, "out.wav")
	require.NoError(t, err)
	assert.Equal(t, payload, downloaded)

	require.Error(t, archive.UploadFile(ctx, "missing.wav", filepath.Join(t.TempDir(), "missing.wav")))
}

func TestArchive_DownloadMissing(t *testing.T) {
	t.Parallel()

	archive, err := objectstore.New(startJetStream(t), "voice-audio")
	require.NoError(t, err)

	_, err = archive.Download(context.Background(), "nope.wav")
	require.ErrorIs(t, err, objectstore.ErrObjectNotFound)
}

func TestNew_BindsExistingBucket(t *testing.T) {
	t.Parallel()

	jetstreamContext := startJetStream(t)

	first, err := objectstore.New(jetstreamContext, "voice-audio")
	require.NoError(t, err)
	require.NoError(t, first.Upload(context.Background(), "kept.wav", []byte("kept")))

	second, err := objectstore.New(jetstreamContext, "voice-audio")
	require.NoError(t, err)

	data, err := second.Download(context.Background(), "kept.wav")
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), data)
}
