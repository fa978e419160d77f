package publish_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-clone-service/internal/core"
	"github.com/book-expert/voice-clone-service/internal/publish"
)

func connect(t *testing.T) *nats.Conn {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
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

	return natsConnection
}

func TestNatsPublisher_PublishSynthesized(t *testing.T) {
	t.Parallel()

	natsConnection := connect(t)

	subscription, err := natsConnection.SubscribeSync("tts.audio.synthesized")
	require.NoError(t, err)
	require.NoError(t, natsConnection.Flush())

	createdAt := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	publisher := publish.NewNatsPublisher(natsConnection, "tts.audio.synthesized", "tenant-a")

	err = publisher.PublishSynthesized(context.Background(), core.AudioSynthesized{
		UserID:     7,
		Voice:      "alice",
		Language:   "ko",
		Text:       "hello.",
		Filename:   "user_7_alice_1700000000.wav",
		ObjectKey:  "user_7_alice_1700000000.wav",
		CreatedAt:  createdAt,
		DurationMS: 1200,
	})
	require.NoError(t, err)

	msg, err := subscription.NextMsg(5 * time.Second)
	require.NoError(t, err)

	var event publish.AudioSynthesizedEvent
	require.NoError(t, json.Unmarshal(msg.Data, &event))

	assert.Equal(t, "7", event.Header.UserID)
	assert.Equal(t, "tenant-a", event.Header.TenantID)
	assert.NotEmpty(t, event.Header.EventID)
	assert.NotEmpty(t, event.Header.WorkflowID)
	assert.True(t, createdAt.Equal(event.Header.Timestamp))
	assert.Equal(t, "alice", event.Voice)
	assert.Equal(t, "user_7_alice_1700000000.wav", event.Filename)
	assert.Equal(t, int64(1200), event.DurationMS)
}

func TestNatsPublisher_ClosedConnection(t *testing.T) {
	t.Parallel()

	natsConnection := connect(t)
	natsConnection.Close()

	publisher := publish.NewNatsPublisher(natsConnection, "tts.audio.synthesized", "")

	err := publisher.PublishSynthesized(context.Background(), core.AudioSynthesized{UserID: 1})
	require.ErrorIs(t, err, nats.ErrConnectionClosed)
}
