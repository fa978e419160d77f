package worker_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-clone-service/internal/synthesis"
	"github.com/book-expert/voice-clone-service/internal/worker"
)

const testSubject = "tts.synthesize.test"

// mockSynthesizer answers from a fixed table keyed by speaker name.
type mockSynthesizer struct {
	mu       sync.Mutex
	requests []synthesis.Request
	started  chan struct{}
	delay    time.Duration
}

func (m *mockSynthesizer) Synthesize(_ context.Context, req synthesis.Request) (*synthesis.Result, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if req.SpeakerWav == "slow" {
		close(m.started)
		time.Sleep(m.delay)
	}

	if req.SpeakerWav == "missing" {
		return nil, &synthesis.Error{
			Kind: synthesis.KindReferenceNotFound,
			Path: "voices/missing.wav",
			Err:  fmt.Errorf("%w: voices/missing.wav", synthesis.ErrReferenceNotFound),
		}
	}

	filename := fmt.Sprintf("user_%d_%s_1700000000.wav", req.UserID, req.SpeakerWav)

	return &synthesis.Result{Filename: filename, Message: synthesis.SuccessMessage}, nil
}

func (m *mockSynthesizer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.requests)
}

func startWorker(t *testing.T) (*nats.Conn, *mockSynthesizer) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		natsServer.Shutdown()
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	testLogger, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	synthesizer := &mockSynthesizer{}
	workerInstance := worker.NewNatsWorker(natsConnection, testSubject, "voice-clone", synthesizer, time.Minute, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errChan, "Run should not error on graceful shutdown")
		natsConnection.Close()
		natsServer.Shutdown()
		_ = testLogger.Close()
	})

	return natsConnection, synthesizer
}

// request retries until the worker's subscription is live.
func request(t *testing.T, natsConnection *nats.Conn, payload []byte) map[string]any {
	t.Helper()

	var reply *nats.Msg

	require.Eventually(t, func() bool {
		var err error

		reply, err = natsConnection.Request(testSubject, payload, time.Second)

		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(reply.Data, &decoded))

	return decoded
}

func TestNatsWorker_Success(t *testing.T) {
	t.Parallel()

	natsConnection, synthesizer := startWorker(t)

	payload, err := json.Marshal(synthesis.Request{Text: "hello", SpeakerWav: "alice", UserID: 7})
	require.NoError(t, err)

	reply := request(t, natsConnection, payload)

	assert.Equal(t, "user_7_alice_1700000000.wav", reply["filename"])
	assert.Equal(t, "Synthesis successful", reply["message"])
	assert.NotContains(t, reply, "error")
	assert.Equal(t, 1, synthesizer.count())
}

func TestNatsWorker_Failure(t *testing.T) {
	t.Parallel()

	natsConnection, _ := startWorker(t)

	payload, err := json.Marshal(synthesis.Request{Text: "hello", SpeakerWav: "missing", UserID: 7})
	require.NoError(t, err)

	reply := request(t, natsConnection, payload)

	assert.Equal(t, "speaker wav file not found: voices/missing.wav", reply["error"])
	assert.Equal(t, "reference_not_found", reply["kind"])
	assert.Equal(t, "voices/missing.wav", reply["path"])
}

func TestNatsWorker_MalformedRequest(t *testing.T) {
	t.Parallel()

	natsConnection, synthesizer := startWorker(t)

	reply := request(t, natsConnection, []byte("{not json"))

	assert.Equal(t, "invalid_request", reply["kind"])
	assert.Contains(t, reply["error"], "invalid request body")
	assert.Zero(t, synthesizer.count())
}

func TestNatsWorker_ShutdownWaitsForInFlightReply(t *testing.T) {
	t.Parallel()

	opts := test.DefaultTestOptions
	opts.Port = -1
	natsServer := test.RunServer(&opts)
	t.Cleanup(natsServer.Shutdown)

	workerConnection, err := nats.Connect(natsServer.ClientURL())
	require.NoError(t, err)

	clientConnection, err := nats.Connect(natsServer.ClientURL())
	require.NoError(t, err)
	t.Cleanup(clientConnection.Close)

	testLogger, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testLogger.Close() })

	synthesizer := &mockSynthesizer{started: make(chan struct{}), delay: 300 * time.Millisecond}
	workerInstance := worker.NewNatsWorker(workerConnection, testSubject, "voice-clone", synthesizer, time.Minute, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	warmup, err := json.Marshal(synthesis.Request{Text: "hello", SpeakerWav: "alice", UserID: 1})
	require.NoError(t, err)
	request(t, clientConnection, warmup)

	payload, err := json.Marshal(synthesis.Request{Text: "hello", SpeakerWav: "slow", UserID: 2})
	require.NoError(t, err)

	type outcome struct {
		msg *nats.Msg
		err error
	}

	replyChan := make(chan outcome, 1)

	go func() {
		msg, requestErr := clientConnection.Request(testSubject, payload, 5*time.Second)
		replyChan <- outcome{msg: msg, err: requestErr}
	}()

	select {
	case <-synthesizer.started:
	case <-time.After(5 * time.Second):
		t.Fatal("slow job never started")
	}

	cancel()
	require.NoError(t, <-errChan)
	workerConnection.Close()

	result := <-replyChan
	require.NoError(t, result.err, "reply must be sent before Run returns")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(result.msg.Data, &decoded))
	assert.Equal(t, "user_2_slow_1700000000.wav", decoded["filename"])
}
