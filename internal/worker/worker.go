// Package worker serves synthesis requests received over NATS request/reply.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/voice-clone-service/internal/synthesis"
)

const (
	defaultHandleTimeout = 10 * time.Minute
	drainPollInterval    = 20 * time.Millisecond
	replyFlushTimeout    = 5 * time.Second
)

// ErrDrainTimeout is returned when in-flight jobs outlive the job timeout
// during shutdown.
var ErrDrainTimeout = errors.New("timed out waiting for in-flight synthesis jobs")

// Synthesizer runs one synthesis request.
type Synthesizer interface {
	Synthesize(ctx context.Context, req synthesis.Request) (*synthesis.Result, error)
}

// NatsWorker listens for synthesis requests on a NATS subject and replies with
// the same JSON payloads as the HTTP endpoint.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	queue          string
	synthesizer    Synthesizer
	timeout        time.Duration
	log            *logger.Logger
	inFlight       sync.WaitGroup
}

// NewNatsWorker creates a worker. Workers sharing queue split the load; an
// empty queue makes every worker receive every request. A zero timeout uses
// ten minutes.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject, queue string,
	synthesizer Synthesizer,
	timeout time.Duration,
	log *logger.Logger,
) *NatsWorker {
	if timeout <= 0 {
		timeout = defaultHandleTimeout
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		queue:          queue,
		synthesizer:    synthesizer,
		timeout:        timeout,
		log:            log,
	}
}

// Run subscribes and blocks until ctx is cancelled. It then drains the
// subscription and returns once every in-flight job has replied, so the
// connection can be closed safely afterwards.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.QueueSubscribe(w.subject, w.queue, func(msg *nats.Msg) {
		w.inFlight.Add(1)
		defer w.inFlight.Done()

		w.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.System("Listening for synthesis requests on subject: %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	err = w.waitForDrain(sub)
	if err != nil {
		return err
	}

	err = w.natsConnection.FlushTimeout(replyFlushTimeout)
	if err != nil {
		return fmt.Errorf("failed to flush replies: %w", err)
	}

	return nil
}

// waitForDrain blocks until the subscription stops delivering and every
// handler has returned, or the job timeout elapses.
func (w *NatsWorker) waitForDrain(sub *nats.Subscription) error {
	deadline := time.NewTimer(w.timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for sub.IsValid() {
		select {
		case <-deadline.C:
			return ErrDrainTimeout
		case <-ticker.C:
		}
	}

	handlersDone := make(chan struct{})

	go func() {
		w.inFlight.Wait()
		close(handlersDone)
	}()

	select {
	case <-handlersDone:
		return nil
	case <-deadline.C:
		return ErrDrainTimeout
	}
}

func (w *NatsWorker) handleMessage(parent context.Context, msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), w.timeout)
	defer cancel()

	var req synthesis.Request

	err := json.Unmarshal(msg.Data, &req)
	if err != nil {
		w.log.Error("Failed to unmarshal synthesis request: %v", err)
		w.reply(msg, synthesis.Failure{
			Error: fmt.Sprintf("invalid request body: %v", err),
			Kind:  synthesis.KindInvalidRequest,
		})

		return
	}

	result, err := w.synthesizer.Synthesize(ctx, req)
	if err != nil {
		w.reply(msg, synthesis.FailureOf(err))

		return
	}

	w.reply(msg, result)
}

func (w *NatsWorker) reply(msg *nats.Msg, payload any) {
	if msg.Reply == "" {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		w.log.Error("Failed to marshal reply: %v", err)

		return
	}

	err = msg.Respond(data)
	if err != nil {
		w.log.Error("Failed to publish reply on %s: %v", msg.Reply, err)
	}
}
