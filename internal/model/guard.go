package model

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/voice-clone-service/internal/core"
)

// Guard owns the process-wide model handle. At most maxConcurrent calls reach
// the model at once; with the default of one every call is serialized, which
// is required for models that are not safe for concurrent inference.
type Guard struct {
	model   core.SpeechModel
	slots   chan struct{}
	timeout time.Duration
}

// NewGuard wraps model. A timeout of zero leaves calls bounded only by the
// caller's context.
func NewGuard(model core.SpeechModel, maxConcurrent int, timeout time.Duration) *Guard {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	return &Guard{
		model:   model,
		slots:   make(chan struct{}, maxConcurrent),
		timeout: timeout,
	}
}

// ModelID returns the wrapped model's identifier.
func (g *Guard) ModelID() string {
	return g.model.ModelID()
}

// InFlight returns the number of calls currently holding a slot.
func (g *Guard) InFlight() int {
	return len(g.slots)
}

// Synthesize waits for a free slot, then calls the model under the timeout.
func (g *Guard) Synthesize(ctx context.Context, job core.SynthesisJob) error {
	release, err := g.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if g.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	return g.model.Synthesize(ctx, job)
}

// Provision runs the model's provisioning under the same slot discipline.
func (g *Guard) Provision(ctx context.Context) error {
	release, err := g.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	return g.model.Provision(ctx)
}

func (g *Guard) acquire(ctx context.Context) (func(), error) {
	select {
	case g.slots <- struct{}{}:
		return func() { <-g.slots }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for model slot: %w", ctx.Err())
	}
}
