package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// ErrModel marks a turn failure caused by the model provider, so callers can
// report it as a backend problem rather than an internal one.
var ErrModel = errors.New("model provider error")

// callModel waits on the shared rate limiter and makes exactly one model
// call. Model failures are surfaced, never retried; degraded search backends
// are the gateway's problem, and re-running a partially streamed step would
// duplicate output the consumer already saw.
func (a *Agent) callModel(ctx context.Context, opts []ai.GenerateOption) (*ai.ModelResponse, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	resp, err := a.generate(ctx, opts...)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrModel, err)
	}
	return resp, nil
}
