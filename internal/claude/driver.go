// ABOUTME: Continuation state machine driving paused turns to completion
// ABOUTME: Bounds the pause/resume loop and propagates the latest context token

package claude

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultMaxContinuations bounds how many invocations one exchange may spend
// before it is reported as exhausted.
const DefaultMaxContinuations = 10

// ErrContinuationExhausted means the invocation budget was spent without the
// service completing its turn. The service was reachable; it just did not
// converge. Reported distinctly from a hard invocation failure.
var ErrContinuationExhausted = errors.New("continuation budget exhausted")

// Invoker performs one invocation against the AI service.
type Invoker interface {
	CreateMessage(ctx context.Context, turns []Turn, containerID, systemExtra string) (*MessageResponse, error)
}

// ExchangeResult is the terminal outcome of a completed exchange.
type ExchangeResult struct {
	// Response is the final (non-paused) payload.
	Response *MessageResponse
	// ContainerID is the context token accompanying the most recent response,
	// the value a session must persist for the next exchange.
	ContainerID string
	// Invocations counts how many service calls the exchange consumed.
	Invocations int
}

// Driver runs one logical exchange: it invokes the service, feeds paused
// responses back as assistant turns, and loops until the turn completes or
// the invocation budget runs out.
type Driver struct {
	invoker          Invoker
	maxContinuations int
	timeout          time.Duration
	logger           *slog.Logger
}

// NewDriver creates a Driver. maxContinuations <= 0 falls back to the
// default budget; timeout <= 0 disables the per-invocation wall clock.
func NewDriver(invoker Invoker, maxContinuations int, timeout time.Duration, logger *slog.Logger) *Driver {
	if maxContinuations <= 0 {
		maxContinuations = DefaultMaxContinuations
	}
	return &Driver{
		invoker:          invoker,
		maxContinuations: maxContinuations,
		timeout:          timeout,
		logger:           logger.With("component", "driver"),
	}
}

// Exchange drives one user turn to a settled outcome.
//
// Each round inspects the stop indicator: a paused response is appended to
// the turn sequence as an assistant turn and the exchange re-invokes with
// the token from that response carried forward immediately. A completed
// response ends the loop. Spending the whole budget on paused responses
// returns ErrContinuationExhausted; any invocation error (including a
// per-invocation timeout) aborts the loop without partial commitment.
func (d *Driver) Exchange(ctx context.Context, turns []Turn, containerID, systemExtra string) (*ExchangeResult, error) {
	for round := 1; round <= d.maxContinuations; round++ {
		resp, err := d.invoke(ctx, turns, containerID, systemExtra)
		if err != nil {
			return nil, fmt.Errorf("invocation %d: %w", round, err)
		}

		if id := resp.ContainerID(); id != "" {
			containerID = id
		}

		if !resp.Paused() {
			return &ExchangeResult{
				Response:    resp,
				ContainerID: containerID,
				Invocations: round,
			}, nil
		}

		d.logger.Debug("turn paused, re-invoking",
			"round", round,
			"container_id", containerID,
		)
		turns = append(turns, AssistantBlocks(resp.Content))
	}

	return nil, ErrContinuationExhausted
}

func (d *Driver) invoke(ctx context.Context, turns []Turn, containerID, systemExtra string) (*MessageResponse, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return d.invoker.CreateMessage(ctx, turns, containerID, systemExtra)
}
