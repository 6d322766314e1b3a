// ABOUTME: Tests for the continuation driver
// ABOUTME: Covers budget exhaustion, token propagation, and invocation failures

package claude

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedInvoker struct {
	responses []*MessageResponse
	errs      []error

	calls      int
	containers []string
	turnCounts []int
}

func (s *scriptedInvoker) CreateMessage(_ context.Context, turns []Turn, containerID, _ string) (*MessageResponse, error) {
	i := s.calls
	s.calls++
	s.containers = append(s.containers, containerID)
	s.turnCounts = append(s.turnCounts, len(turns))

	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.responses[i], nil
}

func paused(container string) *MessageResponse {
	return &MessageResponse{
		Content:    []ContentBlock{TextBlock("trabajando...")},
		StopReason: StopPauseTurn,
		Container:  &Container{ID: container},
	}
}

func completed(container string) *MessageResponse {
	return &MessageResponse{
		Content:    []ContentBlock{TextBlock("listo")},
		StopReason: StopEndTurn,
		Container:  &Container{ID: container},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDriverExchange(t *testing.T) {
	t.Run("completes on first response", func(t *testing.T) {
		inv := &scriptedInvoker{responses: []*MessageResponse{completed("c1")}}
		d := NewDriver(inv, 10, 0, testLogger())

		res, err := d.Exchange(context.Background(), []Turn{UserText("hola")}, "", "")
		require.NoError(t, err)
		assert.Equal(t, 1, res.Invocations)
		assert.Equal(t, "c1", res.ContainerID)
		assert.Equal(t, StopEndTurn, res.Response.StopReason)
	})

	t.Run("paused then complete takes exactly two invocations", func(t *testing.T) {
		inv := &scriptedInvoker{responses: []*MessageResponse{paused("c1"), completed("c2")}}
		d := NewDriver(inv, 10, 0, testLogger())

		res, err := d.Exchange(context.Background(), []Turn{UserText("hola")}, "", "")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Invocations)
		assert.Equal(t, "c2", res.ContainerID)
	})

	t.Run("paused content is fed back as an assistant turn", func(t *testing.T) {
		inv := &scriptedInvoker{responses: []*MessageResponse{paused("c1"), completed("c1")}}
		d := NewDriver(inv, 10, 0, testLogger())

		_, err := d.Exchange(context.Background(), []Turn{UserText("hola")}, "", "")
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, inv.turnCounts)
	})

	t.Run("token from paused response is carried forward immediately", func(t *testing.T) {
		inv := &scriptedInvoker{responses: []*MessageResponse{paused("c1"), completed("c1")}}
		d := NewDriver(inv, 10, 0, testLogger())

		_, err := d.Exchange(context.Background(), []Turn{UserText("hola")}, "prev", "")
		require.NoError(t, err)
		assert.Equal(t, []string{"prev", "c1"}, inv.containers)
	})

	t.Run("missing token keeps the last seen one", func(t *testing.T) {
		final := &MessageResponse{Content: []ContentBlock{TextBlock("ok")}, StopReason: StopEndTurn}
		inv := &scriptedInvoker{responses: []*MessageResponse{paused("c1"), final}}
		d := NewDriver(inv, 10, 0, testLogger())

		res, err := d.Exchange(context.Background(), []Turn{UserText("hola")}, "", "")
		require.NoError(t, err)
		assert.Equal(t, "c1", res.ContainerID)
	})

	t.Run("exhausts after exactly the budget", func(t *testing.T) {
		var responses []*MessageResponse
		for i := 0; i < 11; i++ {
			responses = append(responses, paused("c"))
		}
		inv := &scriptedInvoker{responses: responses}
		d := NewDriver(inv, 10, 0, testLogger())

		_, err := d.Exchange(context.Background(), []Turn{UserText("hola")}, "", "")
		assert.ErrorIs(t, err, ErrContinuationExhausted)
		assert.Equal(t, 10, inv.calls)
	})

	t.Run("invocation failure aborts with the round number", func(t *testing.T) {
		boom := errors.New("service unavailable")
		inv := &scriptedInvoker{
			responses: []*MessageResponse{paused("c1"), nil},
			errs:      []error{nil, boom},
		}
		d := NewDriver(inv, 10, 0, testLogger())

		_, err := d.Exchange(context.Background(), []Turn{UserText("hola")}, "", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrContinuationExhausted)
		assert.Contains(t, err.Error(), "invocation 2")
	})

	t.Run("zero budget falls back to default", func(t *testing.T) {
		d := NewDriver(&scriptedInvoker{}, 0, 0, testLogger())
		assert.Equal(t, DefaultMaxContinuations, d.maxContinuations)
	})
}
