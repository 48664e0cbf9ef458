package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics(t *testing.T) {
	t.Run("all recorders are safe to call", func(t *testing.T) {
		m := NoopMetrics{}
		ctx := context.Background()

		assert.NotPanics(t, func() {
			m.RecordDispatch(ctx, "chat", true, time.Second)
			m.RecordTraversal(ctx, "greet", "completed", time.Second)
			m.RecordNodeRun(ctx, "greet", "reply", time.Second, errors.New("x"))
			m.RecordSessionExpired(ctx, "greet")
		})
	})
}

func TestNoopSpanManager(t *testing.T) {
	t.Run("spans are inert and context passes through", func(t *testing.T) {
		m := NoopSpanManager{}
		ctx := context.Background()

		outCtx, span := m.StartDispatchSpan(ctx, "evt-1", "chat")
		assert.Equal(t, ctx, outCtx)
		assert.NotNil(t, span)

		_, tspan := m.StartTraversalSpan(ctx, "greet", "run-1")
		_, nspan := m.StartNodeSpan(ctx, "reply")

		assert.NotPanics(t, func() {
			m.EndSpanWithError(span, nil)
			m.EndSpanWithError(tspan, errors.New("boom"))
			m.EndSpanWithError(nspan, nil)
			m.AddSpanEvent(ctx, "noted")
		})
	})
}
