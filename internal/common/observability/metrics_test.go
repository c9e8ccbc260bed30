package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopObservability(t *testing.T) {
	o := NewNoop()

	assert.NotPanics(t, func() {
		o.RecordJobProcessed(context.Background(), "completed")
		o.RecordJobDuration(context.Background(), time.Second, "completed")
		_, span := o.Tracer().Start(context.Background(), "exam.process")
		span.End()
		o.Shutdown()
	})
}

func TestNilObservabilityIsSafe(t *testing.T) {
	var o *Observability
	assert.NotPanics(t, func() {
		o.RecordJobProcessed(context.Background(), "failed")
		require.NotNil(t, o.Tracer())
		o.Shutdown()
	})
}
