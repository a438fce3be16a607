package observability

import (
	"context"
	"testing"
	"time"

	"inspection-sync/internal/common/logger"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	obs := New("inspection-sync", logger.NewNoOpLogger(),
		WithRegisterer(promclient.NewRegistry()),
		WithSpanProcessor(recorder),
	)
	defer obs.Shutdown()

	ctx, parent := obs.StartSpan(context.Background(), "sync.run")
	_, child := obs.StartSpan(ctx, "sync.fetch", attribute.Int("pages", 2))
	child.End()
	parent.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "sync.fetch", spans[0].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestRecordRun_ExportsToRegistry(t *testing.T) {
	reg := promclient.NewRegistry()
	obs := New("inspection-sync", logger.NewNoOpLogger(), WithRegisterer(reg))
	defer obs.Shutdown()

	obs.RecordRun(context.Background(), 1500*time.Millisecond, "ok")

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "sync_runs_total")
	assert.Contains(t, names, "sync_run_duration_milliseconds")
	for _, name := range names {
		assert.NotContains(t, name, ".")
	}
}
