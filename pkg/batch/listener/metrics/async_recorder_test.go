package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/core/metrics"
)

type durationCall struct {
	name     string
	duration time.Duration
	tags     map[string]string
}

// recordingRecorder keeps every call it receives.
type recordingRecorder struct {
	mu        sync.Mutex
	events    []string
	durations []durationCall
}

func (r *recordingRecorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.add("start:" + execution.JobName)
}

func (r *recordingRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	r.add("end:" + execution.JobName)
}

func (r *recordingRecorder) RecordScopeOpened(ctx context.Context, jobName string) {
	r.add("opened:" + jobName)
}

func (r *recordingRecorder) RecordScopeClosed(ctx context.Context, jobName string) {
	r.add("closed:" + jobName)
}

func (r *recordingRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "duration:"+name)
	r.durations = append(r.durations, durationCall{name: name, duration: duration, tags: tags})
}

func (r *recordingRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

var _ metrics.MetricRecorder = (*recordingRecorder)(nil)

func TestAsyncMetricRecorder_ForwardsInOrder(t *testing.T) {
	sink := &recordingRecorder{}
	r := NewAsyncMetricRecorder(16, sink)
	je := model.NewJobExecution(1, "importJob", model.NewJobParameters())
	ctx := context.Background()

	r.RecordScopeOpened(ctx, "importJob")
	r.RecordJobStart(ctx, je)
	r.RecordJobEnd(ctx, je)
	r.RecordScopeClosed(ctx, "importJob")
	r.RecordDuration(ctx, "load", time.Second, nil)
	r.Close()

	assert.Equal(t, []string{
		"opened:importJob",
		"start:importJob",
		"end:importJob",
		"closed:importJob",
		"duration:load",
	}, sink.snapshot())
}

func TestAsyncMetricRecorder_CloseIsIdempotent(t *testing.T) {
	r := NewAsyncMetricRecorder(0, &recordingRecorder{})
	r.Close()
	assert.NotPanics(t, r.Close)
}

func TestMetricsJobListener_RecordsDuration(t *testing.T) {
	sink := &recordingRecorder{}
	target, err := NewMetricsJobListenerBuilder(sink)(nil, map[string]interface{}{
		"metric_name": "import_duration",
		"tags":        map[string]interface{}{"team": "billing"},
	})
	require.NoError(t, err)
	l := target.(*MetricsJobListener)

	je := model.NewJobExecution(2, "importJob", model.NewJobParameters())
	l.BeforeJob(context.Background(), je)
	assert.Empty(t, sink.snapshot(), "nothing is recorded before the job ends")

	je.MarkAsStarted()
	je.MarkAsCompleted()
	l.AfterJob(context.Background(), je)

	require.Len(t, sink.durations, 1)
	call := sink.durations[0]
	assert.Equal(t, "import_duration", call.name)
	assert.Equal(t, map[string]string{"team": "billing", "job": "importJob", "status": "COMPLETED"}, call.tags)
	assert.GreaterOrEqual(t, call.duration, time.Duration(0))
}

func TestMetricsJobListener_DefaultName(t *testing.T) {
	sink := &recordingRecorder{}
	l := NewMetricsJobListener(sink, MetricsProperties{})

	je := model.NewJobExecution(3, "exportJob", model.NewJobParameters())
	l.AfterJob(context.Background(), je)
	assert.Empty(t, sink.snapshot(), "an execution without end time is skipped")

	je.MarkAsFailed(assert.AnError)
	l.AfterJob(context.Background(), je)
	require.Len(t, sink.durations, 1)
	assert.Equal(t, DefaultMetricName, sink.durations[0].name)
	assert.Equal(t, "FAILED", sink.durations[0].tags["status"])
}
