// Package metrics provides the asynchronous metric recorder and a job listener
// that records job durations.
package metrics

import (
	"context"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/core/metrics"
)

// DefaultMetricName is the duration name used when no metric_name property is set.
const DefaultMetricName = "job_execution"

// MetricsProperties are bound from surfin.listener_properties.metricsJobListener.
type MetricsProperties struct {
	MetricName string            `yaml:"metric_name"`
	Tags       map[string]string `yaml:"tags"`
}

// MetricsJobListener records the duration of each finished job execution.
type MetricsJobListener struct {
	recorder   metrics.MetricRecorder
	properties MetricsProperties
}

func NewMetricsJobListener(recorder metrics.MetricRecorder, properties MetricsProperties) *MetricsJobListener {
	if properties.MetricName == "" {
		properties.MetricName = DefaultMetricName
	}
	return &MetricsJobListener{recorder: recorder, properties: properties}
}

func (l *MetricsJobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {}

func (l *MetricsJobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	if jobExecution.EndTime == nil {
		return
	}
	tags := make(map[string]string, len(l.properties.Tags)+2)
	for k, v := range l.properties.Tags {
		tags[k] = v
	}
	tags["job"] = jobExecution.JobName
	tags["status"] = jobExecution.GetStatus().String()
	l.recorder.RecordDuration(ctx, l.properties.MetricName, jobExecution.EndTime.Sub(jobExecution.StartTime), tags)
}
