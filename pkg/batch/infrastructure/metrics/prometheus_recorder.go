package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	metrics "github.com/forlulz/spring-batch/pkg/batch/core/metrics"
	logger "github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	jobStartedCounter  *prometheus.CounterVec
	jobDurationSeconds *prometheus.HistogramVec
	jobStatusCounter   *prometheus.CounterVec

	activeScopes   *prometheus.GaugeVec
	scopeOpenTotal *prometheus.CounterVec

	operationDurationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a recorder with its own registry. Go runtime and
// process collectors are registered alongside the batch metrics.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		jobStartedCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_job_started_total",
			Help: "Total number of batch job executions started.",
		}, []string{"job_name"}),
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_job_duration_seconds",
			Help:    "Duration of batch job executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "status", "exit_status"}),
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_job_status_total",
			Help: "Total number of batch job executions by final status.",
		}, []string{"job_name", "status"}),
		activeScopes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "batch_job_scope_active",
			Help: "Job registrations currently open across all tasks.",
		}, []string{"job_name"}),
		scopeOpenTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_job_scope_opened_total",
			Help: "Total number of job registrations.",
		}, []string{"job_name"}),
		operationDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_operation_duration_seconds",
			Help:    "Duration of named batch operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name", "job_name", "status"}),
	}
	registry.MustRegister(
		r.jobStartedCounter,
		r.jobDurationSeconds,
		r.jobStatusCounter,
		r.activeScopes,
		r.scopeOpenTotal,
		r.operationDurationSeconds,
	)
	logger.Infof("Metrics: Initializing Prometheus Metric Recorder.")
	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordJobStart records the start of a JobExecution.
func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.jobStartedCounter.WithLabelValues(execution.JobName).Inc()
}

// RecordJobEnd records the final status and duration of a JobExecution.
func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	status := execution.GetStatus().String()
	r.jobStatusCounter.WithLabelValues(execution.JobName, status).Inc()
	if execution.EndTime == nil {
		return
	}
	duration := execution.EndTime.Sub(execution.StartTime).Seconds()
	r.jobDurationSeconds.WithLabelValues(execution.JobName, status, execution.GetExitStatus().String()).Observe(duration)
	logger.Debugf("Metrics: Job '%s' ended. Duration: %.3fs", execution.JobName, duration)
}

// RecordScopeOpened records a registration of jobName's execution.
func (r *PrometheusRecorder) RecordScopeOpened(ctx context.Context, jobName string) {
	r.activeScopes.WithLabelValues(jobName).Inc()
	r.scopeOpenTotal.WithLabelValues(jobName).Inc()
}

// RecordScopeClosed records the end of a registration of jobName's execution.
func (r *PrometheusRecorder) RecordScopeClosed(ctx context.Context, jobName string) {
	r.activeScopes.WithLabelValues(jobName).Dec()
}

// RecordDuration records the execution time of a named operation. The "job" and
// "status" tags become labels; other tags are ignored.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDurationSeconds.WithLabelValues(name, tags["job"], tags["status"]).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
