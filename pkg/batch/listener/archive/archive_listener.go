// Package archive writes each finished job execution as a Parquet file to object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	storageAdapter "github.com/forlulz/spring-batch/pkg/batch/adapter/storage"
	port "github.com/forlulz/spring-batch/pkg/batch/core/application/port"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/serialization"
)

const (
	moduleName         = "archive_listener"
	defaultPrefix      = "job-executions"
	defaultCompression = "SNAPPY"
	uploadTimeout      = time.Minute
	parquetContentType = "application/vnd.apache.parquet"
)

// ExecutionRecord is the Parquet row written per execution. Times are epoch milliseconds.
type ExecutionRecord struct {
	ExecutionID int64  `parquet:"name=execution_id, type=INT64"`
	JobName     string `parquet:"name=job_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status      string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	ExitStatus  string `parquet:"name=exit_status, type=BYTE_ARRAY, convertedtype=UTF8"`
	StartTime   int64  `parquet:"name=start_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	EndTime     int64  `parquet:"name=end_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	DurationMs  int64  `parquet:"name=duration_ms, type=INT64"`
	Parameters  string `parquet:"name=parameters, type=BYTE_ARRAY, convertedtype=UTF8"`
	Failures    string `parquet:"name=failures, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ArchiveProperties are bound from surfin.listener_properties.executionArchiveListener.
type ArchiveProperties struct {
	// Storage names the surfin.adapter.storage connection to upload to.
	Storage string `yaml:"storage"`
	// Bucket overrides the connection's bucket_name.
	Bucket string `yaml:"bucket"`
	// Prefix is prepended to object names. Defaults to "job-executions".
	// It may hold #{...} expressions, resolved per execution.
	Prefix string `yaml:"prefix"`
	// Compression is SNAPPY (default), GZIP or NONE.
	Compression string `yaml:"compression"`
}

// NewRecord converts execution into its archived form. Sensitive parameters are masked.
func NewRecord(execution *model.JobExecution) (ExecutionRecord, error) {
	params, err := serialization.MarshalJobParameters(execution.Parameters.Params)
	if err != nil {
		return ExecutionRecord{}, err
	}
	rec := ExecutionRecord{
		ExecutionID: execution.ID,
		JobName:     execution.JobName,
		Status:      string(execution.GetStatus()),
		ExitStatus:  string(execution.GetExitStatus()),
		StartTime:   execution.StartTime.UnixMilli(),
		Parameters:  string(params),
		Failures:    strings.Join(execution.GetFailures(), "\n"),
	}
	if execution.EndTime != nil {
		rec.EndTime = execution.EndTime.UnixMilli()
		rec.DurationMs = execution.EndTime.Sub(execution.StartTime).Milliseconds()
	}
	return rec, nil
}

// ExecutionArchiveListener uploads one Parquet object per finished execution.
// Failures are logged; they never change the execution's outcome.
type ExecutionArchiveListener struct {
	conn        storageAdapter.StorageConnection
	bucket      string
	prefix      string
	compression parquet.CompressionCodec
	expressions port.ExpressionResolver
	now         func() time.Time
}

// NewExecutionArchiveListener creates a listener uploading through conn.
func NewExecutionArchiveListener(conn storageAdapter.StorageConnection, props ArchiveProperties) (*ExecutionArchiveListener, error) {
	if conn == nil {
		return nil, exception.NewInvalidArgumentError(moduleName, "storage connection must not be nil")
	}
	if props.Compression == "" {
		props.Compression = defaultCompression
	}
	codec, err := compressionCodec(props.Compression)
	if err != nil {
		return nil, exception.NewConfigurationErrorWithCause(moduleName,
			fmt.Sprintf("invalid compression '%s'", props.Compression), err)
	}
	if props.Prefix == "" {
		props.Prefix = defaultPrefix
	}
	return &ExecutionArchiveListener{
		conn:        conn,
		bucket:      props.Bucket,
		prefix:      strings.Trim(props.Prefix, "/"),
		compression: codec,
		now:         time.Now,
	}, nil
}

// WithExpressionResolver makes the listener resolve #{...} expressions in its prefix.
func (l *ExecutionArchiveListener) WithExpressionResolver(resolver port.ExpressionResolver) *ExecutionArchiveListener {
	l.expressions = resolver
	return l
}

func (l *ExecutionArchiveListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {}

// AfterJob archives jobExecution. The upload outlives cancellation of ctx, bounded by a timeout.
func (l *ExecutionArchiveListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uploadTimeout)
	defer cancel()

	if _, err := l.Archive(uploadCtx, jobExecution); err != nil {
		logger.Errorf("ExecutionArchiveListener: failed to archive %s: %v", jobExecution, err)
	}
}

// Archive writes jobExecution and returns the object name it was stored under.
func (l *ExecutionArchiveListener) Archive(ctx context.Context, jobExecution *model.JobExecution) (string, error) {
	rec, err := NewRecord(jobExecution)
	if err != nil {
		return "", fmt.Errorf("failed to build record: %w", err)
	}
	data, err := l.encode(rec)
	if err != nil {
		return "", err
	}
	objectName := l.objectName(ctx, jobExecution)
	if err := l.conn.Upload(ctx, l.bucket, objectName, bytes.NewReader(data), parquetContentType); err != nil {
		return "", err
	}
	logger.Infof("Archived %s to '%s' (%d bytes) via storage '%s'.", jobExecution, objectName, len(data), l.conn.Name())
	return objectName, nil
}

// objectName is <prefix>/dt=YYYY-MM-DD/<job>_<id>.parquet, dated by archive time.
func (l *ExecutionArchiveListener) objectName(ctx context.Context, jobExecution *model.JobExecution) string {
	jobName := jobExecution.JobName
	if jobName == "" {
		jobName = "job"
	}
	file := fmt.Sprintf("%s_%d.parquet", strings.ReplaceAll(jobName, "/", "_"), jobExecution.ID)
	return path.Join(l.resolvePrefix(ctx, jobExecution), "dt="+l.now().UTC().Format("2006-01-02"), file)
}

// resolvePrefix keeps the configured prefix when it holds no expressions or
// resolution fails.
func (l *ExecutionArchiveListener) resolvePrefix(ctx context.Context, jobExecution *model.JobExecution) string {
	if l.expressions == nil || !strings.Contains(l.prefix, "#{") {
		return l.prefix
	}
	resolved, err := l.expressions.Resolve(ctx, l.prefix, jobExecution)
	if err != nil {
		logger.Warnf("ExecutionArchiveListener: failed to resolve prefix '%s': %v", l.prefix, err)
		return l.prefix
	}
	return strings.Trim(resolved, "/")
}

func (l *ExecutionArchiveListener) encode(rec ExecutionRecord) (data []byte, err error) {
	var buf bytes.Buffer
	pw, err := writer.NewParquetWriterFromWriter(&buf, new(ExecutionRecord), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = l.compression

	// The parquet library reports some schema problems by panicking.
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("parquet writer panicked: %v", r)
		}
	}()
	if err := pw.Write(rec); err != nil {
		return nil, fmt.Errorf("failed to write parquet record: %w", err)
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return buf.Bytes(), nil
}

func compressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "UNCOMPRESSED":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return parquet.CompressionCodec_UNCOMPRESSED, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}

var _ port.JobExecutionListener = (*ExecutionArchiveListener)(nil)
