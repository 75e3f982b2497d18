// Package logging provides a job listener that writes job boundaries to the framework log.
package logging

import (
	corelistener "github.com/forlulz/spring-batch/pkg/batch/core/listener"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	logger "github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// LoggingProperties are bound from surfin.listener_properties.loggingJobListener.
type LoggingProperties struct {
	IncludeParameters bool `yaml:"include_parameters"`
	IncludeContext    bool `yaml:"include_context"`
}

// LoggingJobListener logs the start and end of every job execution.
type LoggingJobListener struct {
	corelistener.BeforeJob `listener:"LogStart"`
	corelistener.AfterJob  `listener:"LogEnd"`

	properties LoggingProperties
}

func NewLoggingJobListener(properties LoggingProperties) *LoggingJobListener {
	return &LoggingJobListener{properties: properties}
}

func (l *LoggingJobListener) LogStart(jobExecution *model.JobExecution) {
	if l.properties.IncludeParameters {
		logger.Infof("JobExecutionListener: BeforeJob - JobName: %s, ID: %d, Params: %s", jobExecution.JobName, jobExecution.ID, jobExecution.Parameters.String())
		return
	}
	logger.Infof("JobExecutionListener: BeforeJob - JobName: %s, ID: %d", jobExecution.JobName, jobExecution.ID)
}

func (l *LoggingJobListener) LogEnd(jobExecution *model.JobExecution) {
	logger.Infof("JobExecutionListener: AfterJob - JobName: %s, Status: %s, ExitStatus: %s", jobExecution.JobName, jobExecution.GetStatus(), jobExecution.GetExitStatus())
	if l.properties.IncludeContext && jobExecution.ExecutionContext != nil {
		logger.Infof("JobExecutionListener: AfterJob - ExecutionContext: %s", jobExecution.ExecutionContext.String())
	}
}
