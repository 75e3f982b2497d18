// Package expression resolves late-binding expressions such as
// #{jobParameters['input']} against a JobExecution.
package expression

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	port "github.com/forlulz/spring-batch/pkg/batch/core/application/port"
	model "github.com/forlulz/spring-batch/pkg/batch/core/domain/model"
	"github.com/forlulz/spring-batch/pkg/batch/core/scope"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

// DefaultExpressionResolver resolves #{...} expressions from job parameters and the job execution context.
type DefaultExpressionResolver struct {
	manager *scope.JobSynchronizationManager
}

// NewDefaultExpressionResolver creates a resolver whose ResolveCurrent looks up the
// calling task's registration in manager.
func NewDefaultExpressionResolver(manager *scope.JobSynchronizationManager) port.ExpressionResolver {
	if manager == nil {
		manager = scope.DefaultManager()
	}
	return &DefaultExpressionResolver{manager: manager}
}

// Captures the form #{...}
var expressionPattern = regexp.MustCompile(`\#\{(.+?)\}`)

var (
	jobParamsPattern  = regexp.MustCompile(`^jobParameters\['(.+?)'\]$`)
	jobExecCtxPattern = regexp.MustCompile(`^jobExecutionContext\['(.+?)'\]$`)
)

// Resolve replaces every #{...} in expression. Unknown expressions and missing keys
// are left as written.
func (r *DefaultExpressionResolver) Resolve(ctx context.Context, expression string, jobExecution *model.JobExecution) (string, error) {
	if !expressionPattern.MatchString(expression) {
		return expression, nil
	}

	resolved := expressionPattern.ReplaceAllStringFunc(expression, func(match string) string {
		inner := strings.TrimSpace(match[2 : len(match)-1])

		if jobExecution == nil {
			logger.Warnf("ExpressionResolver: Skipping resolution of dynamic expression '%s' because JobExecution is nil.", inner)
			return match
		}
		if val, err := resolveJobParameters(inner, jobExecution); err == nil {
			return val
		}
		if val, err := resolveJobExecutionContext(inner, jobExecution); err == nil {
			return val
		}
		if val, ok := resolveJobProperty(inner, jobExecution); ok {
			return val
		}

		logger.Warnf("ExpressionResolver: Unknown expression or key not found: %s", inner)
		return match
	})

	return resolved, nil
}

// ResolveCurrent resolves expression against the execution registered on the calling task.
func (r *DefaultExpressionResolver) ResolveCurrent(ctx context.Context, expression string) (string, error) {
	jobCtx, err := r.manager.GetContext(ctx)
	if err != nil {
		return "", err
	}
	return r.Resolve(ctx, expression, jobCtx.JobExecution())
}

func resolveJobParameters(expr string, jobExecution *model.JobExecution) (string, error) {
	matches := jobParamsPattern.FindStringSubmatch(expr)
	if len(matches) != 2 {
		return "", fmt.Errorf("pattern mismatch")
	}
	key := matches[1]

	if val, ok := jobExecution.Parameters.Params[key]; ok {
		return fmt.Sprintf("%v", val), nil
	}
	return "", fmt.Errorf("key '%s' not found in JobParameters", key)
}

func resolveJobExecutionContext(expr string, jobExecution *model.JobExecution) (string, error) {
	matches := jobExecCtxPattern.FindStringSubmatch(expr)
	if len(matches) != 2 {
		return "", fmt.Errorf("pattern mismatch")
	}
	key := matches[1]

	if jobExecution.ExecutionContext != nil {
		if val, ok := jobExecution.ExecutionContext.Get(key); ok {
			return fmt.Sprintf("%v", val), nil
		}
	}
	return "", fmt.Errorf("key '%s' not found in JobExecutionContext", key)
}

// resolveJobProperty handles jobName and jobExecutionId.
func resolveJobProperty(expr string, jobExecution *model.JobExecution) (string, bool) {
	switch expr {
	case "jobName":
		return jobExecution.JobName, true
	case "jobExecutionId":
		return fmt.Sprintf("%d", jobExecution.ID), true
	}
	return "", false
}
