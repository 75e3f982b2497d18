package exception

import (
	"context"
	"errors"
	"fmt"
)

// Names under which the sentinels are registered.
const (
	InvalidTargetError   = "InvalidTargetError"
	ConfigurationError   = "ConfigurationError"
	InvalidArgumentError = "InvalidArgumentError"
	NoContextError       = "NoContextError"
	UnbalancedCloseError = "UnbalancedCloseError"
	InnerScopeOpenError  = "InnerScopeOpenError"
)

var (
	// ErrInvalidTarget: the object offered as a listener satisfies neither capability shape.
	ErrInvalidTarget = errors.New(InvalidTargetError)
	// ErrConfiguration: a marked listener method has a malformed signature.
	ErrConfiguration = errors.New(ConfigurationError)
	// ErrInvalidArgument: a nil JobExecution was passed to register.
	ErrInvalidArgument = errors.New(InvalidArgumentError)
	// ErrNoContext: resolution attempted with no active registration on the calling task.
	ErrNoContext = errors.New(NoContextError)
	// ErrUnbalancedClose: close called more times than register on a task.
	ErrUnbalancedClose = errors.New(UnbalancedCloseError)
	// ErrInnerScopeOpen: close called while tasks forked from the closing scope still hold registrations.
	ErrInnerScopeOpen = errors.New(InnerScopeOpenError)
)

// NewInvalidTargetError creates a BatchError wrapping ErrInvalidTarget.
func NewInvalidTargetError(module, message string) *BatchError {
	return NewBatchError(module, message, ErrInvalidTarget, false, false)
}

// NewConfigurationError creates a BatchError wrapping ErrConfiguration.
func NewConfigurationError(module, message string) *BatchError {
	return NewBatchError(module, message, ErrConfiguration, false, false)
}

// NewConfigurationErrorWithCause creates a BatchError matching both ErrConfiguration and cause.
func NewConfigurationErrorWithCause(module, message string, cause error) *BatchError {
	if cause == nil {
		return NewConfigurationError(module, message)
	}
	return NewBatchError(module, message, fmt.Errorf("%w: %w", ErrConfiguration, cause), false, false)
}

// NewInvalidArgumentError creates a BatchError wrapping ErrInvalidArgument.
func NewInvalidArgumentError(module, message string) *BatchError {
	return NewBatchError(module, message, ErrInvalidArgument, false, false)
}

// NewNoContextError creates a BatchError wrapping ErrNoContext.
func NewNoContextError(module, message string) *BatchError {
	return NewBatchError(module, message, ErrNoContext, false, false)
}

// NewUnbalancedCloseError creates a BatchError wrapping ErrUnbalancedClose.
func NewUnbalancedCloseError(module, message string) *BatchError {
	return NewBatchError(module, message, ErrUnbalancedClose, false, false)
}

// NewInnerScopeOpenError creates a BatchError wrapping ErrInnerScopeOpen.
func NewInnerScopeOpenError(module, message string) *BatchError {
	return NewBatchError(module, message, ErrInnerScopeOpen, false, false)
}

func init() {
	RegisterErrorType(InvalidTargetError, ErrInvalidTarget)
	RegisterErrorType(ConfigurationError, ErrConfiguration)
	RegisterErrorType(InvalidArgumentError, ErrInvalidArgument)
	RegisterErrorType(NoContextError, ErrNoContext)
	RegisterErrorType(UnbalancedCloseError, ErrUnbalancedClose)
	RegisterErrorType(InnerScopeOpenError, ErrInnerScopeOpen)

	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
}
