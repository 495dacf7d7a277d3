package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the core.
type ErrorCode string

// Handler-facing error codes. Handlers may return *Error with one of these
// codes and the recovery classifier maps it to a failure category.
const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrValidation         ErrorCode = "VALIDATION"
	ErrAuthentication     ErrorCode = "AUTHENTICATION"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrForbidden          ErrorCode = "FORBIDDEN"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrDependency         ErrorCode = "DEPENDENCY"
	ErrUpstreamError      ErrorCode = "UPSTREAM_ERROR"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
)

// Structural error codes
const (
	ErrCodeUnregisteredTask  ErrorCode = "UNREGISTERED_TASK"
	ErrCodeInvalidMetric     ErrorCode = "INVALID_METRIC"
	ErrCodeInvalidConfidence ErrorCode = "INVALID_CONFIDENCE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Retryable  bool      `json:"retryable"`
	Dependency string    `json:"dependency,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithDependency names the dependency that produced the error.
func (e *Error) WithDependency(name string) *Error {
	e.Dependency = name
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// =============================================================================
// 结构性错误
// =============================================================================

// 哨兵错误，供 errors.Is 判断
var (
	ErrUnregisteredTask  = errors.New("unregistered task")
	ErrInvalidMetric     = errors.New("invalid metric")
	ErrInvalidConfidence = errors.New("invalid confidence")
)

// UnregisteredTaskError 任务名没有注册处理器
type UnregisteredTaskError struct {
	TaskName string
}

func (e *UnregisteredTaskError) Error() string {
	return fmt.Sprintf("[%s] no handler registered for task %q", ErrCodeUnregisteredTask, e.TaskName)
}

// Is 让 errors.Is(err, ErrUnregisteredTask) 成立
func (e *UnregisteredTaskError) Is(target error) bool { return target == ErrUnregisteredTask }

// InvalidMetricError 评分分量不在 [0,1] 区间
type InvalidMetricError struct {
	Component string
	Value     float64
}

func (e *InvalidMetricError) Error() string {
	return fmt.Sprintf("[%s] metric %s=%v outside [0,1]", ErrCodeInvalidMetric, e.Component, e.Value)
}

func (e *InvalidMetricError) Is(target error) bool { return target == ErrInvalidMetric }

// InvalidConfidenceError 决策置信度不在 [0,1] 区间
type InvalidConfidenceError struct {
	Confidence float64
}

func (e *InvalidConfidenceError) Error() string {
	return fmt.Sprintf("[%s] confidence %v outside [0,1]", ErrCodeInvalidConfidence, e.Confidence)
}

func (e *InvalidConfidenceError) Is(target error) bool { return target == ErrInvalidConfidence }
