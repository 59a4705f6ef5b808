// Package errors provides the structured error types used across estatico.
//
// Every failure surfaced by the build is a *BuildError carrying one of four
// kinds: configuration, transform, io or process. The kind decides how the
// failure is treated: configuration errors are always fatal at startup, the
// other kinds abort a one-shot build but are only logged by the watch loop.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeConfig    ErrorType = "config"
	ErrorTypeTransform ErrorType = "transform"
	ErrorTypeIO        ErrorType = "io"
	ErrorTypeProcess   ErrorType = "process"
	ErrorTypeInternal  ErrorType = "internal"
)

// BuildError is a structured error type with task and file context.
type BuildError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Context  map[string]interface{}
	Task     string
	FilePath string
	Line     int
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Task != "" {
		parts = append(parts, "task:"+e.Task)
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on type and code.
func (e *BuildError) Is(target error) bool {
	var t *BuildError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *BuildError) WithContext(key string, value interface{}) *BuildError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *BuildError) WithLocation(filePath string, line int) *BuildError {
	e.FilePath = filePath
	e.Line = line

	return e
}

// WithTask records the task the error originated in.
func (e *BuildError) WithTask(task string) *BuildError {
	e.Task = task

	return e
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *BuildError {
	return &BuildError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewTransformError creates an error for a failed pipeline stage.
func NewTransformError(code, message string, cause error) *BuildError {
	return &BuildError{
		Type:    ErrorTypeTransform,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *BuildError {
	return &BuildError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewProcessError creates an error for an external helper that failed.
func NewProcessError(code, message string, cause error) *BuildError {
	return &BuildError{
		Type:    ErrorTypeProcess,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *BuildError {
	return &BuildError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// TypeOf returns the kind of the first BuildError in err's chain, or
// ErrorTypeInternal when err carries none.
func TypeOf(err error) ErrorType {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Type
	}

	return ErrorTypeInternal
}

// IsConfigError checks if an error is a configuration error.
func IsConfigError(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeConfig
}

// IsTransformError checks if an error came from a pipeline stage.
func IsTransformError(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeTransform
}

// IsIOError checks if an error is an I/O error.
func IsIOError(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeIO
}

// IsProcessError checks if an error came from an external helper process.
func IsProcessError(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeProcess
}

// ErrorHandler logs errors at a boundary that must survive them, such as
// the watch loop.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err according to its kind.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var be *BuildError
	if !errors.As(err, &be) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch be.Type {
	case ErrorTypeTransform, ErrorTypeIO, ErrorTypeProcess:
		h.logger.Warn(ctx, err, "Task failed",
			"type", be.Type,
			"code", be.Code,
			"task", be.Task,
			"file", be.FilePath)
	default:
		h.logger.Error(ctx, err, "Error occurred",
			"type", be.Type,
			"code", be.Code,
			"task", be.Task)
	}
}

// Common error codes.
const (
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeUnknownKey      = "ERR_CONFIG_UNKNOWN_KEY"
	ErrCodeInvalidGlob     = "ERR_INVALID_GLOB"
	ErrCodeInvalidPath     = "ERR_INVALID_PATH"
	ErrCodeDependencyCycle = "ERR_DEPENDENCY_CYCLE"
	ErrCodeUnknownTask     = "ERR_UNKNOWN_TASK"
	ErrCodeDuplicateTask   = "ERR_DUPLICATE_TASK"
	ErrCodeLintFailed      = "ERR_LINT_FAILED"
	ErrCodeCompileFailed   = "ERR_COMPILE_FAILED"
	ErrCodeTransformFailed = "ERR_TRANSFORM_FAILED"
	ErrCodeReadFailed      = "ERR_READ_FAILED"
	ErrCodeWriteFailed     = "ERR_WRITE_FAILED"
	ErrCodeProcessFailed   = "ERR_PROCESS_FAILED"
	ErrCodeProcessMissing  = "ERR_PROCESS_NOT_FOUND"
	ErrCodeInvalidArgument = "ERR_INVALID_ARGUMENT"
	ErrCodeListenFailed    = "ERR_LISTEN_FAILED"
	ErrCodeInternalError   = "ERR_INTERNAL"
)

// ErrDependencyCycle creates the error returned when task dependencies form
// a cycle. path lists the tasks on the cycle, first and last being equal.
func ErrDependencyCycle(path []string) *BuildError {
	return NewConfigError(
		ErrCodeDependencyCycle,
		"dependency cycle: "+strings.Join(path, " -> "),
	).WithContext("cycle", path)
}

// ErrUnknownTask creates the error for a reference to an unregistered task.
func ErrUnknownTask(name, referencedBy string) *BuildError {
	msg := "unknown task: " + name
	if referencedBy != "" {
		msg = fmt.Sprintf("task %q depends on unknown task %q", referencedBy, name)
	}

	return NewConfigError(ErrCodeUnknownTask, msg)
}

// ErrInvalidGlob creates the error for a malformed glob pattern.
func ErrInvalidGlob(pattern string) *BuildError {
	return NewConfigError(ErrCodeInvalidGlob, "invalid glob pattern: "+pattern)
}
