package errors

import (
	"errors"
)

// Wrap wraps an error with additional context. An existing BuildError in
// err's chain keeps its task and location.
func Wrap(err error, errType ErrorType, code, message string) *BuildError {
	if err == nil {
		return nil
	}

	var be *BuildError
	if errors.As(err, &be) {
		var ctx map[string]interface{}
		if be.Context != nil {
			ctx = make(map[string]interface{}, len(be.Context))
			for k, v := range be.Context {
				ctx[k] = v
			}
		}
		return &BuildError{
			Type:     errType,
			Code:     code,
			Message:  message,
			Cause:    be,
			Context:  ctx,
			Task:     be.Task,
			FilePath: be.FilePath,
			Line:     be.Line,
		}
	}

	return &BuildError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapTransform wraps an error as a transform error for a single file.
func WrapTransform(err error, code, message, filePath string) *BuildError {
	be := Wrap(err, ErrorTypeTransform, code, message)
	if be != nil && filePath != "" {
		be.FilePath = filePath
	}
	return be
}

// WrapIO wraps an error as an I/O error for a single file.
func WrapIO(err error, code, message, filePath string) *BuildError {
	be := Wrap(err, ErrorTypeIO, code, message)
	if be != nil && filePath != "" {
		be.FilePath = filePath
	}
	return be
}

// WrapConfig wraps an error as a configuration error.
func WrapConfig(err error, code, message string) *BuildError {
	return Wrap(err, ErrorTypeConfig, code, message)
}

// AttachTask records task on err if it is a BuildError without one, and
// wraps any other error as a transform error of that task.
func AttachTask(err error, task string) error {
	if err == nil {
		return nil
	}

	var be *BuildError
	if errors.As(err, &be) {
		if be.Task == "" {
			be.Task = task
		}
		return err
	}

	return Wrap(err, ErrorTypeTransform, ErrCodeTransformFailed, "task failed").WithTask(task)
}

// GetErrorContext extracts context information from a BuildError.
func GetErrorContext(err error) map[string]interface{} {
	var be *BuildError
	if errors.As(err, &be) {
		context := make(map[string]interface{})
		for k, v := range be.Context {
			context[k] = v
		}
		if be.Task != "" {
			context["task"] = be.Task
		}
		if be.FilePath != "" {
			context["file"] = be.FilePath
			if be.Line > 0 {
				context["line"] = be.Line
			}
		}
		context["type"] = string(be.Type)
		context["code"] = be.Code
		return context
	}

	return map[string]interface{}{
		"message": err.Error(),
		"type":    "unknown",
	}
}
