// Package errors provides standardized error handling for design generation jobs.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeTemplateFetchFailed ErrorCode = "TEMPLATE_FETCH_FAILED"
	ErrCodeTemplateInvalid     ErrorCode = "TEMPLATE_INVALID"

	ErrCodeAssetFetchFailed ErrorCode = "ASSET_FETCH_FAILED"

	ErrCodeEditorLaunchFailed  ErrorCode = "EDITOR_LAUNCH_FAILED"
	ErrCodeExportIncomplete    ErrorCode = "EDITOR_EXPORT_INCOMPLETE"
	ErrCodeProtocolIdleTimeout ErrorCode = "PROTOCOL_IDLE_TIMEOUT"
	ErrCodeJobTimeout          ErrorCode = "JOB_TIMEOUT"
	ErrCodeJobCancelled        ErrorCode = "JOB_CANCELLED"

	ErrCodeCacheReadFailed  ErrorCode = "CACHE_READ_FAILED"
	ErrCodeCacheWriteFailed ErrorCode = "CACHE_WRITE_FAILED"

	ErrCodeJobPending ErrorCode = "JOB_PENDING"
	ErrCodeInvalidJob ErrorCode = "INVALID_JOB"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *StandardError) Unwrap() error {
	return e.cause
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewTemplateFetchFailedError creates a retryable template download error.
func NewTemplateFetchFailedError(templateID string, err error) *StandardError {
	e := newError(ErrCodeTemplateFetchFailed, "Template could not be fetched", err, true)
	e.Metadata = map[string]interface{}{"templateId": templateID}
	return e
}

// NewTemplateInvalidError creates a non-retryable template layer manifest error.
func NewTemplateInvalidError(templateID string, err error) *StandardError {
	e := newError(ErrCodeTemplateInvalid, "Template layer manifest is invalid", err, false)
	e.Metadata = map[string]interface{}{"templateId": templateID}
	return e
}

// NewAssetFetchFailedError creates a retryable asset download error.
func NewAssetFetchFailedError(url string, err error) *StandardError {
	e := newError(ErrCodeAssetFetchFailed, "Asset could not be fetched", err, true)
	e.Metadata = map[string]interface{}{"url": url}
	return e
}

// NewEditorLaunchFailedError creates a retryable editor connection error.
func NewEditorLaunchFailedError(err error) *StandardError {
	return newError(ErrCodeEditorLaunchFailed, "Editor instance could not be started", err, true)
}

// NewExportIncompleteError reports an export that finished without bytes for a required format.
func NewExportIncompleteError(namespace, format string) *StandardError {
	e := newError(ErrCodeExportIncomplete, "Editor export is missing a required format", nil, true)
	e.Details = fmt.Sprintf("namespace: %s, format: %s", namespace, format)
	e.Metadata = map[string]interface{}{"format": format}
	return e
}

// NewProtocolIdleTimeoutError reports that the editor stopped making progress.
func NewProtocolIdleTimeoutError(namespace string, idle time.Duration) *StandardError {
	e := newError(ErrCodeProtocolIdleTimeout, "Editor went idle before exporting", nil, true)
	e.Details = fmt.Sprintf("namespace: %s, idle for %s", namespace, idle)
	return e
}

// NewJobTimeoutError reports that the caller deadline passed without an export.
func NewJobTimeoutError(key string, after time.Duration) *StandardError {
	e := newError(ErrCodeJobTimeout, "Job did not export before its deadline", nil, true)
	e.Details = fmt.Sprintf("key: %s, timeout: %s", key, after)
	return e
}

// NewJobCancelledError reports a job abandoned by RemoveJob or shutdown.
func NewJobCancelledError(key string) *StandardError {
	e := newError(ErrCodeJobCancelled, "Job was cancelled", nil, false)
	e.Details = fmt.Sprintf("key: %s", key)
	return e
}

// NewCacheReadFailedError creates a retryable cache read error.
func NewCacheReadFailedError(key string, err error) *StandardError {
	e := newError(ErrCodeCacheReadFailed, "Artifact cache read failed", err, true)
	e.Metadata = map[string]interface{}{"key": key}
	return e
}

// NewCacheWriteFailedError creates a retryable cache write error.
func NewCacheWriteFailedError(key string, err error) *StandardError {
	e := newError(ErrCodeCacheWriteFailed, "Artifact cache write failed", err, true)
	e.Metadata = map[string]interface{}{"key": key}
	return e
}

// NewJobPendingError rejects a duplicate submission.
func NewJobPendingError(key string) *StandardError {
	e := newError(ErrCodeJobPending, "A job for this key is already pending", nil, false)
	e.Details = fmt.Sprintf("key: %s", key)
	return e
}

// NewInvalidJobError rejects a malformed submission.
func NewInvalidJobError(details string) *StandardError {
	e := newError(ErrCodeInvalidJob, "Job submission is invalid", nil, false)
	e.Details = details
	return e
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandard returns err as a *StandardError, wrapping unknown errors as INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err, false)
}

// HasCode reports whether err is a StandardError carrying code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "TEMPLATE"):
		return "TEMPLATE"
	case strings.HasPrefix(codeStr, "ASSET"):
		return "ASSET"
	case strings.HasPrefix(codeStr, "EDITOR") || strings.HasPrefix(codeStr, "PROTOCOL"):
		return "EDITOR"
	case strings.HasPrefix(codeStr, "CACHE"):
		return "CACHE"
	case strings.HasPrefix(codeStr, "JOB"):
		return "JOB"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
