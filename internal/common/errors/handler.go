// internal/common/errors/handler.go
package errors

// ErrorHandler normalizes and logs errors raised inside a job boundary.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleJobError converts err to a StandardError and records it against the job key.
// Idle and timeout outcomes are soft failures and are logged as warnings.
func (h *ErrorHandler) HandleJobError(key string, err error) *StandardError {
	stdErr := AsStandard(err)
	if stdErr == nil {
		return nil
	}

	fields := map[string]interface{}{
		"jobKey":        key,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	for k, v := range stdErr.Metadata {
		fields[k] = v
	}

	if h.logger == nil {
		return stdErr
	}
	switch stdErr.Code {
	case ErrCodeProtocolIdleTimeout, ErrCodeJobTimeout, ErrCodeJobCancelled:
		h.logger.Warn("Job ended without export", fields)
	default:
		h.logger.Error("Job failed", fields)
	}
	return stdErr
}
