package errors

import "fmt"

// AppError represents an application-level error with a code and optional cause
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error codes
const (
	ErrCodeSessionLoad    = "SESSION_LOAD_FAILED"
	ErrCodeSessionSave    = "SESSION_SAVE_FAILED"
	ErrCodeConfig         = "CONFIG_INVALID"
	ErrCodeModelCall      = "MODEL_CALL_FAILED"
	ErrCodeToolExecution  = "TOOL_EXECUTION_FAILED"
	ErrCodeStoreQuery     = "STORE_QUERY_FAILED"
	ErrCodeStoreWrite     = "STORE_WRITE_FAILED"
	ErrCodeWorkflow       = "WORKFLOW_FAILED"
	ErrCodeOrchestrator   = "ORCHESTRATOR_FAILED"
	ErrCodeQueryFormat    = "QUERY_FORMAT_FAILED"
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeUnknownAddress = "UNKNOWN_RESUME_ADDRESS"
)

// ValidationError is a recoverable domain validation failure raised by a
// tool while a sub-workflow dialogue is in progress. It never propagates
// past the owning sub-workflow: the engine feeds its reason back into the
// conversation so the model can re-ask the user.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NewValidation creates a ValidationError with a formatted reason
func NewValidation(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a recoverable domain validation failure
func IsValidation(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}
