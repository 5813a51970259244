package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/go-sql-driver/mysql"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// ErrorTypeConfigLoad represents a missing or malformed configuration document
	ErrorTypeConfigLoad ErrorType = "config_load"
	// ErrorTypeConfigKeyNotFound represents a dotted configuration path that does not resolve
	ErrorTypeConfigKeyNotFound ErrorType = "config_key_not_found"
	// ErrorTypeValidation represents a failed migration precondition
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeExternalProcess represents a non-zero exit or start failure of an external binary
	ErrorTypeExternalProcess ErrorType = "external_process"
	// ErrorTypeConnection represents database connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypePermission represents permission/access errors
	ErrorTypePermission ErrorType = "permission"
	// ErrorTypeBackup represents a failure while archiving or uploading a backup
	ErrorTypeBackup ErrorType = "backup"
	// ErrorTypeInterruption represents the user declining or interrupting an operation
	ErrorTypeInterruption ErrorType = "interruption"
	// ErrorTypeUnknown represents unknown errors
	ErrorTypeUnknown ErrorType = "unknown"
)

// AppError represents an application-specific error with context
type AppError struct {
	Type        ErrorType
	Message     string
	Cause       error
	Context     map[string]interface{}
	UserMessage string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// GetUserMessage returns a user-friendly error message
func (e *AppError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// WithContext adds context information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewConfigLoadError reports a configuration document that could not be read or parsed
func NewConfigLoadError(path string, cause error) *AppError {
	return NewAppError(ErrorTypeConfigLoad,
		fmt.Sprintf("cannot load configuration file %q", path), cause).
		WithContext("path", path)
}

// NewConfigKeyNotFoundError reports a dotted path that is absent from the merged configuration.
// The full requested path is always named, not the first missing segment.
func NewConfigKeyNotFoundError(path string) *AppError {
	return NewAppError(ErrorTypeConfigKeyNotFound,
		fmt.Sprintf("configuration value for key %q does not exist", path), nil).
		WithContext("path", path)
}

// NewValidationError reports a failed migration precondition identified by check
func NewValidationError(check, message string) *AppError {
	return NewAppError(ErrorTypeValidation, message, nil).
		WithContext("check", check)
}

// NewExternalProcessError reports an external binary that exited non-zero or could not start
func NewExternalProcessError(binary, target string, exitCode int, stderr string, cause error) *AppError {
	msg := fmt.Sprintf("%s failed", binary)
	if target != "" {
		msg = fmt.Sprintf("%s failed for %s", binary, target)
	}
	if exitCode > 0 {
		msg = fmt.Sprintf("%s (exit status %d)", msg, exitCode)
	}

	appErr := NewAppError(ErrorTypeExternalProcess, msg, cause).
		WithContext("binary", binary).
		WithContext("exit_code", exitCode)
	if target != "" {
		appErr.WithContext("target", target)
	}
	if stderr != "" {
		appErr.WithContext("stderr", stderr)
	}
	return appErr
}

// NewBackupError reports a failed backup post-processing operation (compress, encrypt, upload)
func NewBackupError(operation, message string, cause error) *AppError {
	return NewAppError(ErrorTypeBackup, message, cause).
		WithContext("operation", operation)
}

// NewInterruptionError reports an operation the user declined or interrupted
func NewInterruptionError(message string) *AppError {
	return NewAppError(ErrorTypeInterruption, message, nil)
}

// ErrorClassifier provides methods to classify and handle different types of errors
type ErrorClassifier struct{}

// NewErrorClassifier creates a new error classifier
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// ClassifyError analyzes an error and returns an AppError with appropriate classification
func (ec *ErrorClassifier) ClassifyError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if mysqlErr := ec.classifyMySQLError(err); mysqlErr != nil {
		return mysqlErr
	}

	if procErr := ec.classifyProcessError(err); procErr != nil {
		return procErr
	}

	if ctxErr := ec.classifyContextError(err); ctxErr != nil {
		return ctxErr
	}

	if fsErr := ec.classifyFileSystemError(err); fsErr != nil {
		return fsErr
	}

	return NewAppError(ErrorTypeUnknown, "An unexpected error occurred", err)
}

// classifyMySQLError classifies errors returned by the MySQL driver
func (ec *ErrorClassifier) classifyMySQLError(err error) *AppError {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1044, 1045: // Access denied
			return NewAppError(ErrorTypePermission,
				"Database access denied - check db.username and db.password", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 1049: // Unknown database
			return NewAppError(ErrorTypeValidation,
				"Database does not exist", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 2003, 2006:
			return NewAppError(ErrorTypeConnection,
				"Cannot connect to MySQL server - server may be down or unreachable", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		default:
			return NewAppError(ErrorTypeConnection,
				fmt.Sprintf("MySQL error: %s", mysqlErr.Message), err).
				WithContext("mysql_error_code", mysqlErr.Number)
		}
	}

	if errors.Is(err, sql.ErrConnDone) {
		return NewAppError(ErrorTypeConnection, "Database connection is closed", err)
	}

	return nil
}

// classifyProcessError classifies errors returned by os/exec
func (ec *ErrorClassifier) classifyProcessError(err error) *AppError {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return NewAppError(ErrorTypeExternalProcess,
			fmt.Sprintf("External process exited with status %d", exitErr.ExitCode()), err).
			WithContext("exit_code", exitErr.ExitCode())
	}

	if errors.Is(err, exec.ErrNotFound) {
		return NewAppError(ErrorTypeExternalProcess,
			"Executable not found in PATH", err)
	}

	return nil
}

// classifyContextError classifies context-related errors
func (ec *ErrorClassifier) classifyContextError(err error) *AppError {
	if errors.Is(err, context.Canceled) {
		return NewAppError(ErrorTypeInterruption,
			"Operation was canceled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewAppError(ErrorTypeConnection,
			"Operation timed out", err)
	}

	return nil
}

// classifyFileSystemError classifies file system errors
func (ec *ErrorClassifier) classifyFileSystemError(err error) *AppError {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		switch pathErr.Err {
		case syscall.ENOENT:
			return NewAppError(ErrorTypeValidation,
				fmt.Sprintf("File or directory not found: %s", pathErr.Path), err)
		case syscall.EACCES:
			return NewAppError(ErrorTypePermission,
				fmt.Sprintf("Permission denied: %s", pathErr.Path), err)
		case syscall.ENOSPC:
			return NewAppError(ErrorTypeValidation,
				"No space left on device", err)
		}
	}

	return nil
}

// GetErrorType returns the error type of an error
func GetErrorType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, errorType ErrorType) bool {
	return err != nil && GetErrorType(err) == errorType
}

// ContextValue returns a context entry of an AppError, or nil
func ContextValue(err error, key string) interface{} {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Context != nil {
		return appErr.Context[key]
	}
	return nil
}

// FormatUserError formats an error for display to users
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.GetUserMessage()
	}

	return err.Error()
}

// WrapError wraps an existing error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		wrapped := NewAppError(appErr.Type, message, err)
		for k, v := range appErr.Context {
			wrapped.Context[k] = v
		}
		return wrapped
	}

	classified := NewErrorClassifier().ClassifyError(err)
	classified.Message = message
	return classified
}
