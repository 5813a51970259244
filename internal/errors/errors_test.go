package errors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestAppError(t *testing.T) {
	cause := errors.New("underlying error")
	appErr := NewAppError(ErrorTypeConnection, "connection failed", cause)

	if appErr.Type != ErrorTypeConnection {
		t.Errorf("Expected type %v, got %v", ErrorTypeConnection, appErr.Type)
	}

	if appErr.Cause != cause {
		t.Errorf("Expected cause %v, got %v", cause, appErr.Cause)
	}

	expectedError := "connection: connection failed (caused by: underlying error)"
	if appErr.Error() != expectedError {
		t.Errorf("Expected error string %v, got %v", expectedError, appErr.Error())
	}

	if !errors.Is(appErr, cause) {
		t.Error("Expected errors.Is to find the cause")
	}
}

func TestAppErrorWithContext(t *testing.T) {
	appErr := NewAppError(ErrorTypeExternalProcess, "rsync failed", nil)
	appErr.WithContext("binary", "rsync").WithContext("exit_code", 23)

	if appErr.Context["binary"] != "rsync" {
		t.Errorf("Expected context binary=rsync, got %v", appErr.Context["binary"])
	}

	if appErr.Context["exit_code"] != 23 {
		t.Errorf("Expected context exit_code=23, got %v", appErr.Context["exit_code"])
	}
}

func TestNewConfigKeyNotFoundError(t *testing.T) {
	err := NewConfigKeyNotFoundError("commands.mysql.path")

	if err.Type != ErrorTypeConfigKeyNotFound {
		t.Errorf("Expected type %v, got %v", ErrorTypeConfigKeyNotFound, err.Type)
	}
	if !strings.Contains(err.Error(), "commands.mysql.path") {
		t.Errorf("Expected message to name the path, got %q", err.Error())
	}
	if ContextValue(err, "path") != "commands.mysql.path" {
		t.Errorf("Expected path context, got %v", ContextValue(err, "path"))
	}
}

func TestNewConfigLoadError(t *testing.T) {
	cause := errors.New("yaml: line 3: did not find expected key")
	err := NewConfigLoadError("/etc/cms/config.default.yml", cause)

	if err.Type != ErrorTypeConfigLoad {
		t.Errorf("Expected type %v, got %v", ErrorTypeConfigLoad, err.Type)
	}
	if !errors.Is(err, cause) {
		t.Error("Expected cause to be preserved")
	}
}

func TestNewExternalProcessError(t *testing.T) {
	tests := []struct {
		name     string
		binary   string
		target   string
		exitCode int
		want     string
	}{
		{
			name:     "with target and exit code",
			binary:   "mysqldump",
			target:   "/tmp/cms-sync-1.sql",
			exitCode: 2,
			want:     "mysqldump failed for /tmp/cms-sync-1.sql (exit status 2)",
		},
		{
			name:   "binary only",
			binary: "rsync",
			want:   "rsync failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewExternalProcessError(tt.binary, tt.target, tt.exitCode, "boom", nil)
			if err.Message != tt.want {
				t.Errorf("Message = %q, want %q", err.Message, tt.want)
			}
			if err.Context["binary"] != tt.binary {
				t.Errorf("Expected binary context %q, got %v", tt.binary, err.Context["binary"])
			}
			if err.Context["stderr"] != "boom" {
				t.Errorf("Expected stderr context, got %v", err.Context["stderr"])
			}
			_, hasTarget := err.Context["target"]
			if hasTarget != (tt.target != "") {
				t.Errorf("target context presence = %v, want %v", hasTarget, tt.target != "")
			}
		})
	}
}

func TestNewBackupError(t *testing.T) {
	err := NewBackupError("upload", "failed to upload backup to S3", errors.New("403"))

	if err.Type != ErrorTypeBackup {
		t.Errorf("Expected type %v, got %v", ErrorTypeBackup, err.Type)
	}
	if err.Context["operation"] != "upload" {
		t.Errorf("Expected operation context, got %v", err.Context["operation"])
	}
}

func TestErrorClassifier_ClassifyMySQLError(t *testing.T) {
	classifier := NewErrorClassifier()

	tests := []struct {
		name         string
		mysqlErr     *mysql.MySQLError
		expectedType ErrorType
	}{
		{
			name:         "access denied",
			mysqlErr:     &mysql.MySQLError{Number: 1045, Message: "Access denied"},
			expectedType: ErrorTypePermission,
		},
		{
			name:         "unknown database",
			mysqlErr:     &mysql.MySQLError{Number: 1049, Message: "Unknown database"},
			expectedType: ErrorTypeValidation,
		},
		{
			name:         "can't connect to server",
			mysqlErr:     &mysql.MySQLError{Number: 2003, Message: "Can't connect to MySQL server"},
			expectedType: ErrorTypeConnection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := classifier.ClassifyError(fmt.Errorf("probe: %w", tt.mysqlErr))

			if appErr.Type != tt.expectedType {
				t.Errorf("Expected type %v, got %v", tt.expectedType, appErr.Type)
			}

			if appErr.Context["mysql_error_code"] != tt.mysqlErr.Number {
				t.Errorf("Expected mysql_error_code=%v, got %v", tt.mysqlErr.Number, appErr.Context["mysql_error_code"])
			}
		})
	}
}

func TestErrorClassifier_ClassifyOtherErrors(t *testing.T) {
	classifier := NewErrorClassifier()

	tests := []struct {
		name         string
		err          error
		expectedType ErrorType
	}{
		{
			name:         "executable not found",
			err:          &exec.Error{Name: "rsync", Err: exec.ErrNotFound},
			expectedType: ErrorTypeExternalProcess,
		},
		{
			name:         "context canceled",
			err:          context.Canceled,
			expectedType: ErrorTypeInterruption,
		},
		{
			name:         "missing file",
			err:          &os.PathError{Op: "open", Path: "/nope", Err: syscall.ENOENT},
			expectedType: ErrorTypeValidation,
		},
		{
			name:         "permission denied",
			err:          &os.PathError{Op: "open", Path: "/root", Err: syscall.EACCES},
			expectedType: ErrorTypePermission,
		},
		{
			name:         "unknown",
			err:          errors.New("something odd"),
			expectedType: ErrorTypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := classifier.ClassifyError(tt.err)
			if appErr.Type != tt.expectedType {
				t.Errorf("Expected type %v, got %v", tt.expectedType, appErr.Type)
			}
		})
	}

	if classifier.ClassifyError(nil) != nil {
		t.Error("Expected nil for nil error")
	}
}

func TestErrorClassifier_PreservesAppError(t *testing.T) {
	original := NewValidationError("distinct-paths", "same path")
	wrapped := fmt.Errorf("validate: %w", original)

	if got := NewErrorClassifier().ClassifyError(wrapped); got != original {
		t.Errorf("Expected the original AppError, got %v", got)
	}
}

func TestGetErrorTypeAndIsType(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewInterruptionError("declined"))

	if GetErrorType(err) != ErrorTypeInterruption {
		t.Errorf("Expected %v, got %v", ErrorTypeInterruption, GetErrorType(err))
	}
	if !IsType(err, ErrorTypeInterruption) {
		t.Error("Expected IsType to match")
	}
	if IsType(nil, ErrorTypeInterruption) {
		t.Error("Expected IsType(nil) to be false")
	}
	if GetErrorType(errors.New("plain")) != ErrorTypeUnknown {
		t.Error("Expected plain errors to be unknown")
	}
}

func TestFormatUserError(t *testing.T) {
	if FormatUserError(nil) != "" {
		t.Error("Expected empty string for nil")
	}

	appErr := NewValidationError("source-path", "Source path does not exist")
	appErr.UserMessage = "Source path ‘/srv/a’ does not exist"
	if got := FormatUserError(appErr); got != appErr.UserMessage {
		t.Errorf("Expected user message, got %q", got)
	}

	if got := FormatUserError(errors.New("plain")); got != "plain" {
		t.Errorf("Expected plain error text, got %q", got)
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, "ignored") != nil {
		t.Error("Expected nil for nil error")
	}

	inner := NewExternalProcessError("mysql", "dest_db", 1, "", nil)
	wrapped := WrapError(inner, "import failed")

	if GetErrorType(wrapped) != ErrorTypeExternalProcess {
		t.Errorf("Expected type to be kept, got %v", GetErrorType(wrapped))
	}
	if ContextValue(wrapped, "binary") != "mysql" {
		t.Errorf("Expected context to be copied, got %v", ContextValue(wrapped, "binary"))
	}

	plain := WrapError(context.Canceled, "prompt interrupted")
	if GetErrorType(plain) != ErrorTypeInterruption {
		t.Errorf("Expected interruption, got %v", GetErrorType(plain))
	}
}
