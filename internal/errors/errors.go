package errors

import "fmt"

// ErrorCode represents an ale2ccc error code.
type ErrorCode string

const (
	ErrUsage            ErrorCode = "USAGE"             // fatal, before any work
	ErrSchema           ErrorCode = "SCHEMA"            // fatal, aborts the run
	ErrNamingConvention ErrorCode = "NAMING_CONVENTION" // recoverable, record skipped
	ErrRowParse         ErrorCode = "ROW_PARSE"         // recoverable, row skipped
	ErrInputRead        ErrorCode = "INPUT_READ"        // fatal
	ErrOutputWrite      ErrorCode = "OUTPUT_WRITE"      // reported
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrNotFound         ErrorCode = "NOT_FOUND"
	ErrCancelled        ErrorCode = "CANCELLED"
	ErrInternal         ErrorCode = "INTERNAL"
)

// CDLError represents a structured error with code, message, and details.
type CDLError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *CDLError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *CDLError) Unwrap() error {
	return e.Err
}

// NewUsage creates an error for a malformed command line.
func NewUsage(msg string) *CDLError {
	return &CDLError{
		Code:    ErrUsage,
		Message: msg,
	}
}

// NewSchema creates an error for an ALE header row that lacks required columns.
func NewSchema(source string, missing []string) *CDLError {
	return &CDLError{
		Code:    ErrSchema,
		Message: fmt.Sprintf("%s: header row is missing required columns: %v", source, missing),
		Details: map[string]any{"source": source, "missing_columns": missing},
	}
}

// NewSchemaNoColumns creates an error for a Data block that precedes any Column block.
func NewSchemaNoColumns(source string, line int) *CDLError {
	return &CDLError{
		Code:    ErrSchema,
		Message: fmt.Sprintf("%s:%d: Data section has no preceding Column header", source, line),
		Details: map[string]any{"source": source, "line": line},
	}
}

// NewNamingConvention creates a warning for a shot name that yields no identifier.
func NewNamingConvention(name, pattern string) *CDLError {
	return &CDLError{
		Code:    ErrNamingConvention,
		Message: fmt.Sprintf("turnover item %q does not match naming convention %s", name, pattern),
		Details: map[string]any{"name": name, "pattern": pattern},
	}
}

// NewRowParse creates an error for a data row that cannot be turned into a record.
func NewRowParse(source string, line int, reason string) *CDLError {
	return &CDLError{
		Code:    ErrRowParse,
		Message: fmt.Sprintf("%s:%d: %s", source, line, reason),
		Details: map[string]any{"source": source, "line": line, "reason": reason},
	}
}

// NewInputRead creates an error for an input file that cannot be opened or read.
func NewInputRead(path string, err error) *CDLError {
	return &CDLError{
		Code:    ErrInputRead,
		Message: fmt.Sprintf("unable to read %s: %v", path, err),
		Details: map[string]any{"path": path},
		Err:     err,
	}
}

// NewOutputWrite creates an error for a destination that cannot be written.
func NewOutputWrite(path string, err error) *CDLError {
	return &CDLError{
		Code:    ErrOutputWrite,
		Message: fmt.Sprintf("unable to write to %s: %v", path, err),
		Details: map[string]any{"path": path},
		Err:     err,
	}
}

// NewInvalidRequest creates an error for invalid request parameters.
func NewInvalidRequest(msg string) *CDLError {
	return &CDLError{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}

// NewNotFound creates an error for a history run that cannot be found.
func NewNotFound(identifier string) *CDLError {
	return &CDLError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("run not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewCancelled creates an error for an operation stopped by context cancellation.
func NewCancelled(op string) *CDLError {
	return &CDLError{
		Code:    ErrCancelled,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates an error for unexpected internal errors.
func NewInternal(err error) *CDLError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CDLError{
		Code:    ErrInternal,
		Message: msg,
		Err:     err,
	}
}

// Is checks if an error is a CDLError with the given code.
func Is(err error, code ErrorCode) bool {
	if cErr, ok := err.(*CDLError); ok {
		return cErr.Code == code
	}
	return false
}

// IsRecoverable reports whether err only affects a single row or record.
// Recoverable errors are logged and the conversion continues.
func IsRecoverable(err error) bool {
	return Is(err, ErrNamingConvention) || Is(err, ErrRowParse)
}
