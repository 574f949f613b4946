package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestCDLError_Error(t *testing.T) {
	err := &CDLError{
		Code:    ErrNotFound,
		Message: "run not found",
	}

	expected := "NOT_FOUND: run not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewUsage(t *testing.T) {
	err := NewUsage("expected at least two arguments")

	if err.Code != ErrUsage {
		t.Errorf("Code = %q, want %q", err.Code, ErrUsage)
	}
	if err.Message != "expected at least two arguments" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewSchema(t *testing.T) {
	err := NewSchema("a.ale", []string{"ASC_SAT"})

	if err.Code != ErrSchema {
		t.Errorf("Code = %q, want %q", err.Code, ErrSchema)
	}
	if err.Details["source"] != "a.ale" {
		t.Errorf("Details[source] = %v, want %q", err.Details["source"], "a.ale")
	}
	missing, ok := err.Details["missing_columns"].([]string)
	if !ok || len(missing) != 1 || missing[0] != "ASC_SAT" {
		t.Errorf("Details[missing_columns] = %v, want [ASC_SAT]", err.Details["missing_columns"])
	}
}

func TestNewSchemaNoColumns(t *testing.T) {
	err := NewSchemaNoColumns("a.ale", 7)

	if err.Code != ErrSchema {
		t.Errorf("Code = %q, want %q", err.Code, ErrSchema)
	}
	if err.Details["line"] != 7 {
		t.Errorf("Details[line] = %v, want 7", err.Details["line"])
	}
}

func TestNewNamingConvention(t *testing.T) {
	err := NewNamingConvention("bad name", `^(\d+\w\w_\d+)`)

	if err.Code != ErrNamingConvention {
		t.Errorf("Code = %q, want %q", err.Code, ErrNamingConvention)
	}
	if err.Details["name"] != "bad name" {
		t.Errorf("Details[name] = %v, want %q", err.Details["name"], "bad name")
	}
}

func TestNewRowParse(t *testing.T) {
	err := NewRowParse("b.ale", 12, "expected 9 SOP values, found 6")

	if err.Code != ErrRowParse {
		t.Errorf("Code = %q, want %q", err.Code, ErrRowParse)
	}
	if err.Message != "b.ale:12: expected 9 SOP values, found 6" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewOutputWrite_Unwrap(t *testing.T) {
	err := NewOutputWrite("/nope/out.ccc", fs.ErrPermission)

	if err.Code != ErrOutputWrite {
		t.Errorf("Code = %q, want %q", err.Code, ErrOutputWrite)
	}
	if !stderrors.Is(err, fs.ErrPermission) {
		t.Errorf("errors.Is(err, fs.ErrPermission) = false, want true")
	}
}

func TestNewInputRead_Unwrap(t *testing.T) {
	err := NewInputRead("missing.ale", fs.ErrNotExist)

	if err.Code != ErrInputRead {
		t.Errorf("Code = %q, want %q", err.Code, ErrInputRead)
	}
	if !stderrors.Is(err, fs.ErrNotExist) {
		t.Errorf("errors.Is(err, fs.ErrNotExist) = false, want true")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("01J0000000000000000000000")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Details["identifier"] != "01J0000000000000000000000" {
		t.Errorf("Details[identifier] = %v", err.Details["identifier"])
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(fmt.Errorf("database connection failed"))

	if err.Code != ErrInternal {
		t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
	}
	if err.Message != "database connection failed" {
		t.Errorf("Message = %q, want %q", err.Message, "database connection failed")
	}
}

func TestNewInternal_NilError(t *testing.T) {
	err := NewInternal(nil)

	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewSchema("a.ale", nil), ErrSchema, true},
		{"different code", NewUsage("x"), ErrSchema, false},
		{"plain error", fmt.Errorf("regular error"), ErrInternal, false},
		{"nil error", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"naming convention", NewNamingConvention("x", "p"), true},
		{"row parse", NewRowParse("a.ale", 1, "short"), true},
		{"schema", NewSchema("a.ale", []string{"Name"}), false},
		{"usage", NewUsage("x"), false},
		{"output write", NewOutputWrite("o", nil), false},
		{"plain", fmt.Errorf("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverable(tt.err); got != tt.want {
				t.Errorf("IsRecoverable() = %v, want %v", got, tt.want)
			}
		})
	}
}
