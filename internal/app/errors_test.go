package app

import (
	"errors"
	"testing"

	"github.com/dshills/docview/internal/document"
)

func TestOperationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *OperationError
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "op only",
			err:      &OperationError{Op: "reload"},
			expected: "reload",
		},
		{
			name:     "op and target",
			err:      &OperationError{Op: "open", Path: "/path/doc.pdf"},
			expected: "open /path/doc.pdf",
		},
		{
			name:     "full error chain",
			err:      &OperationError{Op: "open", Path: "/path/doc.pdf", Version: 2, Err: errors.New("io error")},
			expected: "open /path/doc.pdf (version 2): io error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = '%s', expected '%s'", got, tt.expected)
			}
		})
	}
}

func TestOperationError_AtVersion(t *testing.T) {
	var nilErr *OperationError
	if nilErr.AtVersion(3) != nil {
		t.Error("expected nil result for nil receiver")
	}
	err := NewOperationError("reload", "a.txt", errors.New("gone")).AtVersion(3)
	if got, want := err.Error(), "reload a.txt (version 3): gone"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestRecoveredPanicError(t *testing.T) {
	if got := (&RecoveredPanicError{Value: "boom"}).Error(); got != "panic: boom" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&RecoveredPanicError{Value: 1, Stack: "trace"}).Error(); got != "panic: 1\ntrace" {
		t.Errorf("Error() = %q", got)
	}
}

func TestOperationError_KeepsDocumentKind(t *testing.T) {
	inner := document.NewError(document.KindFatalOpen, "open", "x.pdf", errors.New("garbage"))
	err := NewOperationError("open", "x.pdf", inner)

	if !document.IsFatal(err) {
		t.Error("expected IsFatal through OperationError")
	}
	if document.IsTransient(err) {
		t.Error("fatal error reported as transient")
	}
}

func TestComponentError_Error(t *testing.T) {
	tests := []struct {
		err      *ComponentError
		expected string
	}{
		{NewComponentError("scheduler", "start", errors.New("boom")), "scheduler: start: boom"},
		{NewComponentError("scheduler", "start", nil), "scheduler: start"},
		{NewComponentError("reload", "", errors.New("boom")), "reload: boom"},
		{NewComponentError("reload", "", nil), "reload"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.expected {
			t.Errorf("Error() = '%s', expected '%s'", got, tt.expected)
		}
	}
}

func TestComponentError_Unwrap(t *testing.T) {
	err := NewComponentError("backend", "init", ErrNoBackend)
	if !errors.Is(err, ErrNoBackend) {
		t.Error("errors.Is failed through ComponentError")
	}
}
