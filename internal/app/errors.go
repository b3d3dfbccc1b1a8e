package app

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrQuit ends the event loop on a user quit. Run returns nil for it.
	ErrQuit = errors.New("quit requested")

	ErrAlreadyRunning = errors.New("application already running")

	// ErrNoBackend means Run was called without a terminal backend.
	ErrNoBackend = errors.New("no terminal backend")
)

// OperationError is a failed user-level operation on a document, such as
// opening it. Document error kinds stay visible through Unwrap.
type OperationError struct {
	Op   string
	Path string
	// Version is the document version involved, or zero.
	Version uint64
	Err     error
}

// NewOperationError creates an OperationError.
func NewOperationError(op, path string, err error) *OperationError {
	return &OperationError{Op: op, Path: path, Err: err}
}

// AtVersion records the document version. Nil receivers stay nil.
func (e *OperationError) AtVersion(v uint64) *OperationError {
	if e != nil {
		e.Version = v
	}
	return e
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Path != "" {
		b.WriteString(" " + e.Path)
	}
	if e.Version > 0 {
		fmt.Fprintf(&b, " (version %d)", e.Version)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ComponentError is a component that failed to start or stop.
type ComponentError struct {
	Component string
	Action    string
	Err       error
}

// NewComponentError creates a ComponentError.
func NewComponentError(component, action string, err error) *ComponentError {
	return &ComponentError{Component: component, Action: action, Err: err}
}

// Error joins the non-empty parts with ": ".
func (e *ComponentError) Error() string {
	if e == nil {
		return ""
	}
	parts := []string{e.Component}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *ComponentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RecoveredPanicError is a panic recovered on the event loop goroutine.
type RecoveredPanicError struct {
	Value any
	Stack string
}

func (e *RecoveredPanicError) Error() string {
	if e == nil {
		return ""
	}
	if e.Stack == "" {
		return fmt.Sprintf("panic: %v", e.Value)
	}
	return fmt.Sprintf("panic: %v\n%s", e.Value, e.Stack)
}
