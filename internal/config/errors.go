package config

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFormat is a config file that is neither TOML nor YAML.
	ErrUnknownFormat = errors.New("unknown config format")

	// ErrValidationFailed matches every ValidationError.
	ErrValidationFailed = errors.New("validation failed")
)

// ParseError is a config file that could not be decoded. Line and Column
// are zero when the decoder does not report a position.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	where := e.Path
	switch {
	case e.Line > 0 && e.Column > 0:
		where = fmt.Sprintf("%s:%d:%d", e.Path, e.Line, e.Column)
	case e.Line > 0:
		where = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	return fmt.Sprintf("parse %s: %s", where, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError is one setting with an unusable value. Path is the
// dotted key, for example "cache.max_entries".
type ValidationError struct {
	Path    string
	Message string
	Value   any
	Code    ValidationErrorCode
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (value: %v)", e.Path, e.Message, e.Value)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// ValidationErrorCode says what kind of check a value failed.
type ValidationErrorCode uint8

const (
	ErrCodeOutOfRange ValidationErrorCode = iota
	ErrCodeInvalidEnum
	// ErrCodePatternMismatch is a malformed string such as a bad hex color.
	ErrCodePatternMismatch
	// ErrCodeTypeMismatch is an environment value that does not parse.
	ErrCodeTypeMismatch
)

var codeNames = [...]string{
	ErrCodeOutOfRange:      "out_of_range",
	ErrCodeInvalidEnum:     "invalid_enum",
	ErrCodePatternMismatch: "pattern_mismatch",
	ErrCodeTypeMismatch:    "type_mismatch",
}

func (c ValidationErrorCode) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return "unknown"
}
