package config

import (
	"errors"
	"fmt"

	"github.com/dshills/termdiff/internal/renderer/core"
)

// Errors returned by configuration operations.
var (
	// ErrUnknownKey indicates a key outside the accepted key table.
	ErrUnknownKey = errors.New("unknown key")

	// ErrTypeMismatch indicates a value of the wrong JSON type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrValidationFailed indicates a value outside its accepted range.
	ErrValidationFailed = errors.New("validation failed")

	// ErrUnsupportedFormat indicates a config file extension with no loader.
	ErrUnsupportedFormat = errors.New("unsupported config format")

	// ErrWatcherClosed is returned when using a closed watcher.
	ErrWatcherClosed = errors.New("watcher closed")
)

// KeyError describes a rejected configuration key or value.
// It unwraps to both its cause and core.ErrInvalidArgument.
type KeyError struct {
	// Context names the object being parsed, e.g. "engineCreate config.limits".
	Context string
	// Key is the offending key.
	Key string
	// Err is ErrUnknownKey, ErrTypeMismatch or ErrValidationFailed.
	Err error
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Context, e.Err, e.Key)
}

// Unwrap returns the cause and the engine error class.
func (e *KeyError) Unwrap() []error {
	return []error{e.Err, core.ErrInvalidArgument}
}

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	// Path is the file path that failed to parse.
	Path string
	// Message describes the parse error.
	Message string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
