package core

import (
	"errors"
	"fmt"
)

// Renderer errors. Every error returned across the handle API wraps one of these.
var (
	// ErrInvalidArgument covers bad or foreign handle ids, cross-executor calls,
	// malformed or unknown configuration and negative timeouts.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutOfBounds indicates cell coordinates outside the framebuffer extent.
	ErrOutOfBounds = errors.New("out of bounds")

	// ErrLimitExceeded indicates a configured capacity was exhausted.
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrUnsupported indicates a requested version or feature is not available.
	ErrUnsupported = errors.New("unsupported")

	// ErrPlatform indicates the platform layer failed (probe, tty, write).
	ErrPlatform = errors.New("platform error")

	// ErrGenericFailure indicates an internal invariant was violated.
	ErrGenericFailure = errors.New("generic failure")
)

// Code is the numeric result code reported across the engine ABI.
type Code int32

// Result codes. Zero is success, failures are negative.
const (
	CodeOK              Code = 0
	CodeInvalidArgument Code = -1
	CodeLimitExceeded   Code = -3
	CodeUnsupported     Code = -4
	CodePlatform        Code = -6
	CodeOutOfBounds     Code = -7
	CodeGenericFailure  Code = -8
)

// String returns the code name.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeInvalidArgument:
		return "invalid_argument"
	case CodeLimitExceeded:
		return "limit_exceeded"
	case CodeUnsupported:
		return "unsupported"
	case CodePlatform:
		return "platform"
	case CodeOutOfBounds:
		return "out_of_bounds"
	case CodeGenericFailure:
		return "generic_failure"
	default:
		return fmt.Sprintf("code(%d)", int32(c))
	}
}

// CodeOf maps an error to its result code.
// Errors outside the taxonomy report CodeGenericFailure.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, ErrOutOfBounds):
		return CodeOutOfBounds
	case errors.Is(err, ErrLimitExceeded):
		return CodeLimitExceeded
	case errors.Is(err, ErrUnsupported):
		return CodeUnsupported
	case errors.Is(err, ErrPlatform):
		return CodePlatform
	default:
		return CodeGenericFailure
	}
}

// OpError represents an error that occurred during a specific operation.
type OpError struct {
	Op      string // Operation name (e.g., "present", "put_grapheme")
	Context string // Additional context
	Err     error  // Underlying error
}

// NewOpError creates a new OpError.
func NewOpError(op string, err error) *OpError {
	return &OpError{Op: op, Err: err}
}

// Errorf creates an OpError wrapping err with formatted context.
func Errorf(op string, err error, format string, args ...any) *OpError {
	return &OpError{Op: op, Context: fmt.Sprintf(format, args...), Err: err}
}

func (e *OpError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Op
	if e.Context != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Context)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
