package cli

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/cakeday/pkg/types"
)

// Exit codes.
const (
	ExitSuccess     = 0 // Graceful shutdown.
	ExitConfigError = 1 // Bad flags, unreadable or invalid configuration.
	ExitStartup     = 2 // Storage, transport credential or scheduler failure.
)

// ExitError carries the process exit code for an error.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// ExitCode maps err to a process exit code. Errors without an ExitError
// in their chain are configuration errors; cobra reports flag problems that
// way.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitConfigError
}

// configErrors are the validation failures that mean "fix your config".
var configErrors = []error{
	types.ErrStorageDriverUnknown,
	types.ErrTransportDriverUnknown,
	types.ErrSweepTimeInvalid,
	types.ErrTimezoneInvalid,
	types.ErrLeapDayPolicyUnknown,
	types.ErrLogFormatUnknown,
}

// classify wraps a service startup error with the matching exit code.
func classify(err error) *ExitError {
	for _, target := range configErrors {
		if errors.Is(err, target) {
			return WrapExitError(ExitConfigError, "invalid configuration", err)
		}
	}
	return WrapExitError(ExitStartup, "startup failed", err)
}
