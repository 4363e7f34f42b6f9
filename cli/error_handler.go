package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/renderwatch/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle prints a message for err based on its code and returns err unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	out := h.Out
	if out == nil {
		out = os.Stderr
	}

	var rwErr *errors.RenderwatchError
	if e, ok := err.(*errors.RenderwatchError); ok {
		rwErr = e
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(out, "❌ Configuration not found. Create renderwatch.yml or pass --config.\n")

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fmt.Fprintf(out, "❌ Invalid configuration: %v\n", err)
		fmt.Fprintf(out, "Run 'renderwatch config schema' to see the accepted keys.\n")

	case errors.ErrCodeWatchDirNotFound:
		if rwErr != nil {
			fmt.Fprintf(out, "❌ Directory does not exist: %v\n", rwErr.Details["dir"])
		} else {
			fmt.Fprintf(out, "❌ %v\n", err)
		}

	case errors.ErrCodeAlreadyRunning:
		if rwErr != nil {
			fmt.Fprintf(out, "❌ renderwatch is already running (PID %v)\n", rwErr.Details["pid"])
			fmt.Fprintf(out, "Stop it first or remove the stale pid file %v\n", rwErr.Details["pidfile"])
		} else {
			fmt.Fprintf(out, "❌ %v\n", err)
		}

	default:
		fmt.Fprintf(out, "❌ Error: %v\n", err)
	}

	if h.Verbose && rwErr != nil {
		fmt.Fprintf(out, "\nError details:\n%s\n", rwErr.ToJSON())
	}
	return err
}
