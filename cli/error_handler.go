package cli

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/wardentools/warden/errors"
)

// ErrorHandler turns coded errors into actionable terminal messages. The
// original error passes through unchanged so exit codes stay truthful.
type ErrorHandler struct {
	Verbose bool
}

// NewErrorHandler builds a handler. Verbose adds the full JSON error dump
// after the friendly message.
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{Verbose: verbose}
}

// Handle prints remediation hints for the codes warden commands surface,
// then hands the error back to the caller.
func (h *ErrorHandler) Handle(err error) error {
	d := details(err)

	switch errors.GetCode(err) {
	case errors.ErrCodeDaemonUnavailable:
		explain("The warden daemon is not running.",
			"Start it with 'warden daemon run'.")

	case errors.ErrCodeDaemonRunning:
		explain(fmt.Sprintf("A daemon is already running (PID %v)", d["pid"]),
			"Stop it with 'warden daemon stop' before starting another.")

	case errors.ErrCodeAlreadyLocked:
		explain(lockedLine(d),
			"Run 'warden locks' to inspect, 'warden unlock <dir>' to release.")

	case errors.ErrCodeNoManualLock:
		explain(fmt.Sprintf("No manual lock on '%v'", d["directory"]),
			"Run 'warden locks' to see current locks.")

	case errors.ErrCodeSessionNotFound:
		explain(fmt.Sprintf("Session '%v' not found", d["session_id"]),
			"Run 'warden sessions' to list known sessions.")

	case errors.ErrCodeAdapterUnknown:
		explain(fmt.Sprintf("Adapter '%v' is not configured", d["adapter"]),
			"Check the adapters section of warden.yml.")

	case errors.ErrCodeFuseNotFound:
		explain(fmt.Sprintf("No fuse armed for '%v'", d["directory"]),
			"Run 'warden fuse list' to see armed fuses.")

	case errors.ErrCodeCommandFailed:
		explain(err.Error())
		if out, ok := d["output"].(string); ok && out != "" {
			fmt.Fprintln(os.Stderr, out)
		}

	case errors.ErrCodeConfigNotFound:
		explain("Configuration not found.",
			"Create ~/.config/warden/warden.yml or pass --config.")

	case errors.ErrCodeConfigValidation, errors.ErrCodeConfigInvalid:
		explain(fmt.Sprintf("Invalid configuration: %v", err),
			"Run 'warden config validate' for details.")

	default:
		explain(fmt.Sprintf("Error: %v", err))
		if h.Verbose {
			var coded *errors.WardenError
			if stderrors.As(err, &coded) {
				fmt.Fprintf(os.Stderr, "\nError details:\n%s\n", coded.ToJSON())
			}
		}
	}

	return err
}

// explain prints the problem line and any followup hints to stderr.
func explain(problem string, hints ...string) {
	fmt.Fprintf(os.Stderr, "❌ %s\n", problem)
	for _, hint := range hints {
		fmt.Fprintln(os.Stderr, hint)
	}
}

// lockedLine folds the optional owner and reason details into one line.
func lockedLine(d map[string]interface{}) string {
	line := fmt.Sprintf("Directory '%v' is locked", d["directory"])
	if by, ok := d["by"]; ok {
		line += fmt.Sprintf(" by %v", by)
	}
	if reason, ok := d["reason"]; ok {
		line += fmt.Sprintf(" (%v)", reason)
	}
	return line
}

// details pulls the detail map off a coded error anywhere in the chain.
// Plain errors yield nil, which still reads safely.
func details(err error) map[string]interface{} {
	var coded *errors.WardenError
	if stderrors.As(err, &coded) {
		return coded.Details
	}
	return nil
}
