package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Kind classifies a toolchain failure.
type Kind int

const (
	AssembleFailed Kind = iota + 1
	LinkFailed
	DisassembleFailed
	LaunchFailed // the tool could not be started at all
	Timeout
	Canceled
)

func (k Kind) String() string {
	switch k {
	case AssembleFailed:
		return "assemble failed"
	case LinkFailed:
		return "link failed"
	case DisassembleFailed:
		return "disassemble failed"
	case LaunchFailed:
		return "launch failed"
	case Timeout:
		return "timeout"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a failed toolchain invocation. Diagnostic holds the tool's own
// output verbatim; it is what the user gets to see.
type Error struct {
	Kind       Kind
	Tool       string
	Diagnostic string
	Err        error
}

func (e *Error) Error() string {
	if e.Diagnostic != "" {
		return fmt.Sprintf("%s: %s: %s", e.Tool, e.Kind, e.Diagnostic)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Tool, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Tool, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Environmental reports whether the failure points at a broken setup rather
// than at the user's input. A tool that hangs past the timeout counts.
func (e *Error) Environmental() bool {
	return e.Kind == LaunchFailed || e.Kind == Timeout
}

// classify turns the error of a finished command into an *Error. failKind is
// used when the tool ran and reported a problem.
func classify(ctx context.Context, tool string, failKind Kind, err error, diag string) *Error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &Error{Kind: Timeout, Tool: tool, Diagnostic: diag, Err: ctx.Err()}
	case errors.Is(ctx.Err(), context.Canceled):
		return &Error{Kind: Canceled, Tool: tool, Err: ctx.Err()}
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		if errors.Is(err, exec.ErrNotFound) {
			return &Error{Kind: LaunchFailed, Tool: tool, Diagnostic: fmt.Sprintf("%s is not installed", tool), Err: err}
		}
		return &Error{Kind: LaunchFailed, Tool: tool, Diagnostic: err.Error(), Err: err}
	}
	if diag == "" && err != nil {
		diag = err.Error()
	}
	return &Error{Kind: failKind, Tool: tool, Diagnostic: diag, Err: err}
}
