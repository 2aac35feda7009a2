// Package pipeline composes the toolchain invoker and the code section
// extractor into the two transformations: text to bytes and bytes to text.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shellsync/internal/config"
	"shellsync/internal/elfx"
	"shellsync/internal/toolchain"
)

// Severity tells the user whether to fix the input or the environment.
type Severity int

const (
	UserError Severity = iota
	Environment
)

func (s Severity) String() string {
	if s == Environment {
		return "environment"
	}
	return "input"
}

// Error wraps a toolchain or extraction failure with the stage it came from.
// The wrapped error is not reinterpreted.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Diagnostic returns the text to show the user for err: the external tool's
// own output when there is one, the error message otherwise.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	var tcErr *toolchain.Error
	if errors.As(err, &tcErr) && tcErr.Diagnostic != "" {
		return tcErr.Diagnostic
	}
	var exErr *elfx.ExtractError
	if errors.As(err, &exErr) {
		return exErr.Err.Error()
	}
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Err.Error()
	}
	return err.Error()
}

// SeverityOf classifies err.
func SeverityOf(err error) Severity {
	var tcErr *toolchain.Error
	if errors.As(err, &tcErr) && tcErr.Environmental() {
		return Environment
	}
	return UserError
}

// Extractor reads the code out of a linked artifact.
type Extractor func(path string) (*elfx.Code, error)

// Pipelines holds the collaborators of both transformations. It has no
// mutable state and may be used from several goroutines.
type Pipelines struct {
	Invoker *toolchain.Invoker
	Extract Extractor
}

// New returns pipelines that extract with elfx.
func New(iv *toolchain.Invoker) *Pipelines {
	return &Pipelines{Invoker: iv, Extract: elfx.Extract}
}

// Assemble turns assembly text into code. Blank text yields empty code
// without running any tool.
func (p *Pipelines) Assemble(ctx context.Context, text string, s config.Session) (*elfx.Code, error) {
	if strings.TrimSpace(text) == "" {
		return &elfx.Code{Bytes: []byte{}}, nil
	}

	art, err := p.Invoker.AssembleAndLink(ctx, text, s)
	if err != nil {
		return nil, &Error{Stage: "assemble", Err: err}
	}
	defer art.Close()

	code, err := p.Extract(art.Path)
	if err != nil {
		return nil, &Error{Stage: "extract", Err: err}
	}
	return code, nil
}

// Disassemble turns code into assembly text, one instruction per line.
// Empty input yields empty text without running any tool.
func (p *Pipelines) Disassemble(ctx context.Context, raw []byte, s config.Session) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	stream, err := p.Invoker.Disassemble(ctx, raw, s)
	if err != nil {
		return "", &Error{Stage: "disassemble", Err: err}
	}
	return stream.Text(), nil
}
