// Package toolchain runs the external assembler, linker and disassembler.
//
// The Toolchain interface is the capability boundary: GNU shells out to
// binutils, Builtin decodes in-process for disassembly, and the toolchaintest
// package provides an in-memory fake. Invoker owns the per-invocation
// temporary files and the hard timeout around every call.
package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"shellsync/internal/config"
	"shellsync/internal/disasm"
)

// File names inside a work directory.
const (
	SourceFile = "shellcode.s"
	ObjectFile = "shellcode.o"
	OutputFile = "shellcode.elf"
	RawFile    = "shellcode.bin"
)

// Job describes one invocation. Paths are relative to Dir, which is unique to
// the invocation.
type Job struct {
	Dir     string
	Source  string
	Object  string
	Output  string
	Raw     string
	Session config.Session
}

// Path joins name onto the job's work directory.
func (j Job) Path(name string) string {
	return filepath.Join(j.Dir, name)
}

// Toolchain is the set of external capabilities the pipelines are built from.
type Toolchain interface {
	Assemble(ctx context.Context, job Job) error
	Link(ctx context.Context, job Job) error
	Disassemble(ctx context.Context, job Job) (disasm.Stream, error)
}

const DefaultTimeout = config.DefaultTimeout

// Invoker wraps a Toolchain with scoped temporary files and a timeout.
type Invoker struct {
	Toolchain Toolchain
	Timeout   time.Duration
	TempDir   string // parent of the work directories, os.TempDir() when empty
	Logger    *log.Logger
}

// NewInvoker returns an Invoker with the default timeout.
func NewInvoker(tc Toolchain, logger *log.Logger) *Invoker {
	return &Invoker{Toolchain: tc, Timeout: DefaultTimeout, Logger: logger}
}

// Artifact is a linked executable in a work directory. Close removes the
// directory and everything in it.
type Artifact struct {
	Path string
	dir  string
}

func (a *Artifact) Close() error {
	if a == nil || a.dir == "" {
		return nil
	}
	err := os.RemoveAll(a.dir)
	a.dir = ""
	return err
}

// workDir creates the unique directory for one invocation.
func (iv *Invoker) workDir() (string, error) {
	dir, err := os.MkdirTemp(iv.TempDir, "shellsync-*")
	if err != nil {
		return "", &Error{Kind: LaunchFailed, Tool: "tempdir", Diagnostic: err.Error(), Err: err}
	}
	return dir, nil
}

func (iv *Invoker) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if iv.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, iv.Timeout)
}

// AssembleAndLink assembles text and links the object into a minimal
// executable. On success the caller must Close the returned Artifact; on
// failure nothing is left on disk.
func (iv *Invoker) AssembleAndLink(ctx context.Context, text string, s config.Session) (*Artifact, error) {
	ctx, cancel := iv.withTimeout(ctx)
	defer cancel()

	dir, err := iv.workDir()
	if err != nil {
		return nil, err
	}
	art := &Artifact{dir: dir}
	ok := false
	defer func() {
		if !ok {
			art.Close()
		}
	}()

	job := Job{
		Dir:     dir,
		Source:  SourceFile,
		Object:  ObjectFile,
		Output:  OutputFile,
		Session: s,
	}

	// gas warns about a missing final newline
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if err := os.WriteFile(job.Path(job.Source), []byte(text), 0o600); err != nil {
		return nil, fmt.Errorf("write source: %w", err)
	}

	start := time.Now()
	if err := iv.Toolchain.Assemble(ctx, job); err != nil {
		iv.debug("assemble failed", "dir", dir, "error", err)
		return nil, err
	}
	if err := iv.Toolchain.Link(ctx, job); err != nil {
		iv.debug("link failed", "dir", dir, "error", err)
		return nil, err
	}
	iv.debug("assembled", "session", s, "elapsed", time.Since(start))

	art.Path = job.Path(job.Output)
	ok = true
	return art, nil
}

// Disassemble writes raw to a scoped file and disassembles it.
func (iv *Invoker) Disassemble(ctx context.Context, raw []byte, s config.Session) (disasm.Stream, error) {
	ctx, cancel := iv.withTimeout(ctx)
	defer cancel()

	dir, err := iv.workDir()
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	job := Job{Dir: dir, Raw: RawFile, Session: s}
	if err := os.WriteFile(job.Path(job.Raw), raw, 0o600); err != nil {
		return nil, fmt.Errorf("write raw bytes: %w", err)
	}

	start := time.Now()
	stream, err := iv.Toolchain.Disassemble(ctx, job)
	if err != nil {
		iv.debug("disassemble failed", "dir", dir, "error", err)
		return nil, err
	}
	iv.debug("disassembled", "session", s, "insns", len(stream), "elapsed", time.Since(start))
	return stream, nil
}

func (iv *Invoker) debug(msg string, kv ...any) {
	if iv.Logger != nil {
		iv.Logger.Debug(msg, kv...)
	}
}

// Probe checks that a work directory can be created at all. A failure here is
// fatal for the session.
func (iv *Invoker) Probe() error {
	dir, err := iv.workDir()
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// FromConfig builds the toolchain the config selects.
func FromConfig(cfg config.Config) Toolchain {
	gnu := NewGNU(cfg)
	if cfg.Disassembler == config.DisassemblerBuiltin {
		return &Builtin{Fallback: gnu}
	}
	return gnu
}
