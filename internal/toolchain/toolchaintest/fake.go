// Package toolchaintest provides an in-memory toolchain for tests of the
// pipelines, the engine and the controller.
package toolchaintest

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"shellsync/internal/disasm"
	"shellsync/internal/elfx"
	"shellsync/internal/toolchain"
)

// Fake assembles by table lookup. The "object" and "linked artifact" it
// writes are the raw code bytes, so pair it with RawExtract.
type Fake struct {
	mu       sync.Mutex
	assembly map[string][]byte // trimmed source -> bytes
	listing  map[string]string // hex bytes -> text

	// Gate, when set, is received from before every call returns. Tests use
	// it to hold a call in flight.
	Gate chan struct{}

	// Missing makes every call fail as if the tool were not installed.
	Missing bool

	AssembleCalls    atomic.Int32
	LinkCalls        atomic.Int32
	DisassembleCalls atomic.Int32
}

// New returns a fake that knows the pairs from the usual scenarios.
func New() *Fake {
	f := &Fake{
		assembly: map[string][]byte{},
		listing:  map[string]string{},
	}
	f.Add("mov eax, 1", []byte{0xb8, 0x01, 0x00, 0x00, 0x00})
	f.Add("nop", []byte{0x90})
	f.Add("ret", []byte{0xc3})
	f.Add("nop\nret", []byte{0x90, 0xc3})
	return f
}

// Add registers a source text and its encoding in both directions.
func (f *Fake) Add(source string, code []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.TrimSpace(source)
	f.assembly[key] = code
	f.listing[hex.EncodeToString(code)] = key + "\n"
}

// Calls returns the total number of capability invocations.
func (f *Fake) Calls() int {
	return int(f.AssembleCalls.Load() + f.LinkCalls.Load() + f.DisassembleCalls.Load())
}

func (f *Fake) wait(ctx context.Context) error {
	if f.Gate == nil {
		return nil
	}
	select {
	case <-f.Gate:
		return nil
	case <-ctx.Done():
		return &toolchain.Error{Kind: toolchain.Timeout, Tool: "fake", Err: ctx.Err()}
	}
}

func (f *Fake) missing(tool string) error {
	return &toolchain.Error{
		Kind:       toolchain.LaunchFailed,
		Tool:       tool,
		Diagnostic: fmt.Sprintf("%s is not installed", tool),
	}
}

func (f *Fake) Assemble(ctx context.Context, job toolchain.Job) error {
	f.AssembleCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return err
	}
	if f.Missing {
		return f.missing("as")
	}

	src, err := os.ReadFile(job.Path(job.Source))
	if err != nil {
		return err
	}
	key := strings.TrimSpace(string(src))

	f.mu.Lock()
	code, ok := f.assembly[key]
	f.mu.Unlock()
	if !ok {
		first := strings.SplitN(key, "\n", 2)[0]
		return &toolchain.Error{
			Kind:       toolchain.AssembleFailed,
			Tool:       "as",
			Diagnostic: fmt.Sprintf("%s: Assembler messages:\n%s:1: Error: no such instruction: `%s'", job.Source, job.Source, first),
		}
	}
	return os.WriteFile(job.Path(job.Object), code, 0o600)
}

func (f *Fake) Link(ctx context.Context, job toolchain.Job) error {
	f.LinkCalls.Add(1)
	if f.Missing {
		return f.missing("ld")
	}
	obj, err := os.ReadFile(job.Path(job.Object))
	if err != nil {
		return err
	}
	return os.WriteFile(job.Path(job.Output), obj, 0o600)
}

func (f *Fake) Disassemble(ctx context.Context, job toolchain.Job) (disasm.Stream, error) {
	f.DisassembleCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.Missing {
		return nil, f.missing("objdump")
	}

	raw, err := os.ReadFile(job.Path(job.Raw))
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	text, ok := f.listing[hex.EncodeToString(raw)]
	f.mu.Unlock()
	if !ok {
		return nil, &toolchain.Error{
			Kind:       toolchain.DisassembleFailed,
			Tool:       "objdump",
			Diagnostic: fmt.Sprintf("cannot decode % x", raw),
		}
	}

	var stream disasm.Stream
	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		stream = append(stream, disasm.Inst{Text: line, Op: disasm.Mnemonic(line)})
	}
	return stream, nil
}

// RawExtract reads a Fake artifact: the file is the code itself.
func RawExtract(path string) (*elfx.Code, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &elfx.ExtractError{Path: path, Err: err}
	}
	return &elfx.Code{Bytes: b}, nil
}
