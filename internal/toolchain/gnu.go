package toolchain

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"shellsync/internal/config"
	"shellsync/internal/disasm"
)

// GNU drives binutils: as, ld and objdump.
type GNU struct {
	Assembler string
	Linker    string
	Objdump   string
}

// NewGNU returns a GNU toolchain using the tool names from cfg.
func NewGNU(cfg config.Config) *GNU {
	return &GNU{
		Assembler: cfg.Assembler,
		Linker:    cfg.Linker,
		Objdump:   cfg.Objdump,
	}
}

// run executes a tool inside the job directory and returns stdout and stderr.
func run(ctx context.Context, dir, tool string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Dir = dir
	cmd.Stdin = nil
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// diagnostic joins what a tool printed, trimmed of surrounding blank lines.
func diagnostic(stdout, stderr string) string {
	stdout = strings.TrimSpace(stdout)
	stderr = strings.TrimSpace(stderr)
	switch {
	case stdout == "":
		return stderr
	case stderr == "":
		return stdout
	default:
		return stdout + "\n" + stderr
	}
}

// AssembleArgs returns the assembler command line for a job.
func AssembleArgs(job Job) []string {
	var args []string
	if job.Session.Bitness == config.Bits32 {
		args = append(args, "--32")
	} else {
		args = append(args, "--64")
	}
	if job.Session.Dialect == config.Intel {
		// same as .intel_syntax noprefix
		args = append(args, "-msyntax=intel", "-mnaked-reg")
	}
	return append(args, job.Source, "-o", job.Object)
}

// LinkArgs returns the linker command line for a job. The entry point is
// pinned to address 0 and the stack marked non-executable so ld has nothing
// to warn about for a bare code fragment.
func LinkArgs(job Job) []string {
	emulation := "elf_x86_64"
	if job.Session.Bitness == config.Bits32 {
		emulation = "elf_i386"
	}
	return []string{"-m", emulation, "-z", "noexecstack", "-e", "0", job.Object, "-o", job.Output}
}

// ObjdumpArgs returns the objdump command line for a job.
func ObjdumpArgs(job Job) []string {
	machine := "i386:x86-64"
	if job.Session.Bitness == config.Bits32 {
		machine = "i386"
	}
	args := []string{"-D", "-z", "-b", "binary", "-m", machine, "--no-show-raw-insn"}
	if job.Session.Dialect == config.Intel {
		args = append(args, "-M", "intel")
	}
	return append(args, job.Raw)
}

func (g *GNU) Assemble(ctx context.Context, job Job) error {
	stdout, stderr, err := run(ctx, job.Dir, g.Assembler, AssembleArgs(job)...)
	if err != nil || strings.TrimSpace(stderr) != "" {
		return classify(ctx, g.Assembler, AssembleFailed, err, diagnostic(stdout, stderr))
	}
	return nil
}

func (g *GNU) Link(ctx context.Context, job Job) error {
	stdout, stderr, err := run(ctx, job.Dir, g.Linker, LinkArgs(job)...)
	if err != nil || strings.TrimSpace(stderr) != "" {
		return classify(ctx, g.Linker, LinkFailed, err, diagnostic(stdout, stderr))
	}
	return nil
}

func (g *GNU) Disassemble(ctx context.Context, job Job) (disasm.Stream, error) {
	stdout, stderr, err := run(ctx, job.Dir, g.Objdump, ObjdumpArgs(job)...)
	if err != nil || strings.TrimSpace(stderr) != "" {
		return nil, classify(ctx, g.Objdump, DisassembleFailed, err, diagnostic(stdout, stderr))
	}

	raw, err := os.ReadFile(job.Path(job.Raw))
	if err != nil {
		return nil, &Error{Kind: DisassembleFailed, Tool: g.Objdump, Diagnostic: err.Error(), Err: err}
	}
	stream := ParseObjdump(stdout, raw)
	if len(stream) == 0 && len(raw) > 0 {
		return nil, &Error{Kind: DisassembleFailed, Tool: g.Objdump, Diagnostic: diagnostic(stdout, "no instructions in objdump output")}
	}
	return stream, nil
}
