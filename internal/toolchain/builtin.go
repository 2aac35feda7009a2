package toolchain

import (
	"context"
	"errors"
	"os"

	"golang.org/x/arch/x86/x86asm"

	"shellsync/internal/config"
	"shellsync/internal/disasm"
)

var errBuiltinAssemble = errors.New("the builtin backend only disassembles")

// Builtin disassembles in-process with x86asm. Assembling and linking are
// delegated to Fallback.
type Builtin struct {
	Fallback Toolchain
}

func (b *Builtin) Assemble(ctx context.Context, job Job) error {
	if b.Fallback == nil {
		return &Error{Kind: LaunchFailed, Tool: "builtin", Err: errBuiltinAssemble, Diagnostic: errBuiltinAssemble.Error()}
	}
	return b.Fallback.Assemble(ctx, job)
}

func (b *Builtin) Link(ctx context.Context, job Job) error {
	if b.Fallback == nil {
		return &Error{Kind: LaunchFailed, Tool: "builtin", Err: errBuiltinAssemble, Diagnostic: errBuiltinAssemble.Error()}
	}
	return b.Fallback.Link(ctx, job)
}

func (b *Builtin) Disassemble(ctx context.Context, job Job) (disasm.Stream, error) {
	raw, err := os.ReadFile(job.Path(job.Raw))
	if err != nil {
		return nil, &Error{Kind: DisassembleFailed, Tool: "builtin", Diagnostic: err.Error(), Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, classify(ctx, "builtin", DisassembleFailed, err, "")
	}
	return Decode(raw, job.Session), nil
}

// Decode disassembles raw with x86asm. Bytes that do not decode become
// single-byte .byte directives and decoding resumes at the next byte. x86asm
// reports a truncated instruction as Op 0 with no error.
func Decode(raw []byte, s config.Session) disasm.Stream {
	mode := 64
	if s.Bitness == config.Bits32 {
		mode = 32
	}

	var stream disasm.Stream
	for pc := 0; pc < len(raw); {
		inst, err := x86asm.Decode(raw[pc:], mode)
		if err != nil || inst.Len == 0 || inst.Op == 0 {
			stream = append(stream, disasm.Inst{
				Offset: uint64(pc),
				Text:   byteDirective(raw[pc : pc+1]),
				Op:     ".byte",
			})
			pc++
			continue
		}

		var text string
		if s.Dialect == config.ATT {
			text = x86asm.GNUSyntax(inst, uint64(pc), nil)
		} else {
			text = x86asm.IntelSyntax(inst, uint64(pc), nil)
		}
		text = disasm.Normalize(text)
		stream = append(stream, disasm.Inst{Offset: uint64(pc), Text: text, Op: disasm.Mnemonic(text)})
		pc += inst.Len
	}
	return stream
}
