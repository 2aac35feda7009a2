// Package disasm defines a common instruction representation used
// by the disassembler backends.
package disasm

import "strings"

// Inst is a simplified decoded instruction.
type Inst struct {
	Offset uint64 // offset of the instruction in the input bytes
	Text   string // formatted disassembly string
	Op     string // mnemonic in lowercase
}

// Stream is a linear sequence of instructions.
type Stream []Inst

// Text renders the stream one instruction per line with a trailing newline,
// the form the source panel holds.
func (s Stream) Text() string {
	if len(s) == 0 {
		return ""
	}
	var b strings.Builder
	for _, in := range s {
		b.WriteString(in.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// Normalize collapses the whitespace between mnemonic and operands into a
// single space and trims the line.
func Normalize(line string) string {
	line = strings.TrimSpace(line)
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		return line[:i] + " " + strings.TrimSpace(line[i:])
	}
	return line
}

// Mnemonic returns the lowercase first word of a normalized instruction.
func Mnemonic(text string) string {
	if i := strings.IndexByte(text, ' '); i >= 0 {
		text = text[:i]
	}
	return strings.ToLower(text)
}
