package toolchain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"shellsync/internal/disasm"
)

// objdump -D --no-show-raw-insn prints "   5:\tmov    eax,0x1"
var objdumpLine = regexp.MustCompile(`^\s*([0-9a-f]+):\t(.*)$`)

// ParseObjdump extracts the instruction listing from objdump output. Lines
// objdump could not decode are rewritten as .byte directives over the
// corresponding slice of raw so the listing still assembles.
func ParseObjdump(out string, raw []byte) disasm.Stream {
	var stream disasm.Stream
	for _, line := range strings.Split(out, "\n") {
		m := objdumpLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		off, err := strconv.ParseUint(m[1], 16, 64)
		if err != nil {
			continue
		}
		text := disasm.Normalize(m[2])
		if text == "" {
			continue
		}
		stream = append(stream, disasm.Inst{Offset: off, Text: text, Op: disasm.Mnemonic(text)})
	}

	for i := range stream {
		if stream[i].Op != "(bad)" {
			continue
		}
		end := uint64(len(raw))
		if i+1 < len(stream) {
			end = stream[i+1].Offset
		}
		if start := stream[i].Offset; start < end && end <= uint64(len(raw)) {
			stream[i].Text = byteDirective(raw[start:end])
			stream[i].Op = ".byte"
		}
	}
	return stream
}

func byteDirective(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("0x%02x", v)
	}
	return ".byte " + strings.Join(parts, ", ")
}
