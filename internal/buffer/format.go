package buffer

import (
	"bytes"
	"fmt"
	"strings"
)

const hexDigits = "0123456789abcdef"

// Hex renders b as lowercase space separated pairs: "b8 01 00 00 00".
func Hex(b []byte) string {
	return fmt.Sprintf("% x", b)
}

// Escaped renders b as a C/Python string body: "\xb8\x01".
func Escaped(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 4)
	for _, c := range b {
		sb.WriteString(`\x`)
		sb.WriteByte(hexDigits[c>>4])
		sb.WriteByte(hexDigits[c&0x0f])
	}
	return sb.String()
}

// NullCount reports how many zero bytes b holds. Shellcode passed through
// string functions must usually have none.
func NullCount(b []byte) int {
	return bytes.Count(b, []byte{0})
}

// ParseHex reads hex pairs, ignoring whitespace, quotes, commas and an
// optional 0x or \x prefix before each pair.
func ParseHex(s string) ([]byte, error) {
	r := strings.NewReplacer(`\x`, "", "0x", "", "0X", "", ",", " ", `"`, " ", "'", " ")
	fields := strings.Fields(r.Replace(s))
	digits := strings.Join(fields, "")
	if len(digits)%2 != 0 {
		return nil, fmt.Errorf("odd number of hex digits (%d)", len(digits))
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		hi, ok1 := nibble(rune(digits[i]))
		lo, ok2 := nibble(rune(digits[i+1]))
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("invalid hex digit in %q at offset %d", digits[i:i+2], i)
		}
		out = append(out, byte(hi<<4|lo))
	}
	return out, nil
}
