// Package colorize highlights x86 assembly for the terminal.
package colorize

import (
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/x/ansi"

	"shellsync/internal/config"
)

// Enabled reports whether highlighting is on. SHELLSYNC_NO_COLOR or
// NO_COLOR turn it off.
func Enabled() bool {
	return os.Getenv("SHELLSYNC_NO_COLOR") == "" && os.Getenv("NO_COLOR") == ""
}

// lexerFor picks the lexer matching the dialect: nasm understands Intel
// operand order and gas understands AT&T sigils.
func lexerFor(d config.Dialect) chroma.Lexer {
	candidates := []string{"nasm", "gas"}
	if d == config.ATT {
		candidates = []string{"gas", "GAS", "nasm"}
	}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

func style() *chroma.Style {
	for _, name := range []string{"shellsync-dark", "dracula", "monokai"} {
		if s := styles.Get(name); s != nil {
			return s
		}
	}
	return styles.Fallback
}

func formatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if f := formatters.Get(name); f != nil {
			return f
		}
	}
	return formatters.Fallback
}

// Block highlights a whole listing. On any lexer or formatter error the
// input is returned unchanged along with the error.
func Block(code string, d config.Dialect) (string, error) {
	if !Enabled() || code == "" {
		return code, nil
	}
	lexer := lexerFor(d)
	if lexer == nil {
		return code, nil
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}
	var buf strings.Builder
	if err := formatter().Format(&buf, style(), iterator); err != nil {
		return code, err
	}

	out := buf.String()
	if !strings.HasSuffix(code, "\n") {
		// lexers append a newline to their input; it may be wrapped in
		// escape sequences
		if i := strings.LastIndex(out, "\n"); i >= 0 && Strip(out[i+1:]) == "" {
			out = out[:i] + out[i+1:]
		}
	}
	return out, nil
}

// Line highlights a single line, falling back to the plain text.
func Line(line string, d config.Dialect) string {
	out, err := Block(line, d)
	if err != nil {
		return line
	}
	return out
}

// Strip removes terminal escape sequences.
func Strip(s string) string {
	return ansi.Strip(s)
}
