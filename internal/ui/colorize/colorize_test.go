package colorize

import (
	"strings"
	"testing"

	"shellsync/internal/config"
)

func TestLinePreservesText(t *testing.T) {
	t.Setenv("SHELLSYNC_NO_COLOR", "")
	t.Setenv("NO_COLOR", "")

	tests := []struct {
		name    string
		line    string
		dialect config.Dialect
	}{
		{"intel", "mov eax, 0x1", config.Intel},
		{"att", "mov $0x1,%eax", config.ATT},
		{"directive", ".byte 0x06", config.Intel},
		{"label", "loop: dec ecx", config.Intel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Line(tt.line, tt.dialect)
			if Strip(got) != tt.line {
				t.Errorf("Strip(Line(%q)) = %q", tt.line, Strip(got))
			}
			if strings.Contains(got, "\n") {
				t.Errorf("Line(%q) added a newline: %q", tt.line, got)
			}
		})
	}
}

func TestNoColor(t *testing.T) {
	t.Setenv("SHELLSYNC_NO_COLOR", "1")
	if got := Line("nop", config.Intel); got != "nop" {
		t.Errorf("Line() = %q with colors disabled", got)
	}
	if Enabled() {
		t.Error("Enabled() = true with SHELLSYNC_NO_COLOR set")
	}
}

func TestBlockKeepsTrailingNewline(t *testing.T) {
	t.Setenv("SHELLSYNC_NO_COLOR", "")
	t.Setenv("NO_COLOR", "")
	got, err := Block("nop\nret\n", config.Intel)
	if err != nil {
		t.Fatal(err)
	}
	if Strip(got) != "nop\nret\n" {
		t.Errorf("Strip(Block()) = %q", Strip(got))
	}
}

func TestStrip(t *testing.T) {
	if got := Strip("\x1b[38;2;1;2;3mnop\x1b[0m"); got != "nop" {
		t.Errorf("Strip() = %q", got)
	}
}
