// Package input maps decoded key names to the logical events the controller
// consumes.
package input

import (
	"strings"
	"unicode/utf8"
)

type Kind int

const (
	None Kind = iota
	Insert
	Newline
	Backspace
	Delete
	Left
	Right
	Up
	Down
	Home
	End
	FocusNext
	FocusPrev
	ToggleDialect
	ToggleBitness
	Quit
)

var kindNames = [...]string{
	None:          "none",
	Insert:        "insert",
	Newline:       "newline",
	Backspace:     "backspace",
	Delete:        "delete",
	Left:          "left",
	Right:         "right",
	Up:            "up",
	Down:          "down",
	Home:          "home",
	End:           "end",
	FocusNext:     "focus-next",
	FocusPrev:     "focus-prev",
	ToggleDialect: "toggle-dialect",
	ToggleBitness: "toggle-bitness",
	Quit:          "quit",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Event is one logical input. Rune is set for Insert only.
type Event struct {
	Kind Kind
	Rune rune
}

// Edits reports whether the event may change buffer content, as opposed to
// moving a cursor or switching focus.
func (e Event) Edits() bool {
	switch e.Kind {
	case Insert, Newline, Backspace, Delete:
		return true
	}
	return false
}

// Panel identifies one of the two editors.
type Panel int

const (
	SourcePanel Panel = iota
	BytesPanel
	panelCount
)

func (p Panel) String() string {
	if p == BytesPanel {
		return "bytes"
	}
	return "source"
}

func (p Panel) Next() Panel { return (p + 1) % panelCount }
func (p Panel) Prev() Panel { return (p + panelCount - 1) % panelCount }

var bindings = map[string]Kind{
	"tab":              FocusNext,
	"ctrl+right":       FocusNext,
	"ctrl+shift+right": FocusNext,
	"shift+tab":        FocusPrev,
	"ctrl+left":        FocusPrev,
	"ctrl+shift+left":  FocusPrev,
	"esc":              Quit,
	"ctrl+q":           Quit,
	"ctrl+c":           Quit,
	"ctrl+t":           ToggleDialect,
	"ctrl+b":           ToggleBitness,
	"enter":            Newline,
	"backspace":        Backspace,
	"delete":           Delete,
	"left":             Left,
	"right":            Right,
	"up":               Up,
	"down":             Down,
	"home":             Home,
	"ctrl+a":           Home,
	"end":              End,
	"ctrl+e":           End,
}

// FromKey translates a key name as printed by the terminal library
// ("ctrl+q", "shift+tab", "a") into an event. Unbound keys report false.
func FromKey(key string) (Event, bool) {
	if k, ok := bindings[key]; ok {
		return Event{Kind: k}, true
	}
	if key == "space" {
		return Event{Kind: Insert, Rune: ' '}, true
	}
	if utf8.RuneCountInString(key) == 1 {
		r, _ := utf8.DecodeRuneInString(key)
		if r >= ' ' && r != utf8.RuneError {
			return Event{Kind: Insert, Rune: r}, true
		}
	}
	return Event{}, false
}

// FromPaste turns pasted text into the events typing it would produce. Line
// breaks become Newline and other control characters except tab are dropped.
func FromPaste(text string) []Event {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []Event
	for _, r := range text {
		switch {
		case r == '\n' || r == '\r':
			out = append(out, Event{Kind: Newline})
		case r == '\t' || (r >= ' ' && r != 0x7f && r != utf8.RuneError):
			out = append(out, Event{Kind: Insert, Rune: r})
		}
	}
	return out
}
