// Package buffer holds the two editable representations: assembly text and
// machine code bytes. Neither type is safe for concurrent use; both are owned
// by the engine and touched only from the controller goroutine.
package buffer

import "strings"

// Source is assembly text stored as lines of runes with a row/column cursor.
type Source struct {
	lines    [][]rune
	row, col int
}

func NewSource(text string) *Source {
	s := &Source{}
	s.SetText(text)
	return s
}

// SetText replaces the content and clamps the cursor into it.
func (s *Source) SetText(text string) {
	parts := strings.Split(text, "\n")
	s.lines = make([][]rune, len(parts))
	for i, p := range parts {
		s.lines[i] = []rune(p)
	}
	s.clamp()
}

func (s *Source) Text() string {
	var b strings.Builder
	for i, l := range s.lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(l))
	}
	return b.String()
}

func (s *Source) Lines() []string {
	out := make([]string, len(s.lines))
	for i, l := range s.lines {
		out[i] = string(l)
	}
	return out
}

func (s *Source) Cursor() (row, col int) { return s.row, s.col }

func (s *Source) clamp() {
	if s.row >= len(s.lines) {
		s.row = len(s.lines) - 1
	}
	if s.row < 0 {
		s.row = 0
	}
	if n := len(s.lines[s.row]); s.col > n {
		s.col = n
	}
	if s.col < 0 {
		s.col = 0
	}
}

// InsertRune inserts r at the cursor and advances it. Control characters are
// refused.
func (s *Source) InsertRune(r rune) bool {
	if (r < ' ' && r != '\t') || r == 0x7f {
		return false
	}
	line := s.lines[s.row]
	line = append(line[:s.col], append([]rune{r}, line[s.col:]...)...)
	s.lines[s.row] = line
	s.col++
	return true
}

// Newline splits the current line at the cursor.
func (s *Source) Newline() bool {
	line := s.lines[s.row]
	head := append([]rune(nil), line[:s.col]...)
	tail := append([]rune(nil), line[s.col:]...)

	lines := make([][]rune, 0, len(s.lines)+1)
	lines = append(lines, s.lines[:s.row]...)
	lines = append(lines, head, tail)
	lines = append(lines, s.lines[s.row+1:]...)
	s.lines = lines
	s.row++
	s.col = 0
	return true
}

// Backspace removes the rune before the cursor, joining with the previous
// line at column zero. It reports whether the text changed.
func (s *Source) Backspace() bool {
	if s.col > 0 {
		line := s.lines[s.row]
		s.lines[s.row] = append(line[:s.col-1], line[s.col:]...)
		s.col--
		return true
	}
	if s.row == 0 {
		return false
	}
	prev := s.lines[s.row-1]
	s.col = len(prev)
	s.lines[s.row-1] = append(prev, s.lines[s.row]...)
	s.lines = append(s.lines[:s.row], s.lines[s.row+1:]...)
	s.row--
	return true
}

// Delete removes the rune under the cursor, joining with the next line at
// the end of a line.
func (s *Source) Delete() bool {
	line := s.lines[s.row]
	if s.col < len(line) {
		s.lines[s.row] = append(line[:s.col], line[s.col+1:]...)
		return true
	}
	if s.row == len(s.lines)-1 {
		return false
	}
	s.lines[s.row] = append(line, s.lines[s.row+1]...)
	s.lines = append(s.lines[:s.row+1], s.lines[s.row+2:]...)
	return true
}

func (s *Source) Left() {
	switch {
	case s.col > 0:
		s.col--
	case s.row > 0:
		s.row--
		s.col = len(s.lines[s.row])
	}
}

func (s *Source) Right() {
	switch {
	case s.col < len(s.lines[s.row]):
		s.col++
	case s.row < len(s.lines)-1:
		s.row++
		s.col = 0
	}
}

func (s *Source) Up() {
	if s.row > 0 {
		s.row--
		s.clamp()
	}
}

func (s *Source) Down() {
	if s.row < len(s.lines)-1 {
		s.row++
		s.clamp()
	}
}

func (s *Source) Home() { s.col = 0 }
func (s *Source) End()  { s.col = len(s.lines[s.row]) }
