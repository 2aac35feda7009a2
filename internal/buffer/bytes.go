package buffer

// RowWidth is the number of bytes shown per row of the byte panel.
const RowWidth = 16

// Bytes is machine code with a byte-index cursor. Hex input arrives one
// nibble at a time: the first digit is held as pending and the second one
// inserts a whole byte, so every edit changes exactly one byte.
type Bytes struct {
	data    []byte
	cursor  int
	pending int // -1 when no nibble is held
}

func NewBytes(b []byte) *Bytes {
	buf := &Bytes{pending: -1}
	buf.SetBytes(b)
	return buf
}

// SetBytes replaces the content with a copy of b and clamps the cursor. A
// held nibble is kept: it is input the user has not finished typing.
func (b *Bytes) SetBytes(data []byte) {
	b.data = append([]byte{}, data...)
	if b.cursor > len(b.data) {
		b.cursor = len(b.data)
	}
}

// Bytes returns a copy of the content.
func (b *Bytes) Bytes() []byte { return append([]byte{}, b.data...) }

func (b *Bytes) Len() int    { return len(b.data) }
func (b *Bytes) Cursor() int { return b.cursor }

// Pending returns the held nibble, if any, as a lowercase hex digit.
func (b *Bytes) Pending() (rune, bool) {
	if b.pending < 0 {
		return 0, false
	}
	return rune(hexDigits[b.pending]), true
}

// ClearPending drops a held nibble.
func (b *Bytes) ClearPending() { b.pending = -1 }

func nibble(r rune) (int, bool) {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0'), true
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10, true
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10, true
	}
	return 0, false
}

// InputNibble feeds one typed character. It reports whether the content
// changed; non-hex characters and the first digit of a pair do not.
func (b *Bytes) InputNibble(r rune) bool {
	n, ok := nibble(r)
	if !ok {
		return false
	}
	if b.pending < 0 {
		b.pending = n
		return false
	}
	v := byte(b.pending<<4 | n)
	b.pending = -1
	b.data = append(b.data[:b.cursor], append([]byte{v}, b.data[b.cursor:]...)...)
	b.cursor++
	return true
}

// Backspace discards a pending nibble, or else removes the byte before the
// cursor.
func (b *Bytes) Backspace() bool {
	if b.pending >= 0 {
		b.pending = -1
		return false
	}
	if b.cursor == 0 {
		return false
	}
	b.data = append(b.data[:b.cursor-1], b.data[b.cursor:]...)
	b.cursor--
	return true
}

// Delete removes the byte under the cursor.
func (b *Bytes) Delete() bool {
	b.pending = -1
	if b.cursor >= len(b.data) {
		return false
	}
	b.data = append(b.data[:b.cursor], b.data[b.cursor+1:]...)
	return true
}

func (b *Bytes) move(to int) {
	b.pending = -1
	b.cursor = max(0, min(to, len(b.data)))
}

func (b *Bytes) Left()  { b.move(b.cursor - 1) }
func (b *Bytes) Right() { b.move(b.cursor + 1) }
func (b *Bytes) Up()    { b.move(b.cursor - RowWidth) }
func (b *Bytes) Down()  { b.move(b.cursor + RowWidth) }
func (b *Bytes) Home()  { b.move(b.cursor - b.cursor%RowWidth) }

// End moves to the last byte of the row, or past the final byte on the last
// row so typing appends.
func (b *Bytes) End() {
	end := b.cursor - b.cursor%RowWidth + RowWidth - 1
	if end >= len(b.data) {
		end = len(b.data)
	}
	b.move(end)
}
