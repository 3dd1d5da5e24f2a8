package interp

import (
	"errors"
	"fmt"
)

// ErrTapeUnderflow indicates an attempt to move the cursor left of cell 0.
// The tape grows without bound on the right but has a hard left edge.
var ErrTapeUnderflow = errors.New("tape underflow")

// Tape is a growable sequence of unsigned 8-bit cells with a cursor
// addressing exactly one current cell. A new tape holds a single zero
// cell with the cursor on it. The tape length never decreases.
type Tape struct {
	cells []byte
	pos   int
}

// NewTape creates a tape with one zero cell.
func NewTape() *Tape {
	return &Tape{cells: make([]byte, 1)}
}

// RestoreTape reconstructs a tape from a snapshot of its cells and cursor
// position. The cells are copied; the caller keeps ownership of the slice.
func RestoreTape(cells []byte, pos int) (*Tape, error) {
	if len(cells) == 0 {
		return nil, fmt.Errorf("restore tape: no cells")
	}
	if pos < 0 || pos >= len(cells) {
		return nil, fmt.Errorf("restore tape: cursor %d out of range [0,%d)", pos, len(cells))
	}
	return &Tape{
		cells: append([]byte(nil), cells...),
		pos:   pos,
	}, nil
}

// Increment adds one to the current cell, wrapping modulo 256.
func (t *Tape) Increment() {
	t.cells[t.pos]++
}

// Decrement subtracts one from the current cell, wrapping modulo 256.
func (t *Tape) Decrement() {
	t.cells[t.pos]--
}

// MoveRight advances the cursor one cell, appending a fresh zero cell
// first if the cursor is at the right end. It always succeeds; the only
// limit on rightward growth is host memory.
func (t *Tape) MoveRight() {
	if t.pos == len(t.cells)-1 {
		t.cells = append(t.cells, 0)
	}
	t.pos++
}

// MoveLeft retreats the cursor one cell. It fails with ErrTapeUnderflow
// if the cursor is already on cell 0.
func (t *Tape) MoveLeft() error {
	if t.pos == 0 {
		return ErrTapeUnderflow
	}
	t.pos--
	return nil
}

// Read returns the byte at the cursor.
func (t *Tape) Read() byte {
	return t.cells[t.pos]
}

// Write sets the byte at the cursor.
func (t *Tape) Write(b byte) {
	t.cells[t.pos] = b
}

// Pos returns the cursor position.
func (t *Tape) Pos() int {
	return t.pos
}

// Len returns the number of cells.
func (t *Tape) Len() int {
	return len(t.cells)
}

// Cells returns a copy of the cell contents.
func (t *Tape) Cells() []byte {
	return append([]byte(nil), t.cells...)
}
