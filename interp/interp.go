package interp

import (
	"fmt"
	"io"
)

// DefaultMaxOperations is the operation ceiling for a new Interpreter.
const DefaultMaxOperations = 100000

// Interpreter executes programs against an input and output byte stream
// using a single Tape. It enforces a global operation budget: the total
// counter is monotonic for the life of the instance and carries across
// Execute calls, so a reused Interpreter shares one budget across runs.
type Interpreter struct {
	tape   *Tape
	ops    uint64 // total characters dispatched, never reset
	maxOps uint64

	// Trace logs every dispatched character to stdout when set.
	Trace bool
}

// New creates an Interpreter with a fresh tape and the default budget.
func New() *Interpreter {
	return &Interpreter{
		tape:   NewTape(),
		maxOps: DefaultMaxOperations,
	}
}

// Restore creates an Interpreter over an existing tape with the given
// operation counter and ceiling. Used to resume a saved machine state.
func Restore(t *Tape, ops, maxOps uint64) *Interpreter {
	return &Interpreter{
		tape:   t,
		ops:    ops,
		maxOps: maxOps,
	}
}

// SetMaxOperations reconfigures the budget ceiling and returns the
// previous value. The new ceiling takes effect on the next budget check.
func (in *Interpreter) SetMaxOperations(n uint64) uint64 {
	prev := in.maxOps
	in.maxOps = n
	return prev
}

// MaxOperations returns the current budget ceiling.
func (in *Interpreter) MaxOperations() uint64 {
	return in.maxOps
}

// Operations returns the total operation count across all Execute calls.
func (in *Interpreter) Operations() uint64 {
	return in.ops
}

// Tape returns the interpreter's tape.
func (in *Interpreter) Tape() *Tape {
	return in.tape
}

// Execute runs a program against the given streams and returns the number
// of operations dispatched in this call. An empty program is a no-op.
//
// Each scanned character costs one operation, inert characters included;
// the budget is checked before the character takes effect. Failures are
// returned as a *PositionError wrapping ErrTapeUnderflow, ErrUnclosedLoop,
// ErrUnopenedLoop or ErrBudgetExceeded. Output already written and tape
// mutations already made are kept on failure; there is no rollback.
//
// Loop semantics: '[' with a nonzero current cell pushes its position and
// enters the body; with a zero cell it scans forward to the first ']'
// regardless of bracket depth and resumes after it. ']' with a nonzero
// cell jumps back to the '[' on top of the stack; with a zero cell it
// pops. The characters passed over by the forward scan are part of the
// '[' step and consume no extra budget.
func (in *Interpreter) Execute(program []byte, input io.Reader, output io.Writer) (uint64, error) {
	start := in.ops
	var stack []int // positions of open, taken '[' instructions

	for pc := 0; pc < len(program); pc++ {
		in.ops++
		if in.ops > in.maxOps {
			return in.ops - start, &PositionError{Pos: pc, Err: ErrBudgetExceeded}
		}

		c := program[pc]
		if in.Trace {
			fmt.Printf("[%05d] %q pos=%d cell=%d ops=%d\n", pc, c, in.tape.Pos(), in.tape.Read(), in.ops)
		}

		switch c {
		case '+':
			in.tape.Increment()

		case '-':
			in.tape.Decrement()

		case '<':
			if err := in.tape.MoveLeft(); err != nil {
				return in.ops - start, &PositionError{Pos: pc, Err: err}
			}

		case '>':
			in.tape.MoveRight()

		case '.':
			if _, err := output.Write([]byte{in.tape.Read()}); err != nil {
				return in.ops - start, fmt.Errorf("write output: %w", err)
			}

		case ',':
			b, ok, err := readByte(input)
			if err != nil {
				return in.ops - start, fmt.Errorf("read input: %w", err)
			}
			if ok {
				in.tape.Write(b)
			}
			// Exhausted input leaves the cell unchanged.

		case '[':
			if in.tape.Read() != 0 {
				stack = append(stack, pc)
				continue
			}
			// Zero cell: skip to the first ']' ahead. The scan is a plain
			// character scan, not a depth-aware one; nested brackets in the
			// skipped range are not tracked. Preserved historical behavior.
			open := pc
			for pc++; pc < len(program); pc++ {
				if program[pc] == ']' {
					break
				}
			}
			if pc == len(program) {
				return in.ops - start, &PositionError{Pos: open, Err: ErrUnclosedLoop}
			}

		case ']':
			if len(stack) == 0 {
				return in.ops - start, &PositionError{Pos: pc, Err: ErrUnopenedLoop}
			}
			if in.tape.Read() != 0 {
				// Re-enter the loop body. pc lands on the '[' and the loop
				// increment steps past it, so the '[' is not re-dispatched
				// and its stack entry stays put.
				pc = stack[len(stack)-1]
			} else {
				stack = stack[:len(stack)-1]
			}

		default:
			// Inert character. No effect, but it was scanned and counted.
		}
	}

	return in.ops - start, nil
}

// readByte pulls one byte from r. The second result is false when the
// stream is exhausted. A nil reader counts as exhausted.
func readByte(r io.Reader) (byte, bool, error) {
	if r == nil {
		return 0, false, nil
	}
	var buf [1]byte
	for {
		n, err := r.Read(buf[:])
		if n > 0 {
			return buf[0], true, nil
		}
		if err == io.EOF {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
	}
}
