package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bfklang/bfk/interp"
)

// runREPL starts an interactive read-eval-print loop. The interpreter is
// reused across lines, so the tape and the total operation counter carry
// from one entry to the next.
func runREPL(in *interp.Interpreter) {
	fmt.Println("bfk REPL (type 'exit' to quit, ':help' for commands)")
	fmt.Printf("Budget: %d operations\n", in.MaxOperations())
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(">> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		// Handle exit
		if line == "exit" || line == "quit" {
			break
		}

		// Handle REPL commands (start with ':')
		if strings.HasPrefix(line, ":") {
			in = handleREPLCommand(in, line)
			continue
		}

		evalAndPrint(in, line)
	}

	fmt.Println()
}

// evalAndPrint runs one line of program text. A '!' splits the line into
// program and inline input for ',' (e.g. ",.! A" echoes "A").
func evalAndPrint(in *interp.Interpreter, line string) {
	program, input := line, ""
	if i := strings.Index(line, "!"); i >= 0 {
		program = line[:i]
		input = strings.TrimPrefix(line[i+1:], " ")
	}

	var out strings.Builder
	n, err := in.Execute([]byte(program), strings.NewReader(input), &out)

	if out.Len() > 0 {
		fmt.Printf("%s\n", out.String())
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
	}
	fmt.Printf("  (%d ops, %d total, cell %d = %d)\n", n, in.Operations(), in.Tape().Pos(), in.Tape().Read())
}

// handleREPLCommand processes ':' commands, returning the interpreter to
// use from here on (':reset' swaps in a fresh one).
func handleREPLCommand(in *interp.Interpreter, line string) *interp.Interpreter {
	fields := strings.Fields(line)

	switch fields[0] {
	case ":help":
		fmt.Println("  :tape        Show the tape around the cursor")
		fmt.Println("  :ops         Show operation counter and ceiling")
		fmt.Println("  :max <n>     Set the operation ceiling")
		fmt.Println("  :reset       Fresh tape and counter (keeps the ceiling)")
		fmt.Println("  code ! in    Run code with 'in' as the ',' input stream")

	case ":tape":
		printTape(in.Tape())

	case ":ops":
		fmt.Printf("%d of %d operations used\n", in.Operations(), in.MaxOperations())

	case ":max":
		if len(fields) != 2 {
			fmt.Println("Usage: :max <n>")
			break
		}
		n, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil || n == 0 {
			fmt.Printf("Bad ceiling %q\n", fields[1])
			break
		}
		prev := in.SetMaxOperations(n)
		fmt.Printf("Ceiling %d (was %d)\n", n, prev)

	case ":reset":
		fresh := interp.New()
		fresh.SetMaxOperations(in.MaxOperations())
		fresh.Trace = in.Trace
		fmt.Println("Reset")
		return fresh

	default:
		fmt.Printf("Unknown command %s (try :help)\n", fields[0])
	}

	return in
}

// printTape shows a window of cells around the cursor.
func printTape(t *interp.Tape) {
	const window = 10

	cells := t.Cells()
	lo, hi := t.Pos()-window, t.Pos()+window+1
	if lo < 0 {
		lo = 0
	}
	if hi > len(cells) {
		hi = len(cells)
	}

	for i := lo; i < hi; i++ {
		marker := " "
		if i == t.Pos() {
			marker = ">"
		}
		fmt.Printf(" %s[%d] %3d\n", marker, i, cells[i])
	}
	fmt.Printf("%d cells total\n", len(cells))
}
