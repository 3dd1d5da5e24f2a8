// Package frame parses the framed console format that wraps a program and
// its input on a single stream: an input character count, a program line
// count, a '$'-terminated input payload, then the program lines. The lines
// are concatenated with their terminators stripped, so a program may be
// split across lines at any point.
//
// The format, by example:
//
//	2 1
//	hi$
//	,.,.
//
// declares a 2-byte input payload ("hi") and a 1-line program (",.,.").
package frame

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Job is a parsed frame: one program and the input bytes it will consume.
type Job struct {
	Input   []byte
	Program []byte
}

// CountError reports a mismatch between a declared count and what the
// stream actually carried.
type CountError struct {
	What     string // "characters" or "lines"
	Expected int
	Received int
}

func (e *CountError) Error() string {
	return fmt.Sprintf("expected %d %s, received %d", e.Expected, e.What, e.Received)
}

// Read parses one framed job from r. Count mismatches are reported as a
// *CountError; malformed headers and stream failures are wrapped errors.
func Read(r io.Reader) (*Job, error) {
	br := bufio.NewReader(r)

	var inputCount, lineCount int
	if _, err := fmt.Fscan(br, &inputCount, &lineCount); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	if inputCount < 0 || lineCount < 0 {
		return nil, fmt.Errorf("read frame header: negative count")
	}
	if err := skipSpace(br); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	// Input payload runs up to the '$' delimiter, which is consumed and
	// discarded. A stream that ends before the delimiter contributes
	// whatever it held; the count check catches the truncation.
	payload, err := br.ReadBytes('$')
	switch err {
	case nil:
		payload = payload[:len(payload)-1]
	case io.EOF:
		// No delimiter; keep what was read.
	default:
		return nil, fmt.Errorf("read input payload: %w", err)
	}
	if len(payload) != inputCount {
		return nil, &CountError{What: "characters", Expected: inputCount, Received: len(payload)}
	}

	if err := skipSpace(br); err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}

	var program []byte
	lines := 0
	for lines < lineCount {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read program: %w", err)
		}
		if line == "" {
			break // stream exhausted
		}
		program = append(program, strings.TrimSuffix(line, "\n")...)
		lines++
		if err == io.EOF {
			break
		}
	}
	if lines != lineCount {
		return nil, &CountError{What: "lines", Expected: lineCount, Received: lines}
	}

	return &Job{Input: payload, Program: program}, nil
}

// skipSpace consumes whitespace, stopping at the first non-space byte or
// end of stream.
func skipSpace(br *bufio.Reader) error {
	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if !isSpace(b) {
			return br.UnreadByte()
		}
	}
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
