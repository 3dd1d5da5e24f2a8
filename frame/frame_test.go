package frame

import (
	"errors"
	"strings"
	"testing"
)

func TestReadSimpleFrame(t *testing.T) {
	job, err := Read(strings.NewReader("2 1\nhi$\n,.,.\n"))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(job.Input) != "hi" {
		t.Errorf("Input = %q, want \"hi\"", job.Input)
	}
	if string(job.Program) != ",.,." {
		t.Errorf("Program = %q, want \",.,.\"", job.Program)
	}
}

func TestReadEmptyInput(t *testing.T) {
	job, err := Read(strings.NewReader("0 1\n$\n+++.\n"))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(job.Input) != 0 {
		t.Errorf("Input = %q, want empty", job.Input)
	}
	if string(job.Program) != "+++." {
		t.Errorf("Program = %q, want \"+++.\"", job.Program)
	}
}

func TestReadMultiLineProgram(t *testing.T) {
	// Line terminators are stripped; the program is the concatenation
	job, err := Read(strings.NewReader("1 3\nA$\n,[\n.\n]\n"))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(job.Program) != ",[.]" {
		t.Errorf("Program = %q, want \",[.]\"", job.Program)
	}
}

func TestReadPayloadWithNewlines(t *testing.T) {
	// The payload runs to the '$', newlines included
	job, err := Read(strings.NewReader("3 1\na\nb$\n,.\n"))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(job.Input) != "a\nb" {
		t.Errorf("Input = %q, want \"a\\nb\"", job.Input)
	}
}

func TestReadCharacterCountMismatch(t *testing.T) {
	_, err := Read(strings.NewReader("5 1\nhi$\n,.\n"))
	var ce *CountError
	if !errors.As(err, &ce) {
		t.Fatalf("Read = %v, want *CountError", err)
	}
	if ce.What != "characters" || ce.Expected != 5 || ce.Received != 2 {
		t.Errorf("CountError = %+v, want {characters 5 2}", ce)
	}
	if got := ce.Error(); got != "expected 5 characters, received 2" {
		t.Errorf("Error() = %q", got)
	}
}

func TestReadLineCountMismatch(t *testing.T) {
	_, err := Read(strings.NewReader("0 3\n$\n+.\n"))
	var ce *CountError
	if !errors.As(err, &ce) {
		t.Fatalf("Read = %v, want *CountError", err)
	}
	if ce.What != "lines" || ce.Expected != 3 || ce.Received != 1 {
		t.Errorf("CountError = %+v, want {lines 3 1}", ce)
	}
}

func TestReadMissingDelimiter(t *testing.T) {
	// Without a '$' the whole remainder is payload; the count check trips
	_, err := Read(strings.NewReader("2 1\nhi there"))
	var ce *CountError
	if !errors.As(err, &ce) {
		t.Fatalf("Read = %v, want *CountError", err)
	}
	if ce.What != "characters" {
		t.Errorf("CountError.What = %q, want \"characters\"", ce.What)
	}
}

func TestReadBadHeader(t *testing.T) {
	if _, err := Read(strings.NewReader("not numbers\n")); err == nil {
		t.Error("Read with a malformed header succeeded, want error")
	}
	if _, err := Read(strings.NewReader("")); err == nil {
		t.Error("Read on an empty stream succeeded, want error")
	}
}

func TestReadLastLineWithoutNewline(t *testing.T) {
	job, err := Read(strings.NewReader("0 1\n$\n++."))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(job.Program) != "++." {
		t.Errorf("Program = %q, want \"++.\"", job.Program)
	}
}
