package integration_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bfklang/bfk/frame"
	"github.com/bfklang/bfk/interp"
	"github.com/bfklang/bfk/snapshot"
)

// ---------------------------------------------------------------------------
// End-to-end: framed job -> interpreter -> snapshot -> resume
// ---------------------------------------------------------------------------

// runFramed parses a framed job and executes it on a fresh interpreter.
func runFramed(t *testing.T, framed string) (*interp.Interpreter, string, error) {
	t.Helper()
	job, err := frame.Read(strings.NewReader(framed))
	if err != nil {
		t.Fatalf("frame.Read failed: %v", err)
	}
	in := interp.New()
	var out bytes.Buffer
	_, runErr := in.Execute(job.Program, bytes.NewReader(job.Input), &out)
	return in, out.String(), runErr
}

func TestFramedJobEcho(t *testing.T) {
	// 1 input byte, 2 program lines concatenated to ",."
	_, out, err := runFramed(t, "1 2\nA$\n,\n.\n")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "A" {
		t.Errorf("output = %q, want \"A\"", out)
	}
}

func TestFramedJobUnclosedLoop(t *testing.T) {
	_, out, err := runFramed(t, "0 1\n$\n[\n")
	if !errors.Is(err, interp.ErrUnclosedLoop) {
		t.Fatalf("run = %v, want ErrUnclosedLoop", err)
	}
	if out != "" {
		t.Errorf("output = %q, want empty", out)
	}
}

func TestSnapshotAcrossProcessBoundary(t *testing.T) {
	// First "process": run half the work and save an image
	in := interp.New()
	in.SetMaxOperations(1000)
	var out bytes.Buffer
	if _, err := in.Execute([]byte("+++++"), nil, &out); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "half.bfki")
	if err := snapshot.WriteFile(path, in); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// Second "process": resume and finish
	resumed, err := snapshot.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	out.Reset()
	if _, err := resumed.Execute([]byte("+++++."), nil, &out); err != nil {
		t.Fatalf("resumed run failed: %v", err)
	}
	if out.String() != "\x0a" {
		t.Errorf("output = %q, want \"\\x0a\" (5+5 increments)", out.String())
	}
	if resumed.Operations() != 11 {
		t.Errorf("total ops = %d, want 11 across both runs", resumed.Operations())
	}
}

func TestBudgetSpansFramedRuns(t *testing.T) {
	// One interpreter serving several framed jobs shares one budget
	in := interp.New()
	in.SetMaxOperations(10)

	jobs := []string{"0 1\n$\n++++\n", "0 1\n$\n++++\n", "0 1\n$\n++++\n"}
	var failedAt int
	for i, raw := range jobs {
		job, err := frame.Read(strings.NewReader(raw))
		if err != nil {
			t.Fatalf("frame.Read failed: %v", err)
		}
		var out bytes.Buffer
		if _, err := in.Execute(job.Program, nil, &out); err != nil {
			if !errors.Is(err, interp.ErrBudgetExceeded) {
				t.Fatalf("job %d = %v, want ErrBudgetExceeded", i, err)
			}
			failedAt = i
			break
		}
	}
	if failedAt != 2 {
		t.Errorf("budget tripped on job %d, want 2 (4+4 fit under 10, the third doesn't)", failedAt)
	}
}
