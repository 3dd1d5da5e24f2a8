package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bfklang/bfk/interp"
	"github.com/bfklang/bfk/manifest"
	"github.com/bfklang/bfk/store"
)

// handleLibraryCommand processes the program-library verbs:
//
//	bfk save <name> <file.bf>   # file "-" reads stdin
//	bfk list
//	bfk run <name> [input-file]
//	bfk history <name>
//	bfk delete <name>
func handleLibraryCommand(verb string, args []string) {
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading bfk.toml: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(m.StorePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening program library: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	switch verb {
	case "save":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "Usage: bfk save <name> <file.bf>")
			os.Exit(1)
		}
		var source []byte
		if args[1] == "-" {
			source, err = io.ReadAll(os.Stdin)
		} else {
			source, err = os.ReadFile(args[1])
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := st.SaveProgram(args[0], string(source)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Saved %q (%d bytes)\n", args[0], len(source))

	case "list":
		programs, err := st.ListPrograms()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(programs) == 0 {
			fmt.Println("Library is empty")
			return
		}
		for _, p := range programs {
			fmt.Printf("%-20s %6d bytes  %s\n", p.Name, len(p.Source), p.CreatedAt.Format("2006-01-02 15:04"))
		}

	case "run":
		if len(args) < 1 || len(args) > 2 {
			fmt.Fprintln(os.Stderr, "Usage: bfk run <name> [input-file]")
			os.Exit(1)
		}
		runLibraryProgram(st, m, args)

	case "history":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "Usage: bfk history <name>")
			os.Exit(1)
		}
		runs, err := st.History(args[0], 20)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(runs) == 0 {
			fmt.Printf("No recorded runs of %q\n", args[0])
			return
		}
		for _, r := range runs {
			status := "ok"
			if r.Error != "" {
				status = r.Error
			}
			fmt.Printf("%s  %8d ops  %6d bytes out  %s\n", r.RanAt.Format("2006-01-02 15:04:05"), r.Operations, r.OutputBytes, status)
		}

	case "delete":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "Usage: bfk delete <name>")
			os.Exit(1)
		}
		if err := st.DeleteProgram(args[0]); err != nil {
			if errors.Is(err, store.ErrProgramNotFound) {
				fmt.Fprintf(os.Stderr, "Error: program %q not found\n", args[0])
			} else {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			os.Exit(1)
		}
		fmt.Printf("Deleted %q\n", args[0])
	}
}

// runLibraryProgram executes a stored program and records the run.
func runLibraryProgram(st *store.Store, m *manifest.Manifest, args []string) {
	p, err := st.GetProgram(args[0])
	if err != nil {
		if errors.Is(err, store.ErrProgramNotFound) {
			fmt.Fprintf(os.Stderr, "Error: program %q not found\n", args[0])
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}

	var input io.Reader = os.Stdin
	if len(args) == 2 {
		f, err := os.Open(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		input = f
	}

	in := interp.New()
	in.SetMaxOperations(m.Limits.MaxOperations)
	in.Trace = m.Run.Trace

	var out bytes.Buffer
	n, runErr := in.Execute([]byte(p.Source), input, io.MultiWriter(&out, os.Stdout))

	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}
	if err := st.RecordRun(p.Name, n, int64(out.Len()), errText); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: run not recorded: %v\n", err)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}
