// bfk CLI - run, inspect and serve bfk tape programs
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bfklang/bfk/frame"
	"github.com/bfklang/bfk/interp"
	"github.com/bfklang/bfk/manifest"
	"github.com/bfklang/bfk/server"
	"github.com/bfklang/bfk/snapshot"
	"github.com/bfklang/bfk/store"
)

func main() {
	// Library verbs carry their own argument lists
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "save", "list", "run", "history", "delete":
			handleLibraryCommand(os.Args[1], os.Args[2:])
			return
		}
	}

	expr := flag.String("e", "", "Program text to run (instead of a file)")
	interactive := flag.Bool("i", false, "Start interactive REPL")
	inputPath := flag.String("input", "", "File providing the ',' input stream (default: stdin)")
	maxOps := flag.Uint64("max-ops", 0, "Operation budget ceiling (default from bfk.toml, or 100000)")
	trace := flag.Bool("trace", false, "Trace every dispatched instruction")
	framed := flag.Bool("framed", false, "Read a framed job (counts, $-delimited input, program lines) from stdin")
	serveMode := flag.Bool("serve", false, "Start the HTTP evaluation server")
	serveAddr := flag.String("addr", "", "Evaluation server address (default from bfk.toml, or :7331)")
	snapshotOut := flag.String("snapshot-out", "", "Write a machine-state image here after the run (even a failed one)")
	restorePath := flag.String("restore", "", "Resume from a machine-state image")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bfk [options] [file.bf]\n")
		fmt.Fprintf(os.Stderr, "       bfk save <name> <file.bf> | list | run <name> | history <name> | delete <name>\n\n")
		fmt.Fprintf(os.Stderr, "Runs a tape program from a file, -e, or stdin (file \"-\").\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  bfk hello.bf                   # Run a program file\n")
		fmt.Fprintf(os.Stderr, "  bfk -e ',[.,]' --input data    # Inline program, input from a file\n")
		fmt.Fprintf(os.Stderr, "  bfk -i                         # Start the REPL\n")
		fmt.Fprintf(os.Stderr, "  bfk --framed < job.txt         # Framed console protocol\n")
		fmt.Fprintf(os.Stderr, "  bfk --serve --addr :7331       # HTTP evaluation server\n")
		fmt.Fprintf(os.Stderr, "  bfk save echo echo.bf          # Store a program in the library\n")
	}
	flag.Parse()

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading bfk.toml: %v\n", err)
		os.Exit(1)
	}

	ceiling := m.Limits.MaxOperations
	if *maxOps > 0 {
		ceiling = *maxOps
	}

	if *serveMode {
		addr := m.Server.Addr
		if *serveAddr != "" {
			addr = *serveAddr
		}
		runServer(m, addr, ceiling)
		return
	}

	in, err := buildInterpreter(*restorePath, ceiling)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	in.Trace = *trace || m.Run.Trace

	if *framed {
		os.Exit(runFramed(in, *snapshotOut))
	}

	program, haveProgram, err := loadProgram(*expr, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive || !haveProgram {
		runREPL(in)
		return
	}

	input, closeInput, err := openInput(*inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeInput()

	_, runErr := in.Execute(program, input, os.Stdout)

	if *snapshotOut != "" {
		// Failed runs are worth snapshotting too: the tape state at the
		// point of failure is the interesting part.
		if err := snapshot.WriteFile(*snapshotOut, in); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

// buildInterpreter creates a fresh interpreter or restores one from an
// image. The budget ceiling always comes from flags/manifest, overriding
// whatever the image carried.
func buildInterpreter(restorePath string, ceiling uint64) (*interp.Interpreter, error) {
	if restorePath == "" {
		in := interp.New()
		in.SetMaxOperations(ceiling)
		return in, nil
	}
	in, err := snapshot.ReadFile(restorePath)
	if err != nil {
		return nil, err
	}
	in.SetMaxOperations(ceiling)
	return in, nil
}

// loadProgram resolves the program text from -e, a file argument, or
// stdin when the argument is "-".
func loadProgram(expr string, args []string) ([]byte, bool, error) {
	if expr != "" {
		return []byte(expr), true, nil
	}
	if len(args) == 0 {
		return nil, false, nil
	}
	if len(args) > 1 {
		return nil, false, fmt.Errorf("expected one program file, got %d arguments", len(args))
	}
	if args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, false, fmt.Errorf("reading program from stdin: %w", err)
		}
		return data, true, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// openInput returns the ',' byte stream. With no -input flag the program
// reads stdin directly.
func openInput(path string) (io.Reader, func(), error) {
	if path == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// runFramed executes one framed job from stdin, mirroring the classic
// console protocol: diagnostics to stderr with exit code 1, and a
// trailing newline on stdout after a clean run.
func runFramed(in *interp.Interpreter, snapshotOut string) int {
	job, err := frame.Read(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
		return 1
	}

	_, runErr := in.Execute(job.Program, bytes.NewReader(job.Input), os.Stdout)

	if snapshotOut != "" {
		if err := snapshot.WriteFile(snapshotOut, in); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return 1
	}
	fmt.Println()
	return 0
}

// runServer starts the HTTP evaluation server, backed by the program
// library when one can be opened.
func runServer(m *manifest.Manifest, addr string, ceiling uint64) {
	opts := []server.Option{
		server.WithMaxOperations(ceiling),
		server.WithMaxProgramSize(m.Server.MaxProgramSize),
	}

	st, err := store.Open(m.StorePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: program library unavailable: %v\n", err)
	} else {
		defer st.Close()
		opts = append(opts, server.WithStore(st))
	}

	srv := server.New(opts...)

	// Drain in-flight requests on SIGINT/SIGTERM before exiting
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
		}
	}()

	if err := srv.ListenAndServe(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
