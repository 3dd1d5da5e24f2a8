// Package server exposes program evaluation over HTTP/JSON. Program-level
// failures (underflow, bracket mismatches, a tripped budget) are results,
// not transport errors: they come back in the response body with a 200.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/bfklang/bfk/interp"
	"github.com/bfklang/bfk/store"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("bfk.server")

// Server is the evaluation server. Each request runs on a fresh
// Interpreter; the core is single-owner state, so per-request instances
// keep the handlers safe without locking.
type Server struct {
	mux            *http.ServeMux
	maxOps         uint64
	maxProgramSize int64
	store          *store.Store

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithStore attaches a program library, enabling the /v1/programs routes.
func WithStore(st *store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithMaxOperations sets the default budget ceiling for requests that
// don't carry their own.
func WithMaxOperations(n uint64) Option {
	return func(s *Server) { s.maxOps = n }
}

// WithMaxProgramSize caps the accepted program length in bytes.
func WithMaxProgramSize(n int64) Option {
	return func(s *Server) { s.maxProgramSize = n }
}

// New creates a Server and registers its routes.
func New(opts ...Option) *Server {
	s := &Server{
		mux:            http.NewServeMux(),
		maxOps:         interp.DefaultMaxOperations,
		maxProgramSize: 1 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("POST /v1/eval", s.handleEval)
	if s.store != nil {
		s.mux.HandleFunc("GET /v1/programs", s.handleListPrograms)
		s.mux.HandleFunc("POST /v1/programs", s.handleSaveProgram)
		s.mux.HandleFunc("POST /v1/programs/{name}/run", s.handleRunProgram)
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the given address and blocks
// until it fails or Stop is called. A stopped server returns nil.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.httpServer = &http.Server{Handler: s.mux}
	s.listener = ln
	s.mu.Unlock()

	log.Noticef("evaluation server listening on %s", ln.Addr())
	if err := s.httpServer.Serve(ln); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Addr reports the bound listen address, or "" before ListenAndServe has
// opened its listener.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts the server down, waiting for in-flight requests
// up to the context deadline. Stopping a server that never started is a
// no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	log.Notice("evaluation server stopping")
	return srv.Shutdown(ctx)
}

// EvalRequest asks for one program execution. Input is the byte stream
// consumed by ',' (base64 in JSON). A zero MaxOperations means the
// server default.
type EvalRequest struct {
	Program       string `json:"program"`
	Input         []byte `json:"input,omitempty"`
	MaxOperations uint64 `json:"max_operations,omitempty"`
}

// EvalResponse carries the run outcome. Output holds whatever was written
// before any failure; Error is nil for clean runs.
type EvalResponse struct {
	Output     []byte     `json:"output"`
	Operations uint64     `json:"operations"`
	Error      *EvalError `json:"error,omitempty"`
}

// EvalError classifies a program-level failure.
type EvalError struct {
	Kind     string `json:"kind"`
	Position int    `json:"position"`
	Message  string `json:"message"`
}

// Failure kinds reported in EvalError.Kind.
const (
	KindUnderflow      = "tape-underflow"
	KindUnclosedLoop   = "unclosed-loop"
	KindUnopenedLoop   = "unopened-loop"
	KindBudgetExceeded = "budget-exceeded"
	KindIO             = "io"
)

func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	var req EvalRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxProgramSize*2+4096)).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
		return
	}
	if int64(len(req.Program)) > s.maxProgramSize {
		http.Error(w, "program too large", http.StatusRequestEntityTooLarge)
		return
	}

	resp := s.eval(&req)
	log.Infof("eval: %d ops, %d output bytes, error=%v", resp.Operations, len(resp.Output), resp.Error != nil)
	writeJSON(w, http.StatusOK, resp)
}

// eval runs one program on a fresh interpreter.
func (s *Server) eval(req *EvalRequest) *EvalResponse {
	in := interp.New()
	if req.MaxOperations > 0 {
		in.SetMaxOperations(req.MaxOperations)
	} else {
		in.SetMaxOperations(s.maxOps)
	}

	var out bytes.Buffer
	ops, err := in.Execute([]byte(req.Program), bytes.NewReader(req.Input), &out)

	resp := &EvalResponse{
		Output:     out.Bytes(),
		Operations: ops,
	}
	if err != nil {
		resp.Error = classify(err)
	}
	return resp
}

// classify maps an execution error to its wire form.
func classify(err error) *EvalError {
	e := &EvalError{Kind: KindIO, Position: -1, Message: err.Error()}

	switch {
	case errors.Is(err, interp.ErrTapeUnderflow):
		e.Kind = KindUnderflow
	case errors.Is(err, interp.ErrUnclosedLoop):
		e.Kind = KindUnclosedLoop
	case errors.Is(err, interp.ErrUnopenedLoop):
		e.Kind = KindUnopenedLoop
	case errors.Is(err, interp.ErrBudgetExceeded):
		e.Kind = KindBudgetExceeded
	}

	var pe *interp.PositionError
	if errors.As(err, &pe) {
		e.Position = pe.Pos
	}
	return e
}

// ProgramInfo describes one library entry.
type ProgramInfo struct {
	Name      string `json:"name"`
	Source    string `json:"source"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleListPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := s.store.ListPrograms()
	if err != nil {
		log.Errorf("list programs: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	infos := make([]ProgramInfo, 0, len(programs))
	for _, p := range programs {
		infos = append(infos, ProgramInfo{
			Name:      p.Name,
			Source:    p.Source,
			CreatedAt: p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleSaveProgram(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Source string `json:"source"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxProgramSize*2+4096)).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if int64(len(req.Source)) > s.maxProgramSize {
		http.Error(w, "program too large", http.StatusRequestEntityTooLarge)
		return
	}

	if err := s.store.SaveProgram(req.Name, req.Source); err != nil {
		log.Errorf("save program %q: %v", req.Name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	log.Infof("saved program %q (%d bytes)", req.Name, len(req.Source))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunProgram(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	p, err := s.store.GetProgram(name)
	if errors.Is(err, store.ErrProgramNotFound) {
		http.Error(w, fmt.Sprintf("program %q not found", name), http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("get program %q: %v", name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var req EvalRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxProgramSize*2+4096)).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
			return
		}
	}
	req.Program = p.Source

	resp := s.eval(&req)

	errText := ""
	if resp.Error != nil {
		errText = resp.Error.Message
	}
	if err := s.store.RecordRun(name, resp.Operations, int64(len(resp.Output)), errText); err != nil {
		log.Errorf("record run of %q: %v", name, err)
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("write response: %v", err)
	}
}
