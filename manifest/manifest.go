// Package manifest handles bfk.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/bfklang/bfk/interp"
)

// Manifest represents a bfk.toml configuration file. Command-line flags
// override anything set here.
type Manifest struct {
	Limits Limits       `toml:"limits"`
	Store  StoreConfig  `toml:"store"`
	Server ServerConfig `toml:"server"`
	Run    RunConfig    `toml:"run"`

	// Dir is the directory containing the bfk.toml file (set at load time).
	Dir string `toml:"-"`
}

// Limits configures the execution budget.
type Limits struct {
	MaxOperations uint64 `toml:"max-operations"`
}

// StoreConfig configures the program library database.
type StoreConfig struct {
	Path string `toml:"path"`
}

// ServerConfig configures the evaluation server.
type ServerConfig struct {
	Addr           string `toml:"addr"`
	MaxProgramSize int64  `toml:"max-program-size"`
}

// RunConfig configures per-run behavior.
type RunConfig struct {
	Trace bool `toml:"trace"`
}

// Default returns a manifest with the built-in defaults, used when no
// bfk.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

// Load parses a bfk.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "bfk.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a bfk.toml file, then loads
// and returns the manifest. Returns the defaults if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "bfk.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}

// StorePath returns the absolute path of the program library database.
func (m *Manifest) StorePath() string {
	if filepath.IsAbs(m.Store.Path) || m.Dir == "" {
		return m.Store.Path
	}
	return filepath.Join(m.Dir, m.Store.Path)
}

func (m *Manifest) applyDefaults() {
	if m.Limits.MaxOperations == 0 {
		m.Limits.MaxOperations = interp.DefaultMaxOperations
	}
	if m.Store.Path == "" {
		m.Store.Path = filepath.Join(".bfk", "programs.db")
	}
	if m.Server.Addr == "" {
		m.Server.Addr = ":7331"
	}
	if m.Server.MaxProgramSize == 0 {
		m.Server.MaxProgramSize = 1 << 20
	}
}
