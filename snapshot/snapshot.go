// Package snapshot serializes interpreter machine state so a run can be
// saved and resumed later, budget accounting included. Images are encoded
// as canonical CBOR for deterministic bytes.
package snapshot

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/bfklang/bfk/interp"
)

// FormatVersion is the current image format version. Increment when
// making incompatible changes to the Image layout.
const FormatVersion = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Image is a snapshot of one interpreter: the tape contents, the cursor,
// and the budget counters. It captures everything needed to resume
// execution; the program itself is not part of the machine state.
type Image struct {
	Version       uint16 `cbor:"version"`
	Cells         []byte `cbor:"cells"`
	Pos           int    `cbor:"pos"`
	Operations    uint64 `cbor:"operations"`
	MaxOperations uint64 `cbor:"max_operations"`
}

// Capture snapshots the interpreter's current machine state.
func Capture(in *interp.Interpreter) *Image {
	t := in.Tape()
	return &Image{
		Version:       FormatVersion,
		Cells:         t.Cells(),
		Pos:           t.Pos(),
		Operations:    in.Operations(),
		MaxOperations: in.MaxOperations(),
	}
}

// Restore builds an interpreter resuming from the image. The restored
// instance carries the saved operation counter, so the cross-run budget
// keeps counting from where the snapshot left off.
func (img *Image) Restore() (*interp.Interpreter, error) {
	if img.Version != FormatVersion {
		return nil, fmt.Errorf("snapshot: unsupported image version %d (want %d)", img.Version, FormatVersion)
	}
	t, err := interp.RestoreTape(img.Cells, img.Pos)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return interp.Restore(t, img.Operations, img.MaxOperations), nil
}

// Marshal serializes an Image to canonical CBOR bytes.
func Marshal(img *Image) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// Unmarshal deserializes an Image from CBOR bytes.
func Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal image: %w", err)
	}
	return &img, nil
}

// WriteFile captures the interpreter and writes the image to path.
func WriteFile(path string, in *interp.Interpreter) error {
	data, err := Marshal(Capture(in))
	if err != nil {
		return fmt.Errorf("snapshot: marshal image: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	return nil
}

// ReadFile loads an image from path and restores an interpreter from it.
func ReadFile(path string) (*interp.Interpreter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	img, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return img.Restore()
}
