// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bedrock-tools/addonsync/pkg/cueutil"
)

// FileName is the descriptor every pack carries at its root.
const FileName = "manifest.json"

const (
	// StatusValid means the manifest parsed and declares an installable category.
	StatusValid Status = iota
	// StatusMissing means the directory has no manifest.json.
	StatusMissing
	// StatusMalformed means manifest.json exists but could not be parsed or
	// lacks a required field.
	StatusMalformed
	// StatusUnknownCategory means the manifest is well formed but its first
	// module type is not installable.
	StatusUnknownCategory
)

var (
	// ErrNotFound is returned when a directory has no manifest.json.
	ErrNotFound = errors.New("manifest not found")
	// ErrMalformed is the sentinel error wrapped by MalformedError.
	ErrMalformed = errors.New("malformed manifest")
)

//go:embed manifest_schema.cue
var schema []byte

// utf8BOM is written by some editors at the start of manifest.json.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type (
	// Manifest is a parsed pack descriptor.
	Manifest struct {
		Header  Header   `json:"header"`
		Modules []Module `json:"modules"`

		// Dir is the pack directory the manifest was read from.
		Dir string `json:"-"`
	}

	// Header carries the pack identity and version.
	Header struct {
		UUID    PackID  `json:"uuid"`
		Name    string  `json:"name,omitempty"`
		Version Version `json:"version"`
	}

	// Module is one entry of the manifest's module list.
	Module struct {
		Type ModuleType `json:"type,omitempty"`
	}

	// MalformedError is returned when manifest.json exists but cannot be used.
	MalformedError struct {
		Path string
		Err  error
	}

	// Status classifies a pack directory by its manifest.
	Status int

	// Result is the outcome of Inspect.
	Result struct {
		Status Status
		// Manifest is set for StatusValid and StatusUnknownCategory.
		Manifest *Manifest
		// Err is set for every status but StatusValid.
		Err error
	}
)

// Error implements the error interface.
func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed manifest %s: %v", e.Path, e.Err)
}

// Unwrap exposes both ErrMalformed and the underlying cause.
func (e *MalformedError) Unwrap() []error { return []error{ErrMalformed, e.Err} }

// ID returns the pack identity.
func (m *Manifest) ID() PackID { return m.Header.UUID }

// Version returns the pack version.
func (m *Manifest) Version() Version { return m.Header.Version }

// ModuleType returns the type of the first declared module.
func (m *Manifest) ModuleType() ModuleType {
	if len(m.Modules) == 0 {
		return ""
	}
	return m.Modules[0].Type
}

// Category returns the category decided by the first declared module.
func (m *Manifest) Category() Category { return m.ModuleType().Category() }

// DisplayName returns the header name, falling back to the directory name.
func (m *Manifest) DisplayName() string {
	if m.Header.Name != "" {
		return m.Header.Name
	}
	return filepath.Base(m.Dir)
}

// Read loads and validates dir/manifest.json. It returns an error wrapping
// ErrNotFound when the file is absent and a *MalformedError for anything
// else that prevents use of the manifest.
func Read(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, &MalformedError{Path: path, Err: err}
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	res, err := cueutil.ParseAndDecode[Manifest](schema, data, "#Manifest", cueutil.WithFilename(path))
	if err != nil {
		return nil, &MalformedError{Path: path, Err: err}
	}

	m := res.Value
	m.Dir = dir
	return m, nil
}

// Exists reports whether dir directly contains a manifest file.
func Exists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, FileName))
	return err == nil && !info.IsDir()
}

// Inspect reads dir's manifest and classifies the directory. It never
// returns an error; failures are carried in the Result.
func Inspect(dir string) Result {
	m, err := Read(dir)
	switch {
	case errors.Is(err, ErrNotFound):
		return Result{Status: StatusMissing, Err: err}
	case err != nil:
		return Result{Status: StatusMalformed, Err: err}
	}

	if !m.Category().IsKnown() {
		return Result{
			Status:   StatusUnknownCategory,
			Manifest: m,
			Err:      fmt.Errorf("unrecognized module type %q in %s", m.ModuleType(), filepath.Join(dir, FileName)),
		}
	}
	return Result{Status: StatusValid, Manifest: m}
}

// String returns a short label for the status.
func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusMissing:
		return "missing"
	case StatusMalformed:
		return "malformed"
	case StatusUnknownCategory:
		return "unknown-category"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// NeedsReview reports whether the directory must be left for a human.
func (s Status) NeedsReview() bool {
	return s == StatusMalformed || s == StatusUnknownCategory
}
