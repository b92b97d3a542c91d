// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/bedrock-tools/addonsync/internal/logging"
	"github.com/bedrock-tools/addonsync/pkg/manifest"
)

// ErrSave is the sentinel error wrapped by SaveError.
var ErrSave = errors.New("registry write failed")

type (
	// Registry is an in-memory registry bound to its file path.
	Registry struct {
		path    string
		entries []Entry
	}

	// SaveError is returned by Registry.Save.
	SaveError struct {
		Path string
		Err  error
	}
)

// Error implements the error interface.
func (e *SaveError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns ErrSave and the cause for errors.Is() compatibility.
func (e *SaveError) Unwrap() []error { return []error{ErrSave, e.Err} }

// New returns a registry for path holding entries. Later duplicates of an
// identity replace earlier ones.
func New(path string, entries ...Entry) *Registry {
	r := &Registry{path: path}
	for _, e := range entries {
		r.Put(e)
	}
	return r
}

// Load reads the registry at path. It never fails; see the package
// documentation for the recovery policy.
func Load(path string, logger *log.Logger) *Registry {
	logger = logging.OrDiscard(logger)
	r := &Registry{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("registry file absent, starting empty", "path", path)
		} else {
			logger.Warn("registry unreadable, starting empty", "path", path, "err", err)
		}
		return r
	}

	s, err := compiledSchemas()
	if err != nil {
		logger.Error("registry schema unavailable, starting empty", "path", path, "err", err)
		return r
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Warn("registry is corrupt, resetting to an empty list", "path", path, "err", err)
		return r
	}
	if err := s.document.Validate(doc); err != nil {
		logger.Warn("registry is not a list, resetting to an empty list", "path", path)
		return r
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		logger.Warn("registry is corrupt, resetting to an empty list", "path", path, "err", err)
		return r
	}

	for i, raw := range raws {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			logger.Warn("dropping unreadable registry entry", "path", path, "index", i, "err", err)
			continue
		}
		if err := s.entry.Validate(v); err != nil {
			logger.Warn("dropping invalid registry entry", "path", path, "index", i, "err", err)
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			logger.Warn("dropping invalid registry entry", "path", path, "index", i, "err", err)
			continue
		}

		if prev, ok := r.Lookup(e.PackID); ok {
			logger.Warn("duplicate registry entry, keeping the newest version",
				"path", path, "pack_id", e.PackID, "versions", []string{prev.Version.String(), e.Version.String()})
			if !e.Version.NewerThan(prev.Version) {
				continue
			}
		}
		r.Put(e)
	}

	return r
}

// Path returns the registry file path.
func (r *Registry) Path() string { return r.path }

// Len returns the number of entries.
func (r *Registry) Len() int { return len(r.entries) }

// Entries returns a copy of the entries in file order.
func (r *Registry) Entries() []Entry { return slices.Clone(r.entries) }

// Clone returns an independent copy of r.
func (r *Registry) Clone() *Registry {
	return &Registry{path: r.path, entries: slices.Clone(r.entries)}
}

// Lookup returns the entry for id.
func (r *Registry) Lookup(id manifest.PackID) (Entry, bool) {
	if i := r.index(id); i >= 0 {
		return r.entries[i], true
	}
	return Entry{}, false
}

// Contains reports whether id has an entry.
func (r *Registry) Contains(id manifest.PackID) bool { return r.index(id) >= 0 }

// Put removes any entry sharing e's identity and appends e. It returns the
// entry that was replaced, if any.
func (r *Registry) Put(e Entry) (Entry, bool) {
	old, had := r.Lookup(e.PackID)
	if had {
		r.Remove(e.PackID)
	}
	r.entries = append(r.entries, e)
	return old, had
}

// Remove deletes the entry for id and reports whether one existed.
func (r *Registry) Remove(id manifest.PackID) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}
	r.entries = slices.Delete(r.entries, i, i+1)
	return true
}

// Retain keeps the entries for which keep returns true and returns the
// dropped ones.
func (r *Registry) Retain(keep func(Entry) bool) []Entry {
	var dropped []Entry
	r.entries = slices.DeleteFunc(r.entries, func(e Entry) bool {
		if keep(e) {
			return false
		}
		dropped = append(dropped, e)
		return true
	})
	return dropped
}

// Save writes the registry to its path.
func (r *Registry) Save() error {
	if err := Save(r.path, r.entries); err != nil {
		return &SaveError{Path: r.path, Err: err}
	}
	return nil
}

func (r *Registry) index(id manifest.PackID) int {
	key := id.Key()
	return slices.IndexFunc(r.entries, func(e Entry) bool { return e.PackID.Key() == key })
}

// Save serializes entries to path as indented JSON, replacing the file
// atomically and syncing it to disk before returning.
func Save(path string, entries []Entry) (err error) {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary registry file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath) // Best-effort cleanup
		}
	}()

	if _, err = bytes.NewReader(data).WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync registry: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close registry: %w", err)
	}
	if err = os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to set registry permissions: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace registry: %w", err)
	}
	return nil
}
