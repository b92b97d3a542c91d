// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/bedrock-tools/addonsync/pkg/manifest"
)

const (
	keyPackID  = "pack_id"
	keyVersion = "version"
)

// Entry records one installed pack.
type Entry struct {
	PackID  manifest.PackID
	Version manifest.Version

	// extra holds keys written by other tools (e.g. "subpack").
	extra map[string]json.RawMessage
}

// NewEntry returns an entry for the given identity and version.
func NewEntry(id manifest.PackID, v manifest.Version) Entry {
	return Entry{PackID: id, Version: v}
}

// EntryFor returns the entry describing m.
func EntryFor(m *manifest.Manifest) Entry {
	return NewEntry(m.ID(), m.Version())
}

// MarshalJSON writes pack_id and version alongside any preserved keys.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.extra)+2)
	maps.Copy(out, e.extra)

	id, err := json.Marshal(string(e.PackID))
	if err != nil {
		return nil, err
	}
	version, err := json.Marshal(e.Version)
	if err != nil {
		return nil, err
	}
	out[keyPackID] = id
	out[keyVersion] = version
	return json.Marshal(out)
}

// UnmarshalJSON reads an entry object, keeping unknown keys.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	rawID, ok := fields[keyPackID]
	if !ok {
		return fmt.Errorf("entry has no %s", keyPackID)
	}
	var id string
	if err := json.Unmarshal(rawID, &id); err != nil {
		return fmt.Errorf("%s: %w", keyPackID, err)
	}

	rawVersion, ok := fields[keyVersion]
	if !ok {
		return fmt.Errorf("entry has no %s", keyVersion)
	}
	var v manifest.Version
	if err := json.Unmarshal(rawVersion, &v); err != nil {
		return fmt.Errorf("%s: %w", keyVersion, err)
	}

	delete(fields, keyPackID)
	delete(fields, keyVersion)
	if len(fields) == 0 {
		fields = nil
	}

	*e = Entry{PackID: manifest.PackID(id), Version: v, extra: fields}
	return nil
}
