// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"strings"

	"github.com/google/uuid"
)

// PackID is the identity declared in a manifest header. Registries and
// installed folders are keyed by it.
type PackID string

// Key returns the form used for identity comparison. UUIDs are compared in
// their canonical lower-case form so that registries written by other tools
// with different casing still match; anything else compares trimmed.
func (id PackID) Key() string {
	s := strings.TrimSpace(string(id))
	if u, err := uuid.Parse(s); err == nil {
		return u.String()
	}
	return s
}

// Equal reports whether both identities refer to the same pack.
func (id PackID) Equal(other PackID) bool { return id.Key() == other.Key() }

// IsUUID reports whether the identity parses as a UUID.
func (id PackID) IsUUID() bool {
	_, err := uuid.Parse(strings.TrimSpace(string(id)))
	return err == nil
}

// IsZero reports whether the identity is blank.
func (id PackID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

// String returns the identity as written in the manifest.
func (id PackID) String() string { return string(id) }
