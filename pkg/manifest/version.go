// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// ErrInvalidVersion is the sentinel error wrapped by InvalidVersionError.
var ErrInvalidVersion = errors.New("invalid version")

// versionRegex matches dotted version strings such as "1.2.3" or "v1.0.0-beta.1".
var versionRegex = regexp.MustCompile(`^v?(\d+(?:\.\d+)*)(?:-([0-9A-Za-z.\-]+))?(?:\+[0-9A-Za-z.\-]+)?$`)

type (
	// Version is a pack version. Manifests write it either as an integer
	// array ([1, 0, 0]) or as a dotted string ("1.0.0"); both forms share one
	// ordering and the original form is kept when the version is written back.
	Version struct {
		parts      []int
		prerelease string
		dotted     bool
	}

	// InvalidVersionError is returned when a version cannot be parsed.
	InvalidVersionError struct {
		Value string
	}
)

// Error implements the error interface.
func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version %s", e.Value)
}

// Unwrap returns ErrInvalidVersion so callers can use errors.Is for programmatic detection.
func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// NewVersion builds an array-form version from its numeric parts.
func NewVersion(parts ...int) Version {
	return Version{parts: slices.Clone(parts)}
}

// ParseVersion parses a dotted version string.
func ParseVersion(s string) (Version, error) {
	matches := versionRegex.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return Version{}, &InvalidVersionError{Value: strconv.Quote(s)}
	}

	fields := strings.Split(matches[1], ".")
	parts := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return Version{}, &InvalidVersionError{Value: strconv.Quote(s)}
		}
		parts = append(parts, n)
	}

	return Version{parts: parts, prerelease: matches[2], dotted: true}, nil
}

// MustParseVersion is like ParseVersion but panics on error.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Parts returns a copy of the numeric components.
func (v Version) Parts() []int { return slices.Clone(v.parts) }

// IsZero reports whether v was never set.
func (v Version) IsZero() bool { return len(v.parts) == 0 }

// Compare returns -1, 0 or +1. Numeric parts compare lexicographically with a
// shorter prefix ordering first; with equal parts a prerelease orders before
// the release.
func (v Version) Compare(other Version) int {
	if c := slices.Compare(v.parts, other.parts); c != 0 {
		return c
	}
	switch {
	case v.prerelease == other.prerelease:
		return 0
	case v.prerelease == "":
		return 1
	case other.prerelease == "":
		return -1
	default:
		return cmp.Compare(v.prerelease, other.prerelease)
	}
}

// NewerThan reports whether v orders strictly after other.
func (v Version) NewerThan(other Version) bool { return v.Compare(other) > 0 }

// String returns the dotted form.
func (v Version) String() string {
	fields := make([]string, len(v.parts))
	for i, p := range v.parts {
		fields[i] = strconv.Itoa(p)
	}
	s := strings.Join(fields, ".")
	if v.prerelease != "" {
		s += "-" + v.prerelease
	}
	return s
}

// MarshalJSON writes the version in the form it was read in.
func (v Version) MarshalJSON() ([]byte, error) {
	if v.dotted {
		return json.Marshal(v.String())
	}
	parts := v.parts
	if parts == nil {
		parts = []int{}
	}
	return json.Marshal(parts)
}

// UnmarshalJSON accepts a non-empty array of non-negative integers or a
// dotted version string.
func (v *Version) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &InvalidVersionError{Value: "<empty>"}
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseVersion(s)
		if err != nil {
			return err
		}
		*v = parsed
		return nil
	case '[':
		var nums []json.Number
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&nums); err != nil {
			return &InvalidVersionError{Value: string(data)}
		}
		if len(nums) == 0 {
			return &InvalidVersionError{Value: string(data)}
		}
		parts := make([]int, len(nums))
		for i, n := range nums {
			p, err := strconv.Atoi(n.String())
			if err != nil || p < 0 {
				return &InvalidVersionError{Value: string(data)}
			}
			parts[i] = p
		}
		*v = Version{parts: parts}
		return nil
	default:
		return &InvalidVersionError{Value: string(data)}
	}
}
