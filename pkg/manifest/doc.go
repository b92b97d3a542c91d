// SPDX-License-Identifier: MPL-2.0

// Package manifest reads and classifies pack descriptors.
//
// Every installable pack directory carries a manifest.json at its root. The
// header supplies the pack identity (a UUID in practice) and version; the
// first declared module decides which category the pack installs into:
//
//   - "data" and "script" modules install as behavior packs
//   - "resources" modules install as resource packs
//   - anything else needs manual review
//
// Manifests are validated against an embedded CUE schema before decoding, so
// a missing identity, version or module list is reported as malformed rather
// than surfacing later as a zero value.
package manifest
