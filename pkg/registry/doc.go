// SPDX-License-Identifier: MPL-2.0

// Package registry persists the per-category list of installed packs.
//
// A registry file is a JSON array of {"pack_id": ..., "version": ...}
// objects, the format the server reads as world_behavior_packs.json and
// world_resource_packs.json. Loading never fails: a missing file is an empty
// registry, and an unreadable, unparsable or non-array file is reset to empty
// with a warning. Individual entries that do not validate are dropped with a
// warning; keys the tool does not know are preserved.
//
// At most one entry per identity is kept. Saves replace the file through a
// temporary file and rename, so readers observe either the old or the new
// document.
package registry
