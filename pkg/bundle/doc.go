// SPDX-License-Identifier: MPL-2.0

// Package bundle flattens the addons staging directory into installable pack
// folders.
//
// Packs arrive as compressed bundles (.mcaddon, .mcpack, .zip), as loose
// folders, or as any nesting of the two: an .mcaddon holding .mcpack files, a
// folder wrapping the real pack folders, a zip whose only content is another
// zip. The Normalizer repeatedly extracts bundles in place and unwraps
// container folders until every top-level entry is a folder with its own
// manifest.json, or a bundle that could not be read.
//
// Each pass works from one directory listing taken at its start. Entries
// created during a pass are picked up by the next one, and normalization
// stops at the first pass that changes nothing.
package bundle
