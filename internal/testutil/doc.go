// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include filesystem operations (MustMkdirAll, MustWriteFile,
// MustReadFile) and pack fixtures: manifests (WriteManifest), bundles
// (WriteZip, WritePackZip) and directory listings (ListDir).
package testutil
