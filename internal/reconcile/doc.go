// SPDX-License-Identifier: MPL-2.0

// Package reconcile merges normalized pack folders from the addons
// directory into the world's installed packs and registries.
//
// For each folder the registry entry of the pack's category decides the
// outcome: an unknown identity is added, a strictly newer version replaces
// the installed pack, and anything else is discarded. Registry writes reach
// the disk before the folder moves, so an interrupted run leaves a registry
// entry without a folder, which the garbage collector removes on the next
// run. Folders whose manifest is missing, malformed or of an unknown
// category are left where they are.
package reconcile
