// SPDX-License-Identifier: MPL-2.0

// Package issue turns failures into messages an operator can act on.
//
// ActionableError carries the failed operation, the file or program it
// concerned and concrete next steps. Issue is a catalog of longer Markdown
// guides, rendered with glamour, that an ActionableError or a sync outcome
// can point at.
package issue
