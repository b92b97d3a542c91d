// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue/errors"
)

// FormatError rewrites a CUE evaluation error so every line points at the
// offending field of the document, as in
//
//	manifest.json: modules[0].type: conflicting values "data" and 3
//
// Errors that did not come from CUE are wrapped with filePath unchanged.
func FormatError(err error, filePath string) error {
	if err == nil {
		return nil
	}
	list := errors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	lines := make([]string, 0, len(list))
	for _, e := range list {
		field := formatPath(errors.Path(e))
		msg := e.Error()
		if field == "" {
			lines = append(lines, msg)
			continue
		}
		// CUE repeats the path at the start of some messages.
		if rest, ok := strings.CutPrefix(msg, field); ok {
			msg = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
		}
		lines = append(lines, field+": "+msg)
	}

	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", filePath, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", filePath, strings.Join(lines, "\n  "))
}

// formatPath renders a CUE selector path in the dotted form people use for
// JSON, writing numeric selectors as indices.
func formatPath(path []string) string {
	var b strings.Builder
	for i, sel := range path {
		if _, err := strconv.ParseUint(sel, 10, 64); err == nil && i > 0 {
			b.WriteString("[" + sel + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(sel)
	}
	return b.String()
}

// CheckFileSize rejects documents larger than maxSize bytes before they reach
// the evaluator.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if size := int64(len(data)); size > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", filename, size, maxSize)
	}
	return nil
}
