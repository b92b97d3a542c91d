// SPDX-License-Identifier: MPL-2.0

package bundle

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrCorrupt is the sentinel error wrapped by CorruptError.
var ErrCorrupt = errors.New("corrupt bundle")

// macOSMetadataDir holds resource forks added by the macOS archive utility.
const macOSMetadataDir = "__MACOSX"

// CorruptError is returned when a file with a bundle extension is not a
// readable ZIP archive.
type CorruptError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt bundle %s: %v", e.Path, e.Err)
}

// Unwrap exposes both ErrCorrupt and the underlying cause.
func (e *CorruptError) Unwrap() []error { return []error{ErrCorrupt, e.Err} }

// Extract unpacks the ZIP archive at archivePath into destDir, which must
// not exist yet. On failure destDir is removed again.
func Extract(archivePath, destDir string) (err error) {
	zipReader, err := zip.OpenReader(archivePath)
	if err != nil {
		return &CorruptError{Path: archivePath, Err: err}
	}
	defer func() {
		if closeErr := zipReader.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	absDestDir, err := filepath.Abs(destDir)
	if err != nil {
		return fmt.Errorf("failed to resolve destination directory: %w", err)
	}
	if err = os.Mkdir(absDestDir, 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(absDestDir) // Best-effort cleanup of a partial extraction
		}
	}()

	for _, file := range zipReader.File {
		// Archives built on Windows sometimes use backslash separators.
		name := strings.ReplaceAll(file.Name, `\`, "/")
		if name == "" || name == macOSMetadataDir+"/" || strings.HasPrefix(name, macOSMetadataDir+"/") {
			continue
		}

		destPath := filepath.Join(absDestDir, filepath.FromSlash(name))

		// Validate path doesn't escape destination (security check)
		relPath, relErr := filepath.Rel(absDestDir, destPath)
		if relErr != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
			return &CorruptError{Path: archivePath, Err: fmt.Errorf("invalid path in ZIP: %s", file.Name)}
		}

		if file.FileInfo().IsDir() || strings.HasSuffix(name, "/") {
			if mkdirErr := os.MkdirAll(destPath, 0o755); mkdirErr != nil {
				return fmt.Errorf("failed to create directory: %w", mkdirErr)
			}
			continue
		}

		if mkdirErr := os.MkdirAll(filepath.Dir(destPath), 0o755); mkdirErr != nil {
			return fmt.Errorf("failed to create parent directory: %w", mkdirErr)
		}

		if extractErr := extractFile(file, destPath); extractErr != nil {
			return &CorruptError{Path: archivePath, Err: fmt.Errorf("failed to extract %s: %w", file.Name, extractErr)}
		}
	}

	return nil
}

// extractFile extracts a single file from the ZIP archive
func extractFile(file *zip.File, destPath string) (err error) {
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	// Some archivers record no permission bits at all.
	perm := file.Mode().Perm() | 0o600

	destFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := destFile.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	//nolint:gosec // G110: bundles are supplied by the server operator
	_, err = io.Copy(destFile, rc)
	return err
}
