// Package storage keeps local copies of fetched voucher scans so a
// reviewer can pull up the original bytes behind any persisted record.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// Archive writes raw document bytes under a base directory, one file per
// source document. Saves are idempotent; re-fetching a document simply
// overwrites the earlier copy.
type Archive struct {
	baseDir string
	logger  *zap.Logger
}

// NewArchive creates the base directory if it does not exist.
func NewArchive(baseDir string, logger *zap.Logger) (*Archive, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("archive base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Archive{baseDir: baseDir, logger: logger}, nil
}

// Save stores the document bytes under a name derived from the document ID
// and original filename. Returns the path written.
func (a *Archive) Save(documentID, documentName string, content []byte) (string, error) {
	if documentID == "" {
		return "", fmt.Errorf("cannot archive document with empty ID")
	}

	fileName := sanitizeName(documentID)
	if safe := sanitizeName(documentName); safe != "" {
		fileName = fileName + "_" + safe
	}
	fullPath := filepath.Join(a.baseDir, fileName)

	if err := a.validatePath(fullPath); err != nil {
		return "", err
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		a.logger.Error("Failed to archive document",
			zap.String("document_id", documentID),
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write archive file: %w", err)
	}

	a.logger.Debug("Archived document",
		zap.String("document_id", documentID),
		zap.String("path", fullPath),
		zap.Int("size", len(content)))

	return fullPath, nil
}

// validatePath checks that the resolved path stays inside the base
// directory.
func (a *Archive) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(a.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes archive directory: %s", fullPath)
	}
	return nil
}

// sanitizeName strips path separators and anything else unsafe for a
// filename, keeping alphanumerics, hyphens, underscores and dots.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	return unsafeChars.ReplaceAllString(name, "")
}
