package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	urlPrefixPattern   = regexp.MustCompile(`^https?://[^/]+/`)
	unsafeCharsPattern = regexp.MustCompile(`[<>:"/\\|?*]`)
)

// ArtifactWriter stores the raw text of an article for auditing.
type ArtifactWriter interface {
	Write(title, text string) error
}

// SanitizeFilename turns an article title into a safe file name (without extension).
func SanitizeFilename(title string) string {
	name := urlPrefixPattern.ReplaceAllString(title, "")
	name = unsafeCharsPattern.ReplaceAllString(name, "_")
	name = strings.ReplaceAll(strings.Trim(name, ". "), "..", ".")
	if name == "" {
		return "unnamed_article"
	}
	return name
}

// FileArtifactWriter writes <dir>/<sanitized title>.txt
type FileArtifactWriter struct {
	Dir string
}

// NewFileArtifactWriter creates a writer rooted at dir.
func NewFileArtifactWriter(dir string) *FileArtifactWriter {
	return &FileArtifactWriter{Dir: dir}
}

// Path returns the artifact path for a title.
func (w *FileArtifactWriter) Path(title string) string {
	return filepath.Join(w.Dir, SanitizeFilename(title)+".txt")
}

func (w *FileArtifactWriter) Write(title, text string) error {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	if err := os.WriteFile(w.Path(title), []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}
