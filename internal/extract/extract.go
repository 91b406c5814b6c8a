// Package extract converts local document files to plain text or markdown,
// dispatching on the file extension.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// UnsupportedFormatError reports a file extension with no registered
// extraction strategy.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.Ext)
}

// Strategy extracts text from one file format.
type Strategy func(path string) (string, error)

// Registry maps lower-cased extensions (".pdf") to strategies. New formats
// are added with Register instead of editing a central dispatcher.
type Registry struct {
	strategies map[string]Strategy
}

func NewRegistry() *Registry {
	r := &Registry{strategies: map[string]Strategy{}}
	r.Register(".pdf", extractPDF)
	r.Register(".docx", extractDocx)
	r.Register(".doc", extractDocx)
	r.Register(".xlsx", extractXLSX)
	r.Register(".csv", extractCSV)
	for _, ext := range []string{".txt", ".md", ".py", ".go", ".tex", ".html"} {
		r.Register(ext, extractRaw)
	}
	return r
}

func (r *Registry) Register(ext string, s Strategy) {
	r.strategies[strings.ToLower(ext)] = s
}

// ExtractText dispatches on the extension, case-insensitively.
func (r *Registry) ExtractText(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	strategy, ok := r.strategies[ext]
	if !ok {
		return "", &UnsupportedFormatError{Ext: strings.TrimPrefix(ext, ".")}
	}
	return strategy(path)
}

// extractRaw reads the file as-is, requiring valid UTF-8.
func extractRaw(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file %s is not valid UTF-8", path)
	}
	return string(data), nil
}
