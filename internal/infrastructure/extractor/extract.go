// Package extractor turns supported document formats into plain UTF-8 text.
package extractor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/askmydocs/internal/core/domain"
)

type extractFunc func(data []byte) (string, error)

var byExtension = map[string]extractFunc{
	".txt":  extractPlainText,
	".md":   extractPlainText,
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".xlsx": extractXLSX,
	".html": extractHTML,
	".htm":  extractHTML,
}

// Supported reports whether the file name has an extension Extract handles.
func Supported(name string) bool {
	_, ok := byExtension[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Extract returns the trimmed text content of data, picking the format from
// the file name. Unsupported formats are domain.ErrInvalidInput.
func Extract(name string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	fn, ok := byExtension[ext]
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text",
			fmt.Errorf("unsupported file type %q for %s", ext, name))
	}
	text, err := fn(data)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filepath.Base(name), err)
	}
	return strings.TrimSpace(text), nil
}
