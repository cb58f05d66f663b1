// Package corpus loads a directory tree of documents for indexing.
package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/askmydocs/internal/core/domain"
	"github.com/kirillkom/askmydocs/internal/infrastructure/extractor"
)

type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

// Load walks dir, which must be root or lie inside it, in lexical order.
// Document ids are slash-separated paths relative to root, so a partial load
// of a subdirectory yields the same ids as a load of the whole corpus. Files
// that are unsupported or hold no text are skipped. A file that fails to
// extract is logged and skipped so that one bad file does not abort a
// rebuild.
func (l *Loader) Load(ctx context.Context, root, dir string) ([]domain.Document, error) {
	if dir == "" {
		dir = root
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load corpus", err)
	}
	if !info.IsDir() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load corpus", fmt.Errorf("%s is not a directory", dir))
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load corpus", err)
	}
	if rel, err := relativeTo(absRoot, dir); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load corpus",
			fmt.Errorf("%s is outside the documents directory %s", dir, root))
	}

	var docs []domain.Document
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !extractor.Supported(path) {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		text, err := extractor.Extract(path, raw)
		if err != nil {
			slog.Warn("corpus_file_skipped", "path", path, "error", err)
			return nil
		}
		if text == "" {
			return nil
		}

		rel, err := relativeTo(absRoot, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		docs = append(docs, domain.Document{
			ID:     filepath.ToSlash(rel),
			Text:   text,
			Source: path,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus: %w", err)
	}
	return docs, nil
}

func relativeTo(absRoot, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Rel(absRoot, abs)
}
