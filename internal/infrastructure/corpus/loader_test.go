package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/askmydocs/internal/core/domain"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadWalksSupportedFilesInOrder(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "b.txt"), "Tokyo is the capital of Japan.")
	write(t, filepath.Join(root, "a.md"), "Paris is the capital of France.")
	write(t, filepath.Join(root, "nested", "c.txt"), "Berlin is in Germany.")
	write(t, filepath.Join(root, "empty.txt"), "   \n")
	write(t, filepath.Join(root, "image.png"), "not text")
	write(t, filepath.Join(root, ".git", "HEAD.txt"), "ignored")

	docs, err := NewLoader().Load(context.Background(), root, root)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	wantIDs := []string{"a.md", "b.txt", "nested/c.txt"}
	if len(docs) != len(wantIDs) {
		t.Fatalf("expected %d docs, got %#v", len(wantIDs), docs)
	}
	for i, id := range wantIDs {
		if docs[i].ID != id {
			t.Fatalf("doc %d: expected id %q, got %q", i, id, docs[i].ID)
		}
	}
	if docs[0].Source != filepath.Join(root, "a.md") {
		t.Fatalf("unexpected source %q", docs[0].Source)
	}
}

func TestLoadRejectsMissingRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	_, err := NewLoader().Load(context.Background(), missing, missing)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestLoadSubdirectoryKeepsIDsRelativeToRoot(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.md"), "Paris is the capital of France.")
	write(t, filepath.Join(root, "sub", "a.md"), "Rome is the capital of Italy.")

	docs, err := NewLoader().Load(context.Background(), root, filepath.Join(root, "sub"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "sub/a.md" {
		t.Fatalf("expected only sub/a.md, got %#v", docs)
	}

	outside := t.TempDir()
	if _, err := NewLoader().Load(context.Background(), root, outside); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for a directory outside root, got %v", err)
	}
}
