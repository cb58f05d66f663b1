package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/askmydocs/internal/core/domain"
)

func TestExtractPlainTextAndMarkdown(t *testing.T) {
	text, err := Extract("notes/readme.MD", []byte("  # Title\n\nbody  \n"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "# Title\n\nbody" {
		t.Fatalf("unexpected text %q", text)
	}
	if _, err := Extract("bin.txt", []byte{0xff, 0xfe, 0x00}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for binary text, got %v", err)
	}
}

func TestExtractRejectsUnsupportedFormat(t *testing.T) {
	if Supported("image.png") {
		t.Fatalf("png must not be supported")
	}
	if _, err := Extract("image.png", []byte("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestExtractHTMLDropsScriptsAndKeepsBlocks(t *testing.T) {
	page := `<html><head><title>t</title><style>p{}</style></head>
<body><h1>Capitals</h1><p>Paris is the capital of <b>France</b>.</p><script>alert(1)</script><p>Tokyo is in Japan.</p></body></html>`
	text, err := Extract("page.html", []byte(page))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if strings.Contains(text, "alert") || strings.Contains(text, "p{}") {
		t.Fatalf("script or style leaked into %q", text)
	}
	want := "Capitals\nParis is the capital of France .\nTokyo is in Japan."
	if text != want {
		t.Fatalf("expected %q, got %q", want, text)
	}
}

func TestExtractDOCXParagraphs(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>First</w:t></w:r><w:r><w:tab/><w:t>line</w:t></w:r></w:p>
<w:p><w:r><w:t>Second line</w:t></w:r></w:p>
</w:body></w:document>`)
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	text, err := Extract("report.docx", buf.Bytes())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "First\tline\nSecond line" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractXLSXRows(t *testing.T) {
	f := excelize.NewFile()
	_ = f.SetCellValue("Sheet1", "A1", "city")
	_ = f.SetCellValue("Sheet1", "B1", "country")
	_ = f.SetCellValue("Sheet1", "A2", "Paris")
	_ = f.SetCellValue("Sheet1", "B2", "France")
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	text, err := Extract("cities.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "Sheet1\ncity\tcountry\nParis\tFrance" {
		t.Fatalf("unexpected text %q", text)
	}
}

type storageFake struct {
	files map[string]string
}

func (s *storageFake) Save(context.Context, string, io.Reader) error { return nil }

func (s *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.files[key])), nil
}

func TestStorageExtractorUsesUploadFilename(t *testing.T) {
	ex := NewStorageExtractor(&storageFake{files: map[string]string{"id-1_notes.md": "hello upload"}})
	text, err := ex.Extract(context.Background(), &domain.Upload{ID: "id-1", Filename: "notes.md", StoragePath: "id-1_notes.md"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "hello upload" {
		t.Fatalf("unexpected text %q", text)
	}
}
