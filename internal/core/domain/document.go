package domain

import "time"

// Document is extracted text ready for chunking. ID is stable for a given
// source: the corpus-relative path for directory indexing, the upload id for
// uploaded files.
type Document struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Chunk is a bounded slice of exactly one Document.
type Chunk struct {
	DocID   string `json:"doc_id"`
	ChunkID string `json:"chunk_id"`
	Text    string `json:"text"`
	Source  string `json:"source"`
}

type UploadStatus string

const (
	StatusUploaded   UploadStatus = "uploaded"
	StatusProcessing UploadStatus = "processing"
	StatusIndexed    UploadStatus = "indexed"
	StatusFailed     UploadStatus = "failed"
)

// Upload tracks a file submitted through the API until it is appended to the index.
type Upload struct {
	ID          string       `json:"id"`
	Filename    string       `json:"filename"`
	MimeType    string       `json:"mime_type"`
	StoragePath string       `json:"storage_path"`
	ChunkCount  int          `json:"chunk_count"`
	Status      UploadStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// IndexReport summarizes a build or append run.
type IndexReport struct {
	Documents  int   `json:"documents"`
	Chunks     int   `json:"chunks"`
	TotalRows  int   `json:"total_rows"`
	Dimension  int   `json:"dimension"`
	DurationMS int64 `json:"duration_ms"`
}
