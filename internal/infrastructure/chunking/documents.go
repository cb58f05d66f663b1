package chunking

import (
	"strconv"
	"strings"

	"github.com/kirillkom/askmydocs/internal/core/domain"
)

// ChunkDocuments splits every document in order. Chunk ids are the document
// id followed by the zero-based chunk ordinal, so they are stable for a
// given document text and configuration.
func (s *Splitter) ChunkDocuments(docs []domain.Document) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(docs))
	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		for i, text := range s.Split(doc.Text) {
			out = append(out, domain.Chunk{
				DocID:   doc.ID,
				ChunkID: doc.ID + "_" + strconv.Itoa(i),
				Text:    text,
				Source:  doc.Source,
			})
		}
	}
	return out
}
