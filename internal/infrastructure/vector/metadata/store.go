// Package metadata holds the chunk records aligned with vector index rows.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/askmydocs/internal/core/domain"
)

// Version 2 binds the file to the checksum of the index file it describes.
const formatVersion = 2

// Store is an ordered, immutable list of chunk records. Record i describes
// index row i.
type Store struct {
	records []domain.Chunk
	chunks  map[string]struct{}
	docs    map[string]struct{}
}

func New(records []domain.Chunk) *Store {
	return newStore(append([]domain.Chunk(nil), records...))
}

func newStore(records []domain.Chunk) *Store {
	s := &Store{
		records: records,
		chunks:  make(map[string]struct{}, len(records)),
		docs:    make(map[string]struct{}),
	}
	for _, rec := range records {
		s.chunks[rec.ChunkID] = struct{}{}
		s.docs[rec.DocID] = struct{}{}
	}
	return s
}

// Append returns a new store with records added after the existing ones.
func (s *Store) Append(records []domain.Chunk) *Store {
	next := make([]domain.Chunk, 0, s.Len()+len(records))
	if s != nil {
		next = append(next, s.records...)
	}
	next = append(next, records...)
	return newStore(next)
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

func (s *Store) Get(row int) (domain.Chunk, error) {
	if row < 0 || row >= s.Len() {
		return domain.Chunk{}, domain.WrapError(domain.ErrCorruptState, "get metadata",
			fmt.Errorf("row %d out of range [0,%d)", row, s.Len()))
	}
	return s.records[row], nil
}

func (s *Store) HasChunk(chunkID string) bool {
	if s == nil {
		return false
	}
	_, ok := s.chunks[chunkID]
	return ok
}

func (s *Store) HasDocument(docID string) bool {
	if s == nil {
		return false
	}
	_, ok := s.docs[docID]
	return ok
}

// Records returns a copy of every record in row order.
func (s *Store) Records() []domain.Chunk {
	if s == nil {
		return nil
	}
	return append([]domain.Chunk(nil), s.records...)
}

type document struct {
	Version       int            `json:"version"`
	IndexChecksum uint32         `json:"index_checksum"`
	Count         int            `json:"count"`
	Records       []domain.Chunk `json:"records"`
}

// Encode serializes the store together with the checksum of the index file
// it belongs to.
func (s *Store) Encode(indexChecksum uint32) ([]byte, error) {
	records := s.Records()
	if records == nil {
		records = []domain.Chunk{}
	}
	return json.Marshal(document{
		Version:       formatVersion,
		IndexChecksum: indexChecksum,
		Count:         len(records),
		Records:       records,
	})
}

// Decode parses a persisted metadata file and returns the index checksum it
// was written with. Unknown fields, a version other than the current one,
// duplicate chunk ids or a count that disagrees with the records are all
// reported as domain.ErrCorruptState.
func Decode(data []byte) (*Store, uint32, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, 0, domain.WrapError(domain.ErrCorruptState, "decode metadata", err)
	}
	if dec.More() {
		return nil, 0, domain.WrapError(domain.ErrCorruptState, "decode metadata", fmt.Errorf("trailing data"))
	}
	if doc.Version != formatVersion {
		return nil, 0, domain.WrapError(domain.ErrCorruptState, "decode metadata",
			fmt.Errorf("unsupported version %d", doc.Version))
	}
	if doc.Count != len(doc.Records) {
		return nil, 0, domain.WrapError(domain.ErrCorruptState, "decode metadata",
			fmt.Errorf("count %d does not match %d records", doc.Count, len(doc.Records)))
	}
	for i, rec := range doc.Records {
		if rec.ChunkID == "" || rec.DocID == "" {
			return nil, 0, domain.WrapError(domain.ErrCorruptState, "decode metadata",
				fmt.Errorf("record %d is missing ids", i))
		}
	}
	store := newStore(doc.Records)
	if len(store.chunks) != len(doc.Records) {
		return nil, 0, domain.WrapError(domain.ErrCorruptState, "decode metadata",
			fmt.Errorf("duplicate chunk ids in %d records", len(doc.Records)))
	}
	return store, doc.IndexChecksum, nil
}
