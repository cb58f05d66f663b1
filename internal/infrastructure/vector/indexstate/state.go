// Package indexstate owns the published (index, metadata) pair. Readers take
// an immutable snapshot; writers are serialized, within the process by a mutex
// and across processes by a lock file next to the index, and publish only
// after the new pair has been persisted.
package indexstate

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/kirillkom/askmydocs/internal/core/domain"
	"github.com/kirillkom/askmydocs/internal/core/ports"
	"github.com/kirillkom/askmydocs/internal/infrastructure/vector/flat"
	"github.com/kirillkom/askmydocs/internal/infrastructure/vector/metadata"
)

// Snapshot is a consistent view: index row i is described by metadata record i.
type Snapshot struct {
	index *flat.Index
	meta  *metadata.Store
}

func NewSnapshot(index *flat.Index, meta *metadata.Store) (*Snapshot, error) {
	if index.Len() != meta.Len() {
		return nil, domain.WrapError(domain.ErrCorruptState, "new snapshot",
			fmt.Errorf("index has %d rows, metadata has %d records", index.Len(), meta.Len()))
	}
	return &Snapshot{index: index, meta: meta}, nil
}

func (s *Snapshot) Len() int       { return s.index.Len() }
func (s *Snapshot) Dimension() int { return s.index.Dimension() }

func (s *Snapshot) Search(queryVector []float32, k int) ([]domain.Hit, error) {
	return s.index.Search(queryVector, k)
}

func (s *Snapshot) Record(row int) (domain.Chunk, error) {
	return s.meta.Get(row)
}

func (s *Snapshot) HasDocument(docID string) bool {
	return s.meta.HasDocument(docID)
}

func (s *Snapshot) Records() []domain.Chunk {
	return s.meta.Records()
}

type State struct {
	indexPath    string
	metadataPath string
	// fileLock serializes writers across processes sharing the same pair.
	fileLock *flock.Flock

	writeMu sync.Mutex
	// onDisk identifies the persisted pair the published snapshot matches.
	onDisk fingerprint

	mu      sync.RWMutex
	current *Snapshot
}

type fingerprint struct {
	index    uint32
	metadata uint32
}

const lockRetryDelay = 50 * time.Millisecond

// New returns a state with nothing published. Empty paths keep the state
// in memory only.
func New(indexPath, metadataPath string) *State {
	st := &State{indexPath: indexPath, metadataPath: metadataPath}
	if st.persistent() {
		st.fileLock = flock.New(indexPath + ".lock")
	}
	return st
}

// Open creates a state and loads any persisted pair. A missing pair is not an
// error: the state simply starts empty.
func Open(indexPath, metadataPath string) (*State, error) {
	st := New(indexPath, metadataPath)
	if err := st.Reload(); err != nil && !domain.IsKind(err, domain.ErrIndexNotReady) {
		return nil, err
	}
	return st, nil
}

func (s *State) persistent() bool {
	return s.indexPath != "" && s.metadataPath != ""
}

func (s *State) Current() ports.IndexSnapshot {
	snap := s.snapshot()
	if snap == nil {
		return nil
	}
	return snap
}

func (s *State) snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *State) publish(snap *Snapshot) {
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
}

// Replace discards every existing row and publishes a fresh index.
func (s *State) Replace(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) (int, error) {
	if err := checkAligned(chunks, vectors); err != nil {
		return 0, err
	}
	if err := checkUnique(nil, chunks); err != nil {
		return 0, err
	}
	index, err := flat.Build(vectors)
	if err != nil {
		return 0, fmt.Errorf("build index: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	unlock, err := s.lockFiles(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return s.commit(ctx, index, metadata.New(chunks))
}

// Append adds rows after the current ones, or builds a new index when none
// is published yet. The persisted pair is re-read first when another process
// has replaced it, so rows written elsewhere are extended rather than
// overwritten. Chunk ids that are already indexed are rejected.
func (s *State) Append(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) (int, error) {
	if err := checkAligned(chunks, vectors); err != nil {
		return 0, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	unlock, err := s.lockFiles(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	if err := s.refresh(); err != nil {
		return 0, fmt.Errorf("refresh index before append: %w", err)
	}
	base := s.snapshot()
	if len(chunks) == 0 {
		if base == nil {
			return 0, nil
		}
		return base.Len(), nil
	}
	if err := checkUnique(base, chunks); err != nil {
		return 0, err
	}

	var (
		index *flat.Index
		meta  *metadata.Store
	)
	if base == nil {
		index, err = flat.Build(vectors)
		meta = metadata.New(chunks)
	} else {
		index, err = base.index.Add(vectors)
		meta = base.meta.Append(chunks)
	}
	if err != nil {
		return 0, fmt.Errorf("extend index: %w", err)
	}
	return s.commit(ctx, index, meta)
}

// Reload replaces the published snapshot with the persisted pair. On any
// error the published snapshot is left as it was.
func (s *State) Reload() error {
	if !s.persistent() {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	unlock, err := s.lockFiles(context.Background())
	if err != nil {
		return err
	}
	defer unlock()

	snap, fp, err := readPair(s.indexPath, s.metadataPath)
	if err != nil {
		return err
	}
	if s.snapshot() != nil && fp == s.onDisk {
		return nil
	}
	s.publish(snap)
	s.onDisk = fp
	return nil
}

// Refresh re-reads the persisted pair under the file lock when another
// process has written it since this state last read or wrote it.
func (s *State) Refresh(ctx context.Context) error {
	if !s.persistent() {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	unlock, err := s.lockFiles(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return s.refresh()
}

// refresh publishes the persisted pair when it differs from the one the
// current snapshot was read from or written to. Callers hold writeMu and the
// file lock.
func (s *State) refresh() error {
	if !s.persistent() {
		return nil
	}
	snap, fp, err := readPair(s.indexPath, s.metadataPath)
	if err != nil {
		if domain.IsKind(err, domain.ErrIndexNotReady) {
			return nil
		}
		return err
	}
	if s.snapshot() != nil && fp == s.onDisk {
		return nil
	}
	slog.Info("index_refreshed_before_write",
		"index_path", s.indexPath,
		"rows", snap.Len(),
	)
	s.publish(snap)
	s.onDisk = fp
	return nil
}

func (s *State) lockFiles(ctx context.Context) (func(), error) {
	if s.fileLock == nil {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(s.indexPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	locked, err := s.fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire index lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("acquire index lock: %w", ctx.Err())
	}
	return func() {
		if err := s.fileLock.Unlock(); err != nil {
			slog.Warn("index_unlock_failed", "lock_path", s.fileLock.Path(), "error", err)
		}
	}, nil
}

func (s *State) commit(ctx context.Context, index *flat.Index, meta *metadata.Store) (int, error) {
	snap, err := NewSnapshot(index, meta)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fp, err := s.persist(snap)
	if err != nil {
		return 0, err
	}
	s.publish(snap)
	s.onDisk = fp
	return snap.Len(), nil
}

// persist installs the index file first and the metadata file second. The
// metadata carries the checksum of its index file, so a pair left half
// installed by a crash fails to load instead of loading misaligned.
func (s *State) persist(snap *Snapshot) (fingerprint, error) {
	if !s.persistent() {
		return fingerprint{}, nil
	}
	indexBytes, err := snap.index.MarshalBinary()
	if err != nil {
		return fingerprint{}, fmt.Errorf("encode index: %w", err)
	}
	indexSum := crc32.ChecksumIEEE(indexBytes)
	metaBytes, err := snap.meta.Encode(indexSum)
	if err != nil {
		return fingerprint{}, fmt.Errorf("encode metadata: %w", err)
	}

	indexTmp, err := writeTemp(s.indexPath, indexBytes)
	if err != nil {
		return fingerprint{}, err
	}
	metaTmp, err := writeTemp(s.metadataPath, metaBytes)
	if err != nil {
		_ = os.Remove(indexTmp)
		return fingerprint{}, err
	}
	if err := os.Rename(indexTmp, s.indexPath); err != nil {
		_ = os.Remove(indexTmp)
		_ = os.Remove(metaTmp)
		return fingerprint{}, fmt.Errorf("install index file: %w", err)
	}
	if err := os.Rename(metaTmp, s.metadataPath); err != nil {
		_ = os.Remove(metaTmp)
		slog.Error("index_persist_partial",
			"index_path", s.indexPath,
			"metadata_path", s.metadataPath,
			"error", err,
		)
		return fingerprint{}, fmt.Errorf("install metadata file: %w", err)
	}
	return fingerprint{index: indexSum, metadata: crc32.ChecksumIEEE(metaBytes)}, nil
}

func writeTemp(target string, data []byte) (string, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return name, nil
}

// Load reads a persisted pair. Both files absent means the index was never
// built (domain.ErrIndexNotReady); one file without the other, undecodable
// content, metadata written for a different index file or a row count
// mismatch is domain.ErrCorruptState.
func Load(indexPath, metadataPath string) (*Snapshot, error) {
	snap, _, err := readPair(indexPath, metadataPath)
	return snap, err
}

func readPair(indexPath, metadataPath string) (*Snapshot, fingerprint, error) {
	indexBytes, indexErr := os.ReadFile(indexPath)
	metaBytes, metaErr := os.ReadFile(metadataPath)

	indexMissing := errors.Is(indexErr, fs.ErrNotExist)
	metaMissing := errors.Is(metaErr, fs.ErrNotExist)
	switch {
	case indexMissing && metaMissing:
		return nil, fingerprint{}, domain.WrapError(domain.ErrIndexNotReady, "load index",
			fmt.Errorf("%s and %s do not exist", indexPath, metadataPath))
	case indexMissing:
		return nil, fingerprint{}, domain.WrapError(domain.ErrCorruptState, "load index",
			fmt.Errorf("metadata present but %s is missing", indexPath))
	case metaMissing:
		return nil, fingerprint{}, domain.WrapError(domain.ErrCorruptState, "load index",
			fmt.Errorf("index present but %s is missing", metadataPath))
	case indexErr != nil:
		return nil, fingerprint{}, fmt.Errorf("read index file: %w", indexErr)
	case metaErr != nil:
		return nil, fingerprint{}, fmt.Errorf("read metadata file: %w", metaErr)
	}

	index, err := flat.Decode(indexBytes)
	if err != nil {
		return nil, fingerprint{}, err
	}
	meta, boundSum, err := metadata.Decode(metaBytes)
	if err != nil {
		return nil, fingerprint{}, err
	}
	indexSum := crc32.ChecksumIEEE(indexBytes)
	if boundSum != indexSum {
		return nil, fingerprint{}, domain.WrapError(domain.ErrCorruptState, "load index",
			fmt.Errorf("%s was written for index checksum %08x, %s has %08x", metadataPath, boundSum, indexPath, indexSum))
	}
	snap, err := NewSnapshot(index, meta)
	if err != nil {
		return nil, fingerprint{}, err
	}
	return snap, fingerprint{index: indexSum, metadata: crc32.ChecksumIEEE(metaBytes)}, nil
}

func checkAligned(chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "align rows",
			fmt.Errorf("%d chunks but %d vectors", len(chunks), len(vectors)))
	}
	return nil
}

func checkUnique(base *Snapshot, chunks []domain.Chunk) error {
	seen := make(map[string]struct{}, len(chunks))
	for _, chunk := range chunks {
		_, dup := seen[chunk.ChunkID]
		if dup || (base != nil && base.meta.HasChunk(chunk.ChunkID)) {
			return domain.WrapError(domain.ErrInvalidInput, "add rows",
				fmt.Errorf("chunk id %q is already indexed", chunk.ChunkID))
		}
		seen[chunk.ChunkID] = struct{}{}
	}
	return nil
}
