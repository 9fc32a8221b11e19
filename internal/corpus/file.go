package corpus

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/derm-match/internal/index"
)

// SnapshotVersion is the on-disk format version of corpus snapshot files.
const SnapshotVersion = 1

// Snapshot is the gob-encoded corpus file written by corpus pull and read
// back by the file source. It lets serving hosts run without database
// access.
type Snapshot struct {
	Version      int
	ModelVersion string
	Dim          int
	CreatedAt    time.Time
	Records      []index.CaseRecord
}

// FileSource reads a corpus snapshot file from disk.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Describe() string {
	return "file:" + s.path
}

// Load reads the snapshot, verifies its vectors against the header
// dimension and sanitizes the records.
func (s *FileSource) Load(ctx context.Context) ([]index.CaseRecord, error) {
	snap, err := ReadSnapshot(s.path)
	if err != nil {
		return nil, err
	}
	if err := CheckDim(snap.Records, snap.Dim); err != nil {
		return nil, fmt.Errorf("corrupt corpus snapshot %s: %w", s.path, err)
	}
	return Sanitize(snap.Records), nil
}

// ReadSnapshot decodes a snapshot file and checks its header. Records come
// back as stored, without sanitization, so inspection tooling sees the raw
// contents.
func ReadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus snapshot: %w", err)
	}
	defer f.Close()

	var snap Snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode corpus snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported corpus snapshot version %d (want %d)", snap.Version, SnapshotVersion)
	}
	return &snap, nil
}

// WriteSnapshot writes the snapshot to path through a temp file and rename,
// so a crash mid-write never leaves a truncated snapshot behind.
func WriteSnapshot(path string, snap *Snapshot) error {
	snap.Version = SnapshotVersion
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create corpus snapshot: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode corpus snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close corpus snapshot: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move corpus snapshot into place: %w", err)
	}
	return nil
}
