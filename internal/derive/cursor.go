package derive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Cursor marks the last event whose derived state has been flushed to the
// sink, in canonical (block number, log index) order. Events at or before
// the cursor are still replayed on resume to rebuild in-memory state.
type Cursor struct {
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint64 `json:"log_index"`
	UpdatedAt   string `json:"updated_at"`
}

// Covers reports whether an event at (block, logIndex) is at or before the
// cursor, i.e. already applied.
func (c Cursor) Covers(block, logIndex uint64) bool {
	if block != c.BlockNumber {
		return block < c.BlockNumber
	}
	return logIndex <= c.LogIndex
}

// CursorStore persists derive progress so a run can resume. Deleting the
// stored cursor forces a full reprocess.
type CursorStore interface {
	Load(ctx context.Context) (Cursor, bool, error)
	Save(ctx context.Context, cursor Cursor) error
}

// FileCursorStore keeps the cursor in a local JSON file, written atomically
// via tmp file and rename.
type FileCursorStore struct {
	path string
}

func NewFileCursorStore(path string) *FileCursorStore {
	return &FileCursorStore{path: path}
}

func (s *FileCursorStore) Load(_ context.Context) (Cursor, bool, error) {
	if s.path == "" {
		return Cursor{}, false, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Cursor{}, false, nil
		}
		return Cursor{}, false, fmt.Errorf("read cursor: %w", err)
	}
	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return Cursor{}, false, fmt.Errorf("parse cursor: %w", err)
	}
	return cursor, true, nil
}

func (s *FileCursorStore) Save(_ context.Context, cursor Cursor) error {
	if s.path == "" {
		return nil
	}
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cursor dir: %w", err)
		}
	}

	cursor.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write cursor tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename cursor: %w", err)
	}
	return nil
}
