package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/collabcanvas/backend/internal/canvas"
)

// Snapshot is the on-disk shape of a room's canvas, one JSON file per room
// code. It is always written whole; readers see either the previous file or
// the next one, never a partial write.
type Snapshot struct {
	RoomCode    string      `json:"roomCode"`
	LastUpdated time.Time   `json:"lastUpdated"`
	Components  canvas.Tree `json:"components"`
}

// FileStore persists one snapshot file per room under a single directory.
type FileStore struct {
	dir string
	log *zap.SugaredLogger
}

func New(dir string, log *zap.SugaredLogger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create canvas dir: %w", err)
	}
	return &FileStore{dir: dir, log: log}, nil
}

func (s *FileStore) path(roomCode string) string {
	return filepath.Join(s.dir, roomCode+".json")
}

// Save replaces the room's snapshot with the given components. The write goes
// to a temp file first and is renamed into place, so a concurrent Load never
// observes a half-written snapshot.
func (s *FileStore) Save(roomCode string, components canvas.Tree) error {
	if components == nil {
		components = canvas.Tree{}
	}
	snap := Snapshot{
		RoomCode:    roomCode,
		LastUpdated: time.Now().UTC(),
		Components:  components,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot for %s: %w", roomCode, err)
	}

	tmp, err := os.CreateTemp(s.dir, roomCode+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot for %s: %w", roomCode, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot for %s: %w", roomCode, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot for %s: %w", roomCode, err)
	}
	if err := os.Rename(tmp.Name(), s.path(roomCode)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("install snapshot for %s: %w", roomCode, err)
	}

	s.log.Debugw("canvas saved", "room", roomCode, "components", len(components))
	return nil
}

// Load returns the room's stored root components. A room that has never been
// saved yields an empty tree, not an error.
func (s *FileStore) Load(roomCode string) (canvas.Tree, error) {
	data, err := os.ReadFile(s.path(roomCode))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return canvas.Tree{}, nil
		}
		return nil, fmt.Errorf("read snapshot for %s: %w", roomCode, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot for %s: %w", roomCode, err)
	}
	if snap.Components == nil {
		snap.Components = canvas.Tree{}
	}
	return snap.Components, nil
}
