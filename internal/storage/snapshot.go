// Package storage holds the external persistence adapters the core Room
// Registry and user-facing balance operations consume: the registry's
// metadata snapshot file, the Postgres-backed user store, and the
// ClickHouse-backed hand-history sink (§2 Persistence Adapter, §6
// Persistence layout).
package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"pineapple-room-server/internal/registry"
)

// snapshotVersion is bumped whenever the Meta wire shape changes
// incompatibly; Load refuses to decode a file written by a newer version.
const snapshotVersion = 1

type envelope struct {
	Version int
	Rooms   []registry.Meta
}

// FileSnapshotStore persists registry.Meta to a single file with one prior
// generation kept as a `.bak`, rotated atomically on every Save (§6
// Persistence layout, §5 "rotated with a single .bak previous generation").
type FileSnapshotStore struct {
	path string
}

// NewFileSnapshotStore builds a store rooted at ROOM_STORAGE_PATH/rooms.snapshot.
func NewFileSnapshotStore(storageRoot string) *FileSnapshotStore {
	return &FileSnapshotStore{path: filepath.Join(storageRoot, "rooms.snapshot")}
}

// Save atomically rewrites the snapshot file: the previous generation (if
// any) is moved to `.bak` before the new one is renamed into place, so a
// crash mid-write never leaves neither version recoverable.
func (s *FileSnapshotStore) Save(metas []registry.Meta) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("snapshot: mkdir: %w", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(envelope{Version: snapshotVersion, Rooms: metas}); err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("snapshot: write temp: %w", err)
	}

	if _, err := os.Stat(s.path); err == nil {
		_ = os.Rename(s.path, s.path+".bak")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("snapshot: rename: %w", err)
	}
	return nil
}

// Load reads the current snapshot, falling back to `.bak` on any decode
// failure, then to an empty set (§6: "on load, failures fall back to .bak,
// then to empty").
func (s *FileSnapshotStore) Load() ([]registry.Meta, error) {
	if metas, err := s.loadFrom(s.path); err == nil {
		return metas, nil
	}
	if metas, err := s.loadFrom(s.path + ".bak"); err == nil {
		return metas, nil
	}
	return nil, nil
}

func (s *FileSnapshotStore) loadFrom(path string) ([]registry.Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, fmt.Errorf("snapshot: decode %s: %w", path, err)
	}
	if env.Version > snapshotVersion {
		return nil, fmt.Errorf("snapshot: %s has newer version %d than supported %d", path, env.Version, snapshotVersion)
	}
	return env.Rooms, nil
}
