package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Slot names for the two durable session copies.
const (
	SlotPrimary = "session"
	SlotBackup  = "session.backup"
)

// ErrSlotEmpty is returned by Storage.Read when a slot has never been
// written.
var ErrSlotEmpty = errors.New("session: slot empty")

// Storage is a pair of string-keyed byte slots. The store layers JSON
// encoding, validation, and backup rotation on top of it.
type Storage interface {
	Read(slot string) ([]byte, error)
	Write(slot string, data []byte) error
}

// FileStorage keeps each slot as a JSON file inside a directory.
type FileStorage struct {
	dir string
}

// NewFileStorage creates the directory if needed and returns storage
// rooted there.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

func (f *FileStorage) path(slot string) string {
	return filepath.Join(f.dir, slot+".json")
}

func (f *FileStorage) Read(slot string) ([]byte, error) {
	data, err := os.ReadFile(f.path(slot))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrSlotEmpty
		}
		return nil, fmt.Errorf("reading session slot %s: %w", slot, err)
	}
	return data, nil
}

// Write replaces the slot atomically via a temp file rename, so a crash
// mid-write never leaves a half-written slot behind.
func (f *FileStorage) Write(slot string, data []byte) error {
	target := f.path(slot)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing session slot %s: %w", slot, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing session slot %s: %w", slot, err)
	}
	return nil
}

// MemoryStorage holds slots in a map. Used in tests.
type MemoryStorage struct {
	slots map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{slots: make(map[string][]byte)}
}

func (m *MemoryStorage) Read(slot string) ([]byte, error) {
	data, ok := m.slots[slot]
	if !ok {
		return nil, ErrSlotEmpty
	}
	return data, nil
}

func (m *MemoryStorage) Write(slot string, data []byte) error {
	m.slots[slot] = append([]byte(nil), data...)
	return nil
}
