package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// seenItem is one persisted record.
type seenItem struct {
	Key       string    `json:"key"`
	SeenAt    time.Time `json:"seen_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FileStore keeps seen keys in memory and mirrors them to a JSON file, so a single
// instance without Redis or Postgres still remembers across restarts.
type FileStore struct {
	filePath string
	items    map[string]seenItem
	mu       sync.RWMutex
	now      func() time.Time
}

// NewFileStore opens filePath, creating it on first write.
func NewFileStore(filePath string) (*FileStore, error) {
	fs := &FileStore{
		filePath: filePath,
		items:    make(map[string]seenItem),
		now:      time.Now,
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var items []seenItem
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to unmarshal cache: %w", err)
	}

	now := fs.now()
	for _, item := range items {
		if now.Before(item.ExpiresAt) {
			fs.items[item.Key] = item
		}
	}
	return nil
}

// save writes live items through a temp file and rename. Caller holds fs.mu.
func (fs *FileStore) save() error {
	now := fs.now()
	items := make([]seenItem, 0, len(fs.items))
	for key, item := range fs.items {
		if !now.Before(item.ExpiresAt) {
			delete(fs.items, key)
			continue
		}
		items = append(items, item)
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.filePath), ".seen-*.json")
	if err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.filePath); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

func (fs *FileStore) Exists(_ context.Context, key string) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	item, ok := fs.items[key]
	return ok && fs.now().Before(item.ExpiresAt), nil
}

func (fs *FileStore) SetEX(_ context.Context, key string, ttl time.Duration) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	now := fs.now()
	fs.items[key] = seenItem{Key: key, SeenAt: now, ExpiresAt: now.Add(ttl)}
	return fs.save()
}

// Ping checks that the cache directory is still writable.
func (fs *FileStore) Ping(context.Context) error {
	dir := filepath.Dir(fs.filePath)
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

func (fs *FileStore) Len() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.items)
}

func (fs *FileStore) Close() error { return nil }
