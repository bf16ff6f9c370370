package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/fieldbook/pkg/core"
)

// indexEntry is the row header of one record file. It lets scans filter by
// owner and synced flag, and order by seq, without decoding the file.
type indexEntry struct {
	Kind         core.Kind `json:"kind"`
	Owner        string    `json:"owner"`
	ID           string    `json:"id"`
	Seq          int64     `json:"seq"`
	Synced       bool      `json:"synced"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// index represents the persistent cache state.
type index struct {
	Version int                    `json:"version"`
	Entries map[string]*indexEntry `json:"entries"` // keyed by slash-separated relative path
	dirty   bool
	mu      sync.RWMutex
}

// cache manages the loading, updating, and saving of the index.
type cache struct {
	Path  string
	index *index
}

// newCache initializes a cache living in {root}/{systemDir}/index.json.
func newCache(root, systemDir string) *cache {
	return &cache{
		Path: filepath.Join(root, systemDir, "index.json"),
		index: &index{
			Version: 1,
			Entries: make(map[string]*indexEntry),
		},
	}
}

// Load reads the cache from disk. A missing or corrupted file yields an empty
// index; the files on disk remain the source of truth.
func (c *cache) Load() error {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	data, err := os.ReadFile(c.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	if err := json.Unmarshal(data, c.index); err != nil || c.index.Entries == nil {
		c.index.Entries = make(map[string]*indexEntry)
	}
	c.index.dirty = false
	return nil
}

// Save persists the cache if it changed since the last load or save.
func (c *cache) Save() error {
	c.index.mu.RLock()
	if !c.index.dirty {
		c.index.mu.RUnlock()
		return nil
	}
	data, err := json.MarshalIndent(c.index, "", "  ")
	c.index.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := writeFileAtomic(c.Path, data, 0644); err != nil {
		return err
	}

	c.index.mu.Lock()
	c.index.dirty = false
	c.index.mu.Unlock()
	return nil
}

// Get returns the entry for relPath if it matches the file's current mtime
// and size.
func (c *cache) Get(relPath string, mtime time.Time, size int64) (*indexEntry, bool) {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()

	entry, ok := c.index.Entries[relPath]
	if !ok || !entry.LastModified.Equal(mtime) || entry.Size != size {
		return nil, false
	}
	return entry, true
}

// Set updates an entry in the cache.
func (c *cache) Set(relPath string, entry *indexEntry) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	c.index.Entries[relPath] = entry
	c.index.dirty = true
}

// Prune removes the entries of kind that are not in keep.
func (c *cache) Prune(kind core.Kind, keep map[string]bool) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	for path, entry := range c.index.Entries {
		if entry.Kind == kind && !keep[path] {
			delete(c.index.Entries, path)
			c.index.dirty = true
		}
	}
}

// MaxSeq returns the highest seq indexed for kind.
func (c *cache) MaxSeq(kind core.Kind) int64 {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()

	var highest int64
	for _, entry := range c.index.Entries {
		if entry.Kind == kind && entry.Seq > highest {
			highest = entry.Seq
		}
	}
	return highest
}

// Len returns the number of entries in the cache.
func (c *cache) Len() int {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()
	return len(c.index.Entries)
}
