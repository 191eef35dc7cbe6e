// Package cache keeps structure reports keyed by the content they were computed
// from, bounded in memory and optionally persisted to disk.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-code-structure/pkg/structure"
)

// ErrInvalidSize is returned when the cache is created with a non-positive size.
var ErrInvalidSize = errors.New("cache: size must be positive")

// DefaultSize is the number of reports kept when no size is configured.
const DefaultSize = 256

// FileName is the name of the persisted cache inside a cache directory.
const FileName = "reports.msgpack"

// Entry is a cached report with metadata.
type Entry struct {
	Key       string            `msgpack:"key"`
	Source    string            `msgpack:"source"`
	Report    *structure.Report `msgpack:"report"`
	CreatedAt time.Time         `msgpack:"created_at"`
}

// ReportCache is an LRU cache of reports. It is safe for concurrent use.
type ReportCache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, Entry]
	hits    int
	misses  int
}

// Stats reports cache usage.
type Stats struct {
	Len    int `json:"len"`
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
}

// New creates a cache holding at most size reports.
func New(size int) (*ReportCache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	entries, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("creating LRU: %w", err)
	}
	return &ReportCache{entries: entries}, nil
}

// Key derives the cache key of a graph description and the options it is
// structured with.
func Key(data []byte, mergeComposites bool) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(mergeComposites)))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the report stored under key.
func (c *ReportCache) Get(key string) (*structure.Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(key)
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	return e.Report, true
}

// Set stores rep under key. source names where the graph came from.
func (c *ReportCache) Set(key, source string, rep *structure.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, Entry{Key: key, Source: source, Report: rep, CreatedAt: time.Now()})
}

// Delete removes key.
func (c *ReportCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(key)
}

// Clear removes every entry.
func (c *ReportCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}

// Len returns the number of cached reports.
func (c *ReportCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Stats returns usage counters.
func (c *ReportCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Len: c.entries.Len(), Hits: c.hits, Misses: c.misses}
}

// Save writes the entries with msgpack, least recently used first.
func (c *ReportCache) Save(w io.Writer) error {
	c.mu.Lock()
	keys := c.entries.Keys()
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		if e, ok := c.entries.Peek(k); ok {
			entries = append(entries, e)
		}
	}
	c.mu.Unlock()

	if err := msgpack.NewEncoder(w).Encode(entries); err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	return nil
}

// Load replaces the entries with those read from r, keeping their recency order.
func (c *ReportCache) Load(r io.Reader) error {
	var entries []Entry
	if err := msgpack.NewDecoder(r).Decode(&entries); err != nil {
		return fmt.Errorf("failed to decode cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
	for _, e := range entries {
		c.entries.Add(e.Key, e)
	}
	return nil
}

// PersistToFile saves the cache to path, creating parent directories.
func PersistToFile(c *ReportCache, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer f.Close()

	return c.Save(f)
}

// LoadFromFile loads the cache from path. A missing file leaves the cache empty.
func LoadFromFile(c *ReportCache, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	return c.Load(f)
}
