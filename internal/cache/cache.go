// Package cache stores synthesized audio on disk so that repeating an
// identical request does not spend API credits twice. Entries are
// zstd-compressed and evicted least-recently-used once the directory
// exceeds its byte capacity.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const fileExt = ".mp3.zst"

// Cache is a size-bounded disk cache. Methods are safe for use from a
// single process; entries are plain files under dir.
type Cache struct {
	dir      string
	capacity int64 // compressed bytes on disk; <= 0 means unbounded

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu     sync.Mutex
	hits   int64
	misses int64
}

// Stats describes the current cache contents and hit counters.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
	Bytes   int64 // compressed bytes on disk
}

// Key derives the cache key for one synthesis request. Two requests share
// an entry only when model, voice, and text all match.
func Key(modelID, voiceID, text string) string {
	sum := sha256.Sum256([]byte(modelID + "|" + voiceID + "|" + text))
	return hex.EncodeToString(sum[:])
}

// New opens (creating if needed) a cache rooted at dir with the given
// byte capacity.
func New(dir string, capacity int64) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Cache{
		dir:      dir,
		capacity: capacity,
		encoder:  encoder,
		decoder:  decoder,
	}, nil
}

// Get returns the cached audio for key, if present. A hit refreshes the
// entry's position in the eviction order.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.entryPath(key)
	compressed, err := os.ReadFile(path)
	if err != nil {
		c.misses++
		return nil, false
	}
	data, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		// Corrupt entry; drop it.
		_ = os.Remove(path)
		c.misses++
		return nil, false
	}

	now := time.Now()
	_ = os.Chtimes(path, now, now)
	c.hits++
	return data, true
}

// Put stores audio under key and evicts the least-recently-used entries
// until the directory fits the capacity again. The entry just written
// always survives eviction, even when it alone exceeds the budget.
func (c *Cache) Put(key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.entryPath(key)
	compressed := c.encoder.EncodeAll(data, nil)
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return c.evict(path)
}

// Clear removes every cache entry.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, _, err := c.scan()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.Remove(e.path); err != nil {
			return fmt.Errorf("failed to remove cache entry: %w", err)
		}
	}
	return nil
}

// Stats reports hit counters and the on-disk footprint.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, total, err := c.scan()
	stats := Stats{Hits: c.hits, Misses: c.misses}
	if err == nil {
		stats.Entries = len(entries)
		stats.Bytes = total
	}
	return stats
}

// Close releases the compressor state. The on-disk entries persist.
func (c *Cache) Close() error {
	c.decoder.Close()
	return c.encoder.Close()
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, key+fileExt)
}

type diskEntry struct {
	path    string
	size    int64
	modTime time.Time
}

// scan lists the cache entries and their total compressed size.
func (c *Cache) scan() ([]diskEntry, int64, error) {
	dirents, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var (
		entries []diskEntry
		total   int64
	)
	for _, d := range dirents {
		if d.IsDir() || !strings.HasSuffix(d.Name(), fileExt) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		entries = append(entries, diskEntry{
			path:    filepath.Join(c.dir, d.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		total += info.Size()
	}
	return entries, total, nil
}

// evict removes entries oldest-first until the cache fits its capacity,
// never touching keep.
func (c *Cache) evict(keep string) error {
	if c.capacity <= 0 {
		return nil
	}
	entries, total, err := c.scan()
	if err != nil {
		return err
	}
	if total <= c.capacity {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].modTime.Before(entries[j].modTime)
	})
	for _, e := range entries {
		if total <= c.capacity {
			break
		}
		if e.path == keep {
			continue
		}
		if err := os.Remove(e.path); err != nil {
			return fmt.Errorf("failed to evict cache entry: %w", err)
		}
		total -= e.size
	}
	return nil
}
