package resource

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// indexFile is the cache index name inside the cache directory.
const indexFile = "index.msgpack"

// cacheEntry records one downloaded resource.
type cacheEntry struct {
	File    string `msgpack:"file"`
	Size    int64  `msgpack:"size"`
	Fetched int64  `msgpack:"fetched"`
}

// cacheIndex maps source URLs to their cached files. Persisted as
// MessagePack so repeated runs reuse downloads.
type cacheIndex struct {
	Entries map[string]cacheEntry `msgpack:"entries"`
}

func loadIndex(dir string) *cacheIndex {
	idx := &cacheIndex{Entries: make(map[string]cacheEntry)}
	data, err := os.ReadFile(filepath.Join(dir, indexFile))
	if err != nil {
		return idx
	}
	if err := msgpack.Unmarshal(data, idx); err != nil || idx.Entries == nil {
		// A corrupt index only costs re-downloads.
		idx.Entries = make(map[string]cacheEntry)
	}
	return idx
}

func (idx *cacheIndex) save(dir string) error {
	data, err := msgpack.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encode cache index: %w", err)
	}
	tmp := filepath.Join(dir, indexFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, indexFile))
}

// lookup returns the cached file for url if it still exists on disk.
func (idx *cacheIndex) lookup(dir, url string) (string, bool) {
	e, ok := idx.Entries[url]
	if !ok {
		return "", false
	}
	p := filepath.Join(dir, e.File)
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

func (idx *cacheIndex) record(url, file string, size int64) {
	idx.Entries[url] = cacheEntry{File: file, Size: size, Fetched: time.Now().Unix()}
}

// cacheName derives a stable, collision-free cache filename for a URL.
func cacheName(url, base string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:8]) + "-" + base
}
