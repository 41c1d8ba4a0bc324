// Package assets loads source images for bake jobs and caches the alpha
// mip chains built from them.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Manager resolves image paths against search roots and caches decoded
// results until the file changes.
type Manager struct {
	roots []string
	cache *Cache
	mu    sync.RWMutex
}

// NewManager creates a new asset manager.
func NewManager() *Manager {
	return &Manager{
		cache: NewCache(),
	}
}

// AddRoot adds a directory searched for relative paths.
// Roots are searched in reverse order (last added = highest priority).
func (m *Manager) AddRoot(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("adding root %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("adding root %s: not a directory", dir)
	}

	m.mu.Lock()
	m.roots = append(m.roots, dir)
	m.mu.Unlock()

	return nil
}

// Resolve finds path on disk. Absolute paths and paths that exist relative
// to the working directory are used as is.
func (m *Manager) Resolve(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.roots) - 1; i >= 0; i-- {
		p := filepath.Join(m.roots[i], path)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("file not found: %s", path)
}

// Load returns the alpha mip chain of the image at path.
func (m *Manager) Load(path string, opts Options) (*AlphaImage, error) {
	resolved, err := m.Resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, err
	}

	key := resolved + "|" + opts.Channel + "|" + strconv.Itoa(opts.Mips)
	if img, ok := m.cache.Get(key, info.ModTime(), info.Size()); ok {
		return img, nil
	}

	img, err := LoadFile(resolved, opts)
	if err != nil {
		return nil, err
	}
	m.cache.Set(key, img, info.ModTime(), info.Size())
	return img, nil
}

// Stats returns cache statistics.
func (m *Manager) Stats() (hits, misses int) {
	return m.cache.Stats()
}

// Close drops the roots and the cache.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.roots = nil
	m.cache.Clear()
}

type entry struct {
	img     *AlphaImage
	modTime time.Time
	size    int64
}

// Cache is an in-memory cache of loaded images. Entries are only returned
// while the file they came from is unchanged.
type Cache struct {
	data map[string]entry
	mu   sync.Mutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]entry),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string, modTime time.Time, size int64) (*AlphaImage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if ok && (!e.modTime.Equal(modTime) || e.size != size) {
		delete(c.data, key)
		ok = false
	}
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return e.img, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, img *AlphaImage, modTime time.Time, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry{img: img, modTime: modTime, size: size}
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]entry)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
