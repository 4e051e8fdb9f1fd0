package slideshow

import "maps"

// ImageCache maps image URL to loaded bytes for one generation.
// It is not safe for concurrent use; the engine owns it.
type ImageCache struct {
	entries map[string][]byte
	// version increments on every mutation so snapshots can reuse a
	// previous copy when nothing changed.
	version uint64
}

// NewImageCache creates an empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{entries: make(map[string][]byte)}
}

// Put inserts or overwrites the entry for url.
func (c *ImageCache) Put(url string, data []byte) {
	c.entries[url] = data
	c.version++
}

// Get returns the bytes for url, if loaded.
func (c *ImageCache) Get(url string) ([]byte, bool) {
	d, ok := c.entries[url]
	return d, ok
}

// Has reports whether url is loaded.
func (c *ImageCache) Has(url string) bool {
	_, ok := c.entries[url]
	return ok
}

// Len returns the number of loaded images.
func (c *ImageCache) Len() int {
	return len(c.entries)
}

// Clear drops every entry.
func (c *ImageCache) Clear() {
	if len(c.entries) == 0 {
		return
	}
	clear(c.entries)
	c.version++
}

// Retain removes every entry whose URL keep rejects and returns the
// removed URLs.
func (c *ImageCache) Retain(keep func(url string) bool) []string {
	var evicted []string
	for url := range c.entries {
		if !keep(url) {
			evicted = append(evicted, url)
		}
	}
	for _, url := range evicted {
		delete(c.entries, url)
	}
	if len(evicted) > 0 {
		c.version++
	}
	return evicted
}

// Clone returns a copy of the URL → bytes map. The byte slices are shared
// and must be treated as read-only.
func (c *ImageCache) Clone() map[string][]byte {
	return maps.Clone(c.entries)
}

// Version changes whenever the cache content changes.
func (c *ImageCache) Version() uint64 {
	return c.version
}
