package store

import (
	"maps"
	"slices"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/drawmap/internal/drawing"
)

const (
	coordsKeyPrefix = "coords:"
	descsKeyPrefix  = "descs:"
)

// CachedStore serves artifact reads from memory. Saves through the store
// update the cache; external changes are picked up after the TTL or an
// explicit Invalidate.
type CachedStore struct {
	*FileStore
	cache *cache.Cache
}

// NewCachedStore wraps fs with a read cache of the given TTL.
func NewCachedStore(fs *FileStore, ttl time.Duration) *CachedStore {
	return &CachedStore{
		FileStore: fs,
		cache:     cache.New(ttl, ttl*2),
	}
}

// ReadCoordinates returns a copy of the cached coordinate list.
func (c *CachedStore) ReadCoordinates(name string) (drawing.Coordinates, error) {
	if cached, found := c.cache.Get(coordsKeyPrefix + name); found {
		if coords, ok := cached.(drawing.Coordinates); ok {
			return slices.Clone(coords), nil
		}
	}
	coords, err := c.FileStore.ReadCoordinates(name)
	if err != nil {
		return nil, err
	}
	c.cache.Set(coordsKeyPrefix+name, slices.Clone(coords), cache.DefaultExpiration)
	return coords, nil
}

// ReadDescriptors returns a copy of the cached descriptor map.
func (c *CachedStore) ReadDescriptors(name string) (drawing.Descriptors, error) {
	if cached, found := c.cache.Get(descsKeyPrefix + name); found {
		if descs, ok := cached.(drawing.Descriptors); ok {
			return maps.Clone(descs), nil
		}
	}
	descs, err := c.FileStore.ReadDescriptors(name)
	if err != nil {
		return nil, err
	}
	c.cache.Set(descsKeyPrefix+name, maps.Clone(descs), cache.DefaultExpiration)
	return descs, nil
}

// SaveCoordinates writes through and refreshes the cache.
func (c *CachedStore) SaveCoordinates(name string, coords drawing.Coordinates) error {
	if err := c.FileStore.SaveCoordinates(name, coords); err != nil {
		c.cache.Delete(coordsKeyPrefix + name)
		return err
	}
	c.cache.Set(coordsKeyPrefix+name, slices.Clone(coords), cache.DefaultExpiration)
	return nil
}

// SaveDescriptors writes through and refreshes the cache.
func (c *CachedStore) SaveDescriptors(name string, descs drawing.Descriptors) error {
	if err := c.FileStore.SaveDescriptors(name, descs); err != nil {
		c.cache.Delete(descsKeyPrefix + name)
		return err
	}
	c.cache.Set(descsKeyPrefix+name, maps.Clone(descs), cache.DefaultExpiration)
	return nil
}

// Invalidate drops cached artifacts of one drawing.
func (c *CachedStore) Invalidate(name string) {
	c.cache.Delete(coordsKeyPrefix + name)
	c.cache.Delete(descsKeyPrefix + name)
}

// Flush drops every cached entry.
func (c *CachedStore) Flush() {
	c.cache.Flush()
}

// Len returns the number of cached entries.
func (c *CachedStore) Len() int {
	return c.cache.ItemCount()
}
