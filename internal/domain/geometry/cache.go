// internal/domain/geometry/cache.go

package geometry

import (
	"container/list"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// BoundsCache memoizes feature bounding boxes behind a bounded LRU. The
// cache is content-addressed: features are keyed by their stable GeoJSON
// id when present, otherwise by a hash of their coordinates, so the same
// geometry fetched twice resolves to one entry.
type BoundsCache struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	items   map[string]*list.Element
}

type boundsEntry struct {
	key string
	box BBox
	ok  bool
}

// NewBoundsCache creates a bounds cache holding at most maxSize entries.
func NewBoundsCache(maxSize int) *BoundsCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &BoundsCache{
		maxSize: maxSize,
		order:   list.New(),
		items:   make(map[string]*list.Element),
	}
}

// FeatureBounds returns the bounding box of the feature's geometry,
// computing and caching it on first sight. The second return value is
// false for nil or degenerate geometry.
func (c *BoundsCache) FeatureBounds(f *geojson.Feature) (BBox, bool) {
	if f == nil {
		return BBox{}, false
	}
	key := featureKey(f)

	c.mu.Lock()
	if el, found := c.items[key]; found {
		c.order.MoveToFront(el)
		entry := el.Value.(*boundsEntry)
		c.mu.Unlock()
		return entry.box, entry.ok
	}
	c.mu.Unlock()

	box, ok := BoundsOf(f.Geometry)

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, found := c.items[key]; found {
		c.order.MoveToFront(el)
		entry := el.Value.(*boundsEntry)
		return entry.box, entry.ok
	}
	if c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*boundsEntry).key)
		}
	}
	c.items[key] = c.order.PushFront(&boundsEntry{key: key, box: box, ok: ok})
	return box, ok
}

// Len returns the number of cached entries.
func (c *BoundsCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear drops all cached entries.
func (c *BoundsCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
}

func featureKey(f *geojson.Feature) string {
	if f.ID != nil {
		return fmt.Sprintf("id:%v", f.ID)
	}
	h := fnv.New64a()
	var buf [8]byte
	hashGeometry(h.Write, buf[:], f.Geometry)
	return fmt.Sprintf("geom:%x", h.Sum64())
}

func hashGeometry(write func([]byte) (int, error), buf []byte, g orb.Geometry) {
	hashPoint := func(p orb.Point) {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(p[0]))
		write(buf)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(p[1]))
		write(buf)
	}
	switch geom := g.(type) {
	case orb.Point:
		hashPoint(geom)
	case orb.MultiPoint:
		for _, p := range geom {
			hashPoint(p)
		}
	case orb.LineString:
		for _, p := range geom {
			hashPoint(p)
		}
	case orb.MultiLineString:
		for _, ls := range geom {
			hashGeometry(write, buf, ls)
		}
	case orb.Ring:
		for _, p := range geom {
			hashPoint(p)
		}
	case orb.Polygon:
		for _, r := range geom {
			hashGeometry(write, buf, r)
		}
	case orb.MultiPolygon:
		for _, poly := range geom {
			hashGeometry(write, buf, poly)
		}
	case orb.Collection:
		for _, sub := range geom {
			hashGeometry(write, buf, sub)
		}
	}
}
