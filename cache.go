package term

import (
	"container/list"
	"image/color"
)

// ScreenType distinguishes the primary screen from the alternate screen for
// cache-key purposes; both screens' rows can coexist in one cache because
// the screen type is part of the key.
type ScreenType uint8

const (
	ScreenPrimary ScreenType = iota
	ScreenAlternate
)

// VertexKind identifies what a cached vertex record renders.
type VertexKind uint8

const (
	VertexKindBackground VertexKind = iota
	VertexKindForeground
	VertexKindUnderline
	VertexKindStrike
)

// Vertex is one GPU-ready quad for a single cell's rendered layer. The font
// shaper and texture atlas that populate TexX/TexY/TexW/TexH are external
// collaborators; the cache only stores and replays what it is given.
type Vertex struct {
	Kind             VertexKind
	GridX, GridY     int
	TexX, TexY       float32
	TexW, TexH       float32
	OffsetX, OffsetY float32
	RGBA             color.RGBA
	Mode             uint8
}

// RowKey identifies a cacheable row: which screen it belongs to, its stable
// row id, and a signature summarizing how the current selection
// intersects the row (0 when the row has no selection overlap at all).
type RowKey struct {
	Screen       ScreenType
	RowID        uint64
	SelectionSig uint64
}

type cacheEntry struct {
	key      RowKey
	vertices []Vertex
	styles   []uint16 // style ids interned for this row's vertices, for release on evict
	elem     *list.Element
}

// ContentsCache is the renderer-facing, row-keyed LRU: a cache from
// (screen, row id, selection signature) to a flat list of
// GPU vertex records. Rows are re-shaped by an external font shaper only on
// miss or when marked dirty; hits are replayed verbatim with only GridY
// patched to the current viewport offset.
//
// No third-party LRU package appears anywhere in the retrieved example
// corpus, so this is built directly on the standard library's
// container/list, which is exactly what it is for.
type ContentsCache struct {
	capacity int
	ll       *list.List // front = most recently used
	entries  map[RowKey]*cacheEntry
	byRow    map[rowIdentity][]RowKey // secondary index for row-id invalidation
	styles   *StyleTable
}

type rowIdentity struct {
	Screen ScreenType
	RowID  uint64
}

// NewContentsCache creates a cache holding max(80, visibleRows*10) rows.
// styles is the StyleTable vertex style ids are interned into and released
// from as rows enter and leave the cache.
func NewContentsCache(visibleRows int, styles *StyleTable) *ContentsCache {
	cap := visibleRows * 10
	if cap < 80 {
		cap = 80
	}
	return &ContentsCache{
		capacity: cap,
		ll:       list.New(),
		entries:  make(map[RowKey]*cacheEntry),
		byRow:    make(map[rowIdentity][]RowKey),
		styles:   styles,
	}
}

// Get returns the cached vertices for key, moving it to the front of the
// LRU order. The caller still patches GridY to the viewport offset; the
// cache only tracks what was shaped, not where it currently sits on screen.
func (c *ContentsCache) Get(key RowKey) ([]Vertex, bool) {
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(e.elem)
	return e.vertices, true
}

// Put inserts or replaces the shaped vertices for key. cellStyles are the
// resolved Style values the row's vertices were built from; Put interns
// each into the cache's StyleTable so it can release them on eviction,
// keeping the table's refcounts an accurate census of cached, not just
// live, style usage.
func (c *ContentsCache) Put(key RowKey, vertices []Vertex, cellStyles []Style) {
	if old, ok := c.entries[key]; ok {
		c.removeEntry(old)
	}

	ids := make([]uint16, len(cellStyles))
	for i, s := range cellStyles {
		ids[i] = c.styles.Intern(s)
	}

	e := &cacheEntry{key: key, vertices: vertices, styles: ids}
	e.elem = c.ll.PushFront(e)
	c.entries[key] = e

	rid := rowIdentity{Screen: key.Screen, RowID: key.RowID}
	c.byRow[rid] = append(c.byRow[rid], key)

	for c.ll.Len() > c.capacity {
		back := c.ll.Back()
		if back == nil {
			break
		}
		c.removeEntry(back.Value.(*cacheEntry))
	}
}

// removeEntry evicts one entry: drops it from the LRU list and both
// indices, and releases its interned style ids.
func (c *ContentsCache) removeEntry(e *cacheEntry) {
	c.ll.Remove(e.elem)
	delete(c.entries, e.key)

	rid := rowIdentity{Screen: e.key.Screen, RowID: e.key.RowID}
	keys := c.byRow[rid]
	for i, k := range keys {
		if k == e.key {
			keys = append(keys[:i], keys[i+1:]...)
			break
		}
	}
	if len(keys) == 0 {
		delete(c.byRow, rid)
	} else {
		c.byRow[rid] = keys
	}

	for _, id := range e.styles {
		c.styles.Release(id)
	}
}

// InvalidateRow evicts every cached entry for (screen, rowID) regardless of
// which selection signature it was cached under. The renderer calls this
// for each id the terminal reports dirty before re-shaping the row.
func (c *ContentsCache) InvalidateRow(screen ScreenType, rowID uint64) {
	rid := rowIdentity{Screen: screen, RowID: rowID}
	keys := append([]RowKey(nil), c.byRow[rid]...)
	for _, k := range keys {
		if e, ok := c.entries[k]; ok {
			c.removeEntry(e)
		}
	}
}

// InvalidateRows is InvalidateRow for a batch, used when a selection change
// touches a set of rows (the union of the old and new selection spans).
func (c *ContentsCache) InvalidateRows(screen ScreenType, rowIDs []uint64) {
	for _, id := range rowIDs {
		c.InvalidateRow(screen, id)
	}
}

// Len returns the number of cached row entries, for tests and metrics.
func (c *ContentsCache) Len() int {
	return c.ll.Len()
}
