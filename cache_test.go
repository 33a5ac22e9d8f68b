package term

import "testing"

func TestContentsCachePutThenGetHit(t *testing.T) {
	styles := NewStyleTable()
	c := NewContentsCache(24, styles)

	key := RowKey{Screen: ScreenPrimary, RowID: 1}
	verts := []Vertex{{Kind: VertexKindBackground, GridX: 0, GridY: 0}}
	c.Put(key, verts, []Style{{Flags: CellFlagBold}})

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected cache hit after Put")
	}
	if len(got) != 1 || got[0].Kind != VertexKindBackground {
		t.Errorf("unexpected cached vertices: %+v", got)
	}
}

func TestContentsCacheMissOnUnknownKey(t *testing.T) {
	c := NewContentsCache(24, NewStyleTable())
	if _, ok := c.Get(RowKey{RowID: 42}); ok {
		t.Error("expected a miss for a key that was never Put")
	}
}

func TestContentsCacheCapacityMinimum(t *testing.T) {
	c := NewContentsCache(1, NewStyleTable())
	if c.capacity != 80 {
		t.Errorf("expected capacity floor of 80 for tiny viewports, got %d", c.capacity)
	}

	c2 := NewContentsCache(24, NewStyleTable())
	if c2.capacity != 240 {
		t.Errorf("expected capacity visibleRows*10 = 240, got %d", c2.capacity)
	}
}

func TestContentsCacheScreenTypeKeysCoexist(t *testing.T) {
	c := NewContentsCache(24, NewStyleTable())

	primary := RowKey{Screen: ScreenPrimary, RowID: 7}
	alt := RowKey{Screen: ScreenAlternate, RowID: 7}

	c.Put(primary, []Vertex{{GridX: 1}}, nil)
	c.Put(alt, []Vertex{{GridX: 2}}, nil)

	pv, ok := c.Get(primary)
	if !ok || pv[0].GridX != 1 {
		t.Error("expected primary-screen entry for row id 7 to survive independently")
	}
	av, ok := c.Get(alt)
	if !ok || av[0].GridX != 2 {
		t.Error("expected alt-screen entry for the same row id to survive independently")
	}
}

func TestContentsCacheEvictsLRUAtCapacity(t *testing.T) {
	styles := NewStyleTable()
	c := NewContentsCache(8, styles) // capacity floors to 80
	c.capacity = 2                   // shrink for a tight test

	k1 := RowKey{RowID: 1}
	k2 := RowKey{RowID: 2}
	k3 := RowKey{RowID: 3}

	c.Put(k1, []Vertex{{}}, nil)
	c.Put(k2, []Vertex{{}}, nil)
	c.Get(k1) // touch k1 so k2 becomes the least recently used
	c.Put(k3, []Vertex{{}}, nil)

	if _, ok := c.Get(k2); ok {
		t.Error("expected k2 to be evicted as the least recently used entry")
	}
	if _, ok := c.Get(k1); !ok {
		t.Error("expected recently touched k1 to survive eviction")
	}
	if _, ok := c.Get(k3); !ok {
		t.Error("expected freshly inserted k3 to be present")
	}
}

func TestContentsCacheInvalidateRowDropsAllSelectionVariants(t *testing.T) {
	c := NewContentsCache(24, NewStyleTable())

	k1 := RowKey{RowID: 5, SelectionSig: 0}
	k2 := RowKey{RowID: 5, SelectionSig: 99}
	c.Put(k1, []Vertex{{}}, nil)
	c.Put(k2, []Vertex{{}}, nil)

	c.InvalidateRow(ScreenPrimary, 5)

	if _, ok := c.Get(k1); ok {
		t.Error("expected InvalidateRow to drop every selection-signature variant of the row")
	}
	if _, ok := c.Get(k2); ok {
		t.Error("expected InvalidateRow to drop every selection-signature variant of the row")
	}
}

func TestContentsCachePutReleasesStylesOnEviction(t *testing.T) {
	styles := NewStyleTable()
	c := NewContentsCache(24, styles)
	c.capacity = 1

	c.Put(RowKey{RowID: 1}, []Vertex{{}}, []Style{{Flags: CellFlagBold}})
	if styles.Len() != 1 {
		t.Fatalf("expected one interned style after first Put, got %d", styles.Len())
	}

	// Evicts the first entry, which must release its interned style.
	c.Put(RowKey{RowID: 2}, []Vertex{{}}, []Style{{Flags: CellFlagItalic}})

	if styles.Len() != 1 {
		t.Errorf("expected evicted row's style to be released, leaving 1 interned style, got %d", styles.Len())
	}
}

func TestContentsCacheLen(t *testing.T) {
	c := NewContentsCache(24, NewStyleTable())
	c.Put(RowKey{RowID: 1}, []Vertex{{}}, nil)
	c.Put(RowKey{RowID: 2}, []Vertex{{}}, nil)
	if c.Len() != 2 {
		t.Errorf("expected Len 2, got %d", c.Len())
	}
}
