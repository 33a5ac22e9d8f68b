package term

import "image/color"

// styleRelevantFlags masks out the structural CellFlags bits (dirty tracking,
// wide-character layout) that are not part of a style's identity, leaving
// only the rendition bits SGR actually controls.
const styleRelevantFlags = CellFlagBold | CellFlagFaint | CellFlagItalic |
	CellUnderlineFlags | CellFlagBlinkSlow | CellFlagBlinkFast |
	CellFlagInverse | CellFlagInvisible | CellFlagStrike

// Style is the rendition carried by a cell: colors plus the SGR attribute
// bits. It excludes the character content and wide-char layout, which
// live on the Cell itself.
type Style struct {
	Fg             color.Color
	Bg             color.Color
	UnderlineColor color.Color
	Flags          CellFlags
}

// StyleOf extracts the Style portion of a cell.
func StyleOf(c Cell) Style {
	return Style{
		Fg:             c.Fg,
		Bg:             c.Bg,
		UnderlineColor: c.UnderlineColor,
		Flags:          c.Flags & styleRelevantFlags,
	}
}

// colorKey is a comparable structural encoding of a color.Color, used to
// intern styles by value rather than by interface/pointer identity: two
// separately constructed *NamedColor{Name: X} must hash identically.
type colorKey struct {
	kind       uint8 // 0 = nil, 1 = RGBA, 2 = indexed, 3 = named
	index      int32
	r, g, b, a uint8
}

func toColorKey(c color.Color) colorKey {
	switch v := c.(type) {
	case nil:
		return colorKey{kind: 0}
	case color.RGBA:
		return colorKey{kind: 1, r: v.R, g: v.G, b: v.B, a: v.A}
	case *IndexedColor:
		return colorKey{kind: 2, index: int32(v.Index)}
	case *NamedColor:
		return colorKey{kind: 3, index: int32(v.Name)}
	default:
		r, g, b, a := c.RGBA()
		return colorKey{kind: 1, r: uint8(r >> 8), g: uint8(g >> 8), b: uint8(b >> 8), a: uint8(a >> 8)}
	}
}

// styleKey is the comparable interning key for a Style.
type styleKey struct {
	fg, bg, ul colorKey
	flags      CellFlags
}

func keyOf(s Style) styleKey {
	return styleKey{
		fg:    toColorKey(s.Fg),
		bg:    toColorKey(s.Bg),
		ul:    toColorKey(s.UnderlineColor),
		flags: s.Flags & styleRelevantFlags,
	}
}

// DefaultStyleID is the refcount-exempt, always-present default style.
const DefaultStyleID uint16 = 0

type styleEntry struct {
	style    Style
	refcount uint32
}

// StyleTable is the ref-counted, structurally-hashed interned set of styles
// a screen's cells point into by id. Lookup, Intern, and Release are O(1)
// expected/amortized. Style id 0 is the default style and is never evicted.
type StyleTable struct {
	byKey  map[styleKey]uint16
	byID   map[uint16]*styleEntry
	free   []uint16
	nextID uint16
}

// NewStyleTable creates an empty style table. Capacity is bounded only by
// the 16-bit id space (65535 non-default styles).
func NewStyleTable() *StyleTable {
	return &StyleTable{
		byKey:  make(map[styleKey]uint16),
		byID:   make(map[uint16]*styleEntry),
		nextID: 1,
	}
}

// Intern returns the id for s, creating an entry with refcount 1 if this is
// the first cell to use it, or bumping the refcount of an existing entry.
// The default (zero-value) Style always returns DefaultStyleID without
// touching the refcount (it is exempt from reclamation).
func (t *StyleTable) Intern(s Style) uint16 {
	k := keyOf(s)
	if k == (styleKey{}) {
		return DefaultStyleID
	}

	if id, ok := t.byKey[k]; ok {
		t.byID[id].refcount++
		return id
	}

	var id uint16
	if n := len(t.free); n > 0 {
		id = t.free[n-1]
		t.free = t.free[:n-1]
	} else if t.nextID == 0 {
		// The 16-bit id space is exhausted; saturate to the default style
		// rather than failing the write.
		return DefaultStyleID
	} else {
		id = t.nextID
		t.nextID++
	}

	t.byKey[k] = id
	t.byID[id] = &styleEntry{style: s, refcount: 1}
	return id
}

// Retain bumps the refcount of an already-interned id, for use when a cell
// is duplicated (e.g. fill, copy-on-resize) without re-deriving its Style.
func (t *StyleTable) Retain(id uint16) {
	if id == DefaultStyleID {
		return
	}
	if e, ok := t.byID[id]; ok {
		e.refcount++
	}
}

// Release drops one reference to id. When the refcount reaches zero the
// entry is removed from the set and its id becomes available for reuse.
func (t *StyleTable) Release(id uint16) {
	if id == DefaultStyleID {
		return
	}
	e, ok := t.byID[id]
	if !ok {
		return
	}
	e.refcount--
	if e.refcount == 0 {
		delete(t.byID, id)
		delete(t.byKey, keyOf(e.style))
		t.free = append(t.free, id)
	}
}

// Lookup returns the Style for id and whether it is present. DefaultStyleID
// always resolves to the zero-value Style.
func (t *StyleTable) Lookup(id uint16) (Style, bool) {
	if id == DefaultStyleID {
		return Style{}, true
	}
	e, ok := t.byID[id]
	if !ok {
		return Style{}, false
	}
	return e.style, true
}

// RefCount returns the current reference count for id, or 0 if absent.
// DefaultStyleID reports 0 since it is refcount-exempt.
func (t *StyleTable) RefCount(id uint16) uint32 {
	if id == DefaultStyleID {
		return 0
	}
	if e, ok := t.byID[id]; ok {
		return e.refcount
	}
	return 0
}

// Len returns the number of distinct non-default styles currently interned.
func (t *StyleTable) Len() int {
	return len(t.byID)
}
