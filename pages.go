package term

import "sync/atomic"

// rowsPerPage is the number of scrollback lines held by one page arena.
// Pages are the unit of scrollback allocation and eviction.
const rowsPerPage = 256

// globalRowID is a monotonic counter that assigns stable row_id values across
// every buffer and scrollback page in the process. A single counter keeps the
// uniqueness invariant trivial to maintain without scoping ids per screen.
var globalRowID uint64

func nextRowID() uint64 {
	return atomic.AddUint64(&globalRowID, 1)
}

// page is a contiguous arena of scrollback rows, the unit of history
// allocation and eviction. Pages form a doubly linked list owned by a
// PageList; the list, not the pins, owns the nodes — pins are non-owning
// observers that get invalidated in place when their page is pruned.
type page struct {
	rows    [][]Cell
	wrapped []bool
	rowIDs  []uint64
	prev    *page
	next    *page
}

func newPage() *page {
	return &page{
		rows:    make([][]Cell, 0, rowsPerPage),
		wrapped: make([]bool, 0, rowsPerPage),
		rowIDs:  make([]uint64, 0, rowsPerPage),
	}
}

func (p *page) full() bool {
	return len(p.rows) >= rowsPerPage
}

// pin is a stable, non-owning reference into scrollback history: (page, y, x).
// Pins survive page growth; they are invalidated when the page they reference
// is pruned from history (see PageList.trim), when the list is cleared, or
// when the pin is released.
type Pin struct {
	list *PageList
	pg   *page
	y    int
	x    int
}

// Valid reports whether the pin still references a live page. Pins are
// invalidated when their page is evicted from scrollback.
func (p *Pin) Valid() bool {
	return p != nil && p.pg != nil
}

// Row returns the pinned page's row, or nil if the pin has been invalidated.
func (p *Pin) Row() []Cell {
	if !p.Valid() {
		return nil
	}
	return p.pg.rows[p.y]
}

// Col returns the pinned column.
func (p *Pin) Col() int {
	return p.x
}

// RowID returns the stable row id of the pinned row, or 0 if invalidated.
func (p *Pin) RowID() uint64 {
	if !p.Valid() {
		return 0
	}
	return p.pg.rowIDs[p.y]
}

// PageList is a doubly linked list of pages implementing the primary
// screen's paginated history. It is the backing store for
// PagedScrollback and owns every pin issued against it; when the oldest
// page is dropped for exceeding MaxLines, every pin referencing that page
// is invalidated in place so callers (selection, in particular) can observe
// the drop instead of reading stale cells.
type PageList struct {
	head, tail *page // head = oldest, tail = newest
	lineCount  int
	maxLines   int
	pins       map[*page][]*Pin
}

// NewPageList creates an empty paginated history capped at maxLines rows.
// maxLines <= 0 means unbounded.
func NewPageList(maxLines int) *PageList {
	return &PageList{maxLines: maxLines, pins: make(map[*page][]*Pin)}
}

// Push appends one row to the newest page, allocating a new page if the
// current tail is full, then evicts oldest pages past the configured cap.
func (pl *PageList) Push(cells []Cell, wrapped bool) {
	if pl.tail == nil || pl.tail.full() {
		np := newPage()
		if pl.tail != nil {
			pl.tail.next = np
			np.prev = pl.tail
		} else {
			pl.head = np
		}
		pl.tail = np
	}

	row := make([]Cell, len(cells))
	copy(row, cells)
	pl.tail.rows = append(pl.tail.rows, row)
	pl.tail.wrapped = append(pl.tail.wrapped, wrapped)
	pl.tail.rowIDs = append(pl.tail.rowIDs, nextRowID())
	pl.lineCount++

	pl.trim()
}

// trim drops whole oldest pages until lineCount is within maxLines, rebasing
// (invalidating) any pins that referenced dropped pages.
func (pl *PageList) trim() {
	if pl.maxLines <= 0 {
		return
	}
	for pl.lineCount > pl.maxLines && pl.head != nil {
		dropped := pl.head
		pl.lineCount -= len(dropped.rows)
		pl.head = dropped.next
		if pl.head != nil {
			pl.head.prev = nil
		} else {
			pl.tail = nil
		}
		for _, p := range pl.pins[dropped] {
			p.pg = nil
		}
		delete(pl.pins, dropped)
	}
}

// Len returns the number of rows currently retained across all pages.
func (pl *PageList) Len() int {
	return pl.lineCount
}

// Line returns the row at index (0 = oldest), or nil if out of range.
func (pl *PageList) Line(index int) []Cell {
	pg, y := pl.locate(index)
	if pg == nil {
		return nil
	}
	return pg.rows[y]
}

// Wrapped reports whether the row at index was produced by a soft wrap.
func (pl *PageList) Wrapped(index int) bool {
	pg, y := pl.locate(index)
	if pg == nil {
		return false
	}
	return pg.wrapped[y]
}

func (pl *PageList) locate(index int) (*page, int) {
	if index < 0 || index >= pl.lineCount {
		return nil, 0
	}
	for pg := pl.head; pg != nil; pg = pg.next {
		if index < len(pg.rows) {
			return pg, index
		}
		index -= len(pg.rows)
	}
	return nil, 0
}

// Pin returns a stable reference to the row at index, column x. The caller
// must call ReleasePin when the pin is no longer needed so the page list can
// forget about it once its page is pruned.
func (pl *PageList) Pin(index, x int) *Pin {
	pg, y := pl.locate(index)
	if pg == nil {
		return nil
	}
	p := &Pin{list: pl, pg: pg, y: y, x: x}
	pl.pins[pg] = append(pl.pins[pg], p)
	return p
}

// ReleasePin forgets a pin previously returned by Pin. Safe to call with an
// already-invalidated pin.
func (pl *PageList) ReleasePin(p *Pin) {
	if p == nil || p.pg == nil {
		return
	}
	ps := pl.pins[p.pg]
	for i, other := range ps {
		if other == p {
			pl.pins[p.pg] = append(ps[:i], ps[i+1:]...)
			break
		}
	}
	p.pg = nil
}

// Clear drops every page and invalidates every outstanding pin.
func (pl *PageList) Clear() {
	for pg := pl.head; pg != nil; pg = pg.next {
		for _, p := range pl.pins[pg] {
			p.pg = nil
		}
	}
	pl.head, pl.tail = nil, nil
	pl.lineCount = 0
	pl.pins = make(map[*page][]*Pin)
}

// PagedScrollback is the built-in ScrollbackProvider: a paginated, pin-stable
// history store. This is the concrete type referenced by [NewMemoryScrollback].
type PagedScrollback struct {
	list *PageList
}

// NewMemoryScrollback creates an in-memory, page-backed scrollback store
// capped at maxLines rows. Passing maxLines <= 0 makes history unbounded.
func NewMemoryScrollback(maxLines int) *PagedScrollback {
	return &PagedScrollback{list: NewPageList(maxLines)}
}

func (s *PagedScrollback) Push(line []Cell)  { s.list.Push(line, false) }
func (s *PagedScrollback) Len() int          { return s.list.Len() }
func (s *PagedScrollback) Line(i int) []Cell { return s.list.Line(i) }
func (s *PagedScrollback) Clear()            { s.list.Clear() }

func (s *PagedScrollback) SetMaxLines(max int) {
	s.list.maxLines = max
	s.list.trim()
}

func (s *PagedScrollback) MaxLines() int { return s.list.maxLines }

// Pin returns a stable (page, y, x) reference into history, for use by
// selections that must survive further scrolling. Release it with ReleasePin
// once it is no longer referenced.
func (s *PagedScrollback) Pin(index, x int) *Pin { return s.list.Pin(index, x) }

// ReleasePin forgets a pin previously returned by Pin.
func (s *PagedScrollback) ReleasePin(p *Pin) { s.list.ReleasePin(p) }

var _ ScrollbackProvider = (*PagedScrollback)(nil)
