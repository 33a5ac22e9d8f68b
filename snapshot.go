package term

import (
	"encoding/base64"
	"fmt"
	"image/color"
)

// Snapshots are the read API over the screen: a renderer-agnostic dump of
// the active grid at one of three detail levels, JSON-taggable for test
// fixtures and scraping tools.

// SnapshotDetail selects how much per-line information a Snapshot carries.
type SnapshotDetail string

const (
	// SnapshotDetailText captures plain text per line.
	SnapshotDetailText SnapshotDetail = "text"
	// SnapshotDetailStyled captures text broken into same-style segments.
	SnapshotDetailStyled SnapshotDetail = "styled"
	// SnapshotDetailFull captures every cell individually.
	SnapshotDetailFull SnapshotDetail = "full"
)

// Snapshot is one capture of the visible screen.
type Snapshot struct {
	Size   SnapshotSize    `json:"size"`
	Cursor SnapshotCursor  `json:"cursor"`
	Lines  []SnapshotLine  `json:"lines"`
	Images []SnapshotImage `json:"images,omitempty"`
}

// SnapshotSize is the captured grid dimensions.
type SnapshotSize struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// SnapshotCursor is the captured cursor state.
type SnapshotCursor struct {
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	Visible bool   `json:"visible"`
	Style   string `json:"style"`
}

// SnapshotLine is one captured row at the requested detail.
type SnapshotLine struct {
	Text     string            `json:"text"`
	Segments []SnapshotSegment `json:"segments,omitempty"`
	Cells    []SnapshotCell    `json:"cells,omitempty"`
}

// SnapshotSegment is a run of identically styled characters.
type SnapshotSegment struct {
	Text       string        `json:"text"`
	Fg         string        `json:"fg,omitempty"`
	Bg         string        `json:"bg,omitempty"`
	Attributes SnapshotAttrs `json:"attrs,omitempty"`
	Hyperlink  *SnapshotLink `json:"hyperlink,omitempty"`
}

// SnapshotCell is one fully described cell.
type SnapshotCell struct {
	Char       string        `json:"char"`
	Fg         string        `json:"fg"`
	Bg         string        `json:"bg"`
	Attributes SnapshotAttrs `json:"attrs,omitempty"`
	Hyperlink  *SnapshotLink `json:"hyperlink,omitempty"`
	Wide       bool          `json:"wide,omitempty"`
	WideSpacer bool          `json:"wide_spacer,omitempty"`
	Protected  bool          `json:"protected,omitempty"`
}

// SnapshotAttrs flattens the rendition flags for serialization.
type SnapshotAttrs struct {
	Bold          bool `json:"bold,omitempty"`
	Faint         bool `json:"faint,omitempty"`
	Italic        bool `json:"italic,omitempty"`
	Underline     bool `json:"underline,omitempty"`
	Blink         bool `json:"blink,omitempty"`
	Inverse       bool `json:"inverse,omitempty"`
	Invisible     bool `json:"invisible,omitempty"`
	Strikethrough bool `json:"strikethrough,omitempty"`
}

// SnapshotLink is a captured hyperlink.
type SnapshotLink struct {
	ID  string `json:"id,omitempty"`
	URI string `json:"uri"`
}

// SnapshotImage is one placement's metadata (without pixels).
type SnapshotImage struct {
	ID          uint32 `json:"id"`
	PlacementID uint32 `json:"placement_id"`
	Row         int    `json:"row"`
	Col         int    `json:"col"`
	Rows        int    `json:"rows"`
	Cols        int    `json:"cols"`
	PixelWidth  uint32 `json:"pixel_width"`
	PixelHeight uint32 `json:"pixel_height"`
	ZIndex      int32  `json:"z_index"`
}

// ImageSnapshot carries one image's pixels, base64-encoded.
type ImageSnapshot struct {
	ID     uint32 `json:"id"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
	Format string `json:"format"`
	Data   string `json:"data"`
}

// GetImageData exports an image's pixels for external consumers, or nil
// when the id is unknown.
func (t *Terminal) GetImageData(id uint32) *ImageSnapshot {
	img := t.images.Image(id)
	if img == nil {
		return nil
	}
	return &ImageSnapshot{
		ID:     img.ID,
		Width:  img.Width,
		Height: img.Height,
		Format: "rgba",
		Data:   base64.StdEncoding.EncodeToString(img.Data),
	}
}

// Snapshot captures the current screen at the requested detail level.
func (t *Terminal) Snapshot(detail SnapshotDetail) *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := &Snapshot{
		Size: SnapshotSize{Rows: t.rows, Cols: t.cols},
		Cursor: SnapshotCursor{
			Row:     t.cursor.Row,
			Col:     t.cursor.Col,
			Visible: t.cursor.Visible,
			Style:   cursorShapeName(t.cursor.Style),
		},
		Lines: make([]SnapshotLine, t.rows),
	}

	for row := 0; row < t.rows; row++ {
		line := SnapshotLine{Text: t.active.LineContent(row)}
		switch detail {
		case SnapshotDetailStyled:
			line.Segments = t.captureSegments(row)
		case SnapshotDetailFull:
			line.Cells = t.captureCells(row)
		}
		snap.Lines[row] = line
	}

	snap.Images = t.captureImages()
	return snap
}

// captureImages lists every placement with its image dimensions.
func (t *Terminal) captureImages() []SnapshotImage {
	placements := t.images.Placements()
	if len(placements) == 0 {
		return nil
	}

	out := make([]SnapshotImage, 0, len(placements))
	for _, p := range placements {
		img := t.images.Image(p.ImageID)
		if img == nil {
			continue
		}
		out = append(out, SnapshotImage{
			ID:          p.ImageID,
			PlacementID: p.ID,
			Row:         p.Row,
			Col:         p.Col,
			Rows:        p.Rows,
			Cols:        p.Cols,
			PixelWidth:  img.Width,
			PixelHeight: img.Height,
			ZIndex:      p.ZIndex,
		})
	}
	return out
}

// captureSegments walks a row coalescing adjacent cells with identical
// style into segments.
func (t *Terminal) captureSegments(row int) []SnapshotSegment {
	var segments []SnapshotSegment
	var current *SnapshotSegment
	var text []rune

	flush := func() {
		if current != nil && len(text) > 0 {
			current.Text = string(text)
			segments = append(segments, *current)
		}
		text = nil
	}

	for col := 0; col < t.cols; col++ {
		cell := t.active.Cell(row, col)
		if cell == nil || cell.IsSpacer() {
			continue
		}

		fg := hexColor(cell.Fg)
		bg := hexColor(cell.Bg)
		attrs := captureAttrs(cell)
		link := captureLink(cell)

		if current == nil || !sameSegmentStyle(current, fg, bg, attrs, link) {
			flush()
			current = &SnapshotSegment{Fg: fg, Bg: bg, Attributes: attrs, Hyperlink: link}
		}

		ch := cell.Char
		if ch == 0 {
			ch = ' '
		}
		text = append(text, ch)
		if cell.HasFlag(CellFlagGraphemeExt) {
			text = append(text, t.active.Grapheme(row, col)...)
		}
	}
	flush()
	return segments
}

// captureCells dumps every cell of a row.
func (t *Terminal) captureCells(row int) []SnapshotCell {
	cells := make([]SnapshotCell, 0, t.cols)
	for col := 0; col < t.cols; col++ {
		cell := t.active.Cell(row, col)
		if cell == nil {
			cells = append(cells, SnapshotCell{Char: " "})
			continue
		}

		ch := cell.Char
		if ch == 0 {
			ch = ' '
		}
		cells = append(cells, SnapshotCell{
			Char:       string(ch),
			Fg:         hexColor(cell.Fg),
			Bg:         hexColor(cell.Bg),
			Attributes: captureAttrs(cell),
			Hyperlink:  captureLink(cell),
			Wide:       cell.IsWideHead(),
			WideSpacer: cell.IsSpacer(),
			Protected:  cell.IsProtected(),
		})
	}
	return cells
}

func sameSegmentStyle(seg *SnapshotSegment, fg, bg string, attrs SnapshotAttrs, link *SnapshotLink) bool {
	if seg.Fg != fg || seg.Bg != bg || seg.Attributes != attrs {
		return false
	}
	if (seg.Hyperlink == nil) != (link == nil) {
		return false
	}
	return link == nil || (seg.Hyperlink.URI == link.URI && seg.Hyperlink.ID == link.ID)
}

// hexColor flattens any cell color to #rrggbb against the defaults.
func hexColor(c color.Color) string {
	if c == nil {
		return ""
	}
	rgba := resolveDefaultColor(c, true)
	return fmt.Sprintf("#%02x%02x%02x", rgba.R, rgba.G, rgba.B)
}

func captureAttrs(cell *Cell) SnapshotAttrs {
	return SnapshotAttrs{
		Bold:          cell.HasFlag(CellFlagBold),
		Faint:         cell.HasFlag(CellFlagFaint),
		Italic:        cell.HasFlag(CellFlagItalic),
		Underline:     cell.HasFlag(CellUnderlineFlags),
		Blink:         cell.HasFlag(CellFlagBlinkSlow | CellFlagBlinkFast),
		Inverse:       cell.HasFlag(CellFlagInverse),
		Invisible:     cell.HasFlag(CellFlagInvisible),
		Strikethrough: cell.HasFlag(CellFlagStrike),
	}
}

func captureLink(cell *Cell) *SnapshotLink {
	if cell.Hyperlink == nil {
		return nil
	}
	return &SnapshotLink{ID: cell.Hyperlink.ID, URI: cell.Hyperlink.URI}
}

func cursorShapeName(style CursorStyle) string {
	switch style {
	case CursorStyleBlinkingUnderline, CursorStyleSteadyUnderline:
		return "underline"
	case CursorStyleBlinkingBar, CursorStyleSteadyBar:
		return "bar"
	default:
		return "block"
	}
}
