package term

import "image/color"

// CellFlags packs a cell's rendition attributes and its structural layout
// bits into one mask. The rendition bits (bold through strikethrough) are
// what SGR manipulates and what a Style is made of; the layout bits track
// wide-character pairing, wrap spacers, DECSCA protection, grapheme
// extension, and dirty state.
type CellFlags uint32

const (
	CellFlagBold CellFlags = 1 << iota
	CellFlagFaint
	CellFlagItalic
	CellFlagUnderline
	CellFlagDoubleUnderline
	CellFlagCurlyUnderline
	CellFlagDottedUnderline
	CellFlagDashedUnderline
	CellFlagBlinkSlow
	CellFlagBlinkFast
	CellFlagInverse
	CellFlagInvisible
	CellFlagStrike

	// CellFlagWideHead marks the first column of a two-column character.
	// The cell immediately to its right always carries CellFlagWideTail,
	// except when the head sits at the last column: then the last column
	// holds a CellFlagSpacerHead blank and the head moves to the first
	// column of the next row.
	CellFlagWideHead
	// CellFlagWideTail marks the second column of a two-column character.
	// Tails are never written directly; they are maintained by whatever
	// writes the head.
	CellFlagWideTail
	// CellFlagSpacerHead marks the blank cell left at the last column when
	// a wide character could not fit and was pushed to the next row.
	CellFlagSpacerHead

	// CellFlagProtected marks the cell as exempt from selective-erase
	// operations (DECSCA). Plain erase variants ignore the bit.
	CellFlagProtected
	// CellFlagGraphemeExt indicates the displayed cluster is wider than
	// Char alone: combining marks for this cell live in the row's grapheme
	// side table (see Grid.Grapheme).
	CellFlagGraphemeExt

	CellFlagDirty
)

// CellUnderlineFlags is every underline-kind bit; SGR underline selection is
// exclusive, so setting one kind clears the rest.
const CellUnderlineFlags = CellFlagUnderline | CellFlagDoubleUnderline |
	CellFlagCurlyUnderline | CellFlagDottedUnderline | CellFlagDashedUnderline

// Cell is one grid position: a character, its colors, its attribute mask,
// and optional hyperlink and image references. Wide characters occupy a
// head+tail pair of cells.
type Cell struct {
	Char           rune
	Fg             color.Color
	Bg             color.Color
	UnderlineColor color.Color
	Flags          CellFlags
	Hyperlink      *Hyperlink
	Image          *CellImage
}

// Hyperlink is the OSC 8 link a run of cells belongs to. Cells written
// while a hyperlink is active share one pointer.
type Hyperlink struct {
	ID  string
	URI string
}

// NewCell returns a blank cell: a space in the default foreground and
// background.
func NewCell() Cell {
	return Cell{
		Char: ' ',
		Fg:   &NamedColor{Name: NamedColorForeground},
		Bg:   &NamedColor{Name: NamedColorBackground},
	}
}

// Reset blanks the cell in place, dropping every attribute, link, and image
// reference.
func (c *Cell) Reset() {
	c.Char = ' '
	c.Fg = &NamedColor{Name: NamedColorForeground}
	c.Bg = &NamedColor{Name: NamedColorBackground}
	c.UnderlineColor = nil
	c.Flags = 0
	c.Hyperlink = nil
	c.Image = nil
}

// HasFlag reports whether any bit of flag is set.
func (c *Cell) HasFlag(flag CellFlags) bool { return c.Flags&flag != 0 }

// SetFlag sets the given bits.
func (c *Cell) SetFlag(flag CellFlags) { c.Flags |= flag }

// ClearFlag clears the given bits.
func (c *Cell) ClearFlag(flag CellFlags) { c.Flags &^= flag }

// IsDirty reports whether the cell changed since the last dirty sweep.
func (c *Cell) IsDirty() bool { return c.HasFlag(CellFlagDirty) }

// MarkDirty flags the cell for the next renderer pass.
func (c *Cell) MarkDirty() { c.SetFlag(CellFlagDirty) }

// ClearDirty acknowledges the cell as rendered.
func (c *Cell) ClearDirty() { c.ClearFlag(CellFlagDirty) }

// IsWideHead reports whether this cell is the first column of a two-column
// character.
func (c *Cell) IsWideHead() bool { return c.HasFlag(CellFlagWideHead) }

// IsSpacer reports whether the cell is filler rather than content: a wide
// tail or an end-of-line spacer head. Spacers are skipped when extracting
// text.
func (c *Cell) IsSpacer() bool {
	return c.HasFlag(CellFlagWideTail | CellFlagSpacerHead)
}

// IsProtected reports whether DECSCA protection is set on the cell.
func (c *Cell) IsProtected() bool { return c.HasFlag(CellFlagProtected) }

// HasImage reports whether the cell carries an image slice reference.
func (c *Cell) HasImage() bool { return c.Image != nil }

// Copy returns a value copy of the cell. Hyperlink and image pointers are
// shared, matching how runs of cells already share them.
func (c *Cell) Copy() Cell {
	return *c
}
