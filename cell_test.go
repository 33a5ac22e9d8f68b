package term

import "testing"

func TestNewCellDefaults(t *testing.T) {
	c := NewCell()
	if c.Char != ' ' {
		t.Errorf("char = %q, want space", c.Char)
	}
	if c.Flags != 0 {
		t.Errorf("flags = %v, want none", c.Flags)
	}
	if c.Fg == nil || c.Bg == nil {
		t.Error("default colors must be set")
	}
}

func TestCellFlagOperations(t *testing.T) {
	c := NewCell()
	c.SetFlag(CellFlagBold | CellFlagItalic)
	if !c.HasFlag(CellFlagBold) || !c.HasFlag(CellFlagItalic) {
		t.Error("flags not set")
	}
	c.ClearFlag(CellFlagBold)
	if c.HasFlag(CellFlagBold) || !c.HasFlag(CellFlagItalic) {
		t.Error("ClearFlag must clear only the given bits")
	}
}

func TestCellSpacerClassification(t *testing.T) {
	head := NewCell()
	head.SetFlag(CellFlagWideHead)
	tail := NewCell()
	tail.SetFlag(CellFlagWideTail)
	eol := NewCell()
	eol.SetFlag(CellFlagSpacerHead)

	if !head.IsWideHead() || head.IsSpacer() {
		t.Error("head misclassified")
	}
	if !tail.IsSpacer() || tail.IsWideHead() {
		t.Error("tail misclassified")
	}
	if !eol.IsSpacer() {
		t.Error("spacer head must count as a spacer")
	}
}

func TestCellResetDropsEverything(t *testing.T) {
	c := NewCell()
	c.Char = 'x'
	c.SetFlag(CellFlagBold | CellFlagProtected | CellFlagDirty)
	c.Hyperlink = &Hyperlink{URI: "https://example.com"}
	c.Image = &CellImage{ImageID: 1}

	c.Reset()
	if c.Char != ' ' || c.Flags != 0 || c.Hyperlink != nil || c.Image != nil {
		t.Errorf("reset left state behind: %+v", c)
	}
}

func TestCellDirtyTracking(t *testing.T) {
	c := NewCell()
	if c.IsDirty() {
		t.Error("fresh cell must be clean")
	}
	c.MarkDirty()
	if !c.IsDirty() {
		t.Error("MarkDirty had no effect")
	}
	c.ClearDirty()
	if c.IsDirty() {
		t.Error("ClearDirty had no effect")
	}
}

func TestCellCopySharesRunPointers(t *testing.T) {
	link := &Hyperlink{URI: "https://example.com"}
	c := NewCell()
	c.Char = 'x'
	c.Hyperlink = link

	dup := c.Copy()
	if dup.Char != 'x' || dup.Hyperlink != link {
		t.Error("copy must preserve content and share the link pointer")
	}
	dup.Char = 'y'
	if c.Char != 'x' {
		t.Error("copy must not alias the original cell")
	}
}

func TestUnderlineFlagsMask(t *testing.T) {
	c := NewCell()
	c.SetFlag(CellFlagCurlyUnderline)
	if !c.HasFlag(CellUnderlineFlags) {
		t.Error("mask must cover curly underline")
	}
	c.ClearFlag(CellUnderlineFlags)
	if c.Flags != 0 {
		t.Error("mask clear left underline bits")
	}
}
