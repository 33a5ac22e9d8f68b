package term

import (
	"image/color"
	"testing"
)

func TestStyleTableDefaultIsZeroExempt(t *testing.T) {
	st := NewStyleTable()

	id := st.Intern(Style{})
	if id != DefaultStyleID {
		t.Fatalf("expected interning the zero-value style to return id 0, got %d", id)
	}
	if st.RefCount(DefaultStyleID) != 0 {
		t.Error("expected the default style to report a zero refcount (exempt)")
	}
	st.Release(DefaultStyleID)
	if _, ok := st.Lookup(DefaultStyleID); !ok {
		t.Error("expected default style to remain looked-up-able after Release")
	}
}

func TestStyleTableInternDeduplicatesByStructure(t *testing.T) {
	st := NewStyleTable()

	a := Style{Fg: color.RGBA{R: 1, G: 2, B: 3, A: 255}, Flags: CellFlagBold}
	b := Style{Fg: color.RGBA{R: 1, G: 2, B: 3, A: 255}, Flags: CellFlagBold}

	idA := st.Intern(a)
	idB := st.Intern(b)
	if idA != idB {
		t.Fatalf("expected structurally identical styles to intern to the same id, got %d and %d", idA, idB)
	}
	if st.RefCount(idA) != 2 {
		t.Errorf("expected refcount 2 after interning twice, got %d", st.RefCount(idA))
	}
}

func TestStyleTableInternDistinguishesNamedAndIndexedColors(t *testing.T) {
	st := NewStyleTable()

	named := st.Intern(Style{Fg: &NamedColor{Name: NamedColorForeground}})
	indexed := st.Intern(Style{Fg: &IndexedColor{Index: 1}})
	if named == indexed {
		t.Error("expected a named color and an indexed color to intern to distinct ids")
	}

	named2 := st.Intern(Style{Fg: &NamedColor{Name: NamedColorForeground}})
	if named != named2 {
		t.Error("expected two separately constructed NamedColor values to intern identically")
	}
}

func TestStyleTableReleaseFreesAndRecyclesID(t *testing.T) {
	st := NewStyleTable()

	id := st.Intern(Style{Flags: CellFlagBold})
	st.Release(id)
	if st.RefCount(id) != 0 {
		t.Errorf("expected refcount 0 after releasing the sole reference, got %d", st.RefCount(id))
	}
	if _, ok := st.Lookup(id); ok {
		t.Error("expected the entry to be gone from the set once refcount hits zero")
	}

	reused := st.Intern(Style{Flags: CellFlagItalic})
	if reused != id {
		t.Errorf("expected a freed id to be recycled, got new id %d instead of %d", reused, id)
	}
}

func TestStyleTableLenCountsOnlyNonDefault(t *testing.T) {
	st := NewStyleTable()
	if st.Len() != 0 {
		t.Fatalf("expected empty table, got len %d", st.Len())
	}

	st.Intern(Style{Flags: CellFlagBold})
	st.Intern(Style{Flags: CellFlagItalic})
	if st.Len() != 2 {
		t.Errorf("expected 2 distinct interned styles, got %d", st.Len())
	}
}

func TestStyleTableRetainBumpsExistingEntry(t *testing.T) {
	st := NewStyleTable()
	id := st.Intern(Style{Flags: CellFlagUnderline})
	st.Retain(id)
	if st.RefCount(id) != 2 {
		t.Errorf("expected refcount 2 after Retain, got %d", st.RefCount(id))
	}
	st.Release(id)
	st.Release(id)
	if _, ok := st.Lookup(id); ok {
		t.Error("expected entry to be freed once both references are released")
	}
}

func TestStyleOfMasksStructuralFlags(t *testing.T) {
	c := NewCell()
	c.Flags = CellFlagBold | CellFlagDirty | CellFlagWideHead

	s := StyleOf(c)
	if s.Flags&CellFlagDirty != 0 {
		t.Error("expected StyleOf to mask out the dirty tracking bit")
	}
	if s.Flags&CellFlagWideHead != 0 {
		t.Error("expected StyleOf to mask out wide-char layout bits")
	}
	if s.Flags&CellFlagBold == 0 {
		t.Error("expected StyleOf to preserve rendition bits like bold")
	}
}
