package term

import (
	"encoding/json"
	"testing"
)

func TestSnapshotTextDetail(t *testing.T) {
	term := New(WithSize(3, 10))
	term.WriteString("one\r\ntwo")

	snap := term.Snapshot(SnapshotDetailText)
	if snap.Size.Rows != 3 || snap.Size.Cols != 10 {
		t.Errorf("size = %+v", snap.Size)
	}
	if snap.Lines[0].Text != "one" || snap.Lines[1].Text != "two" {
		t.Errorf("lines = %q, %q", snap.Lines[0].Text, snap.Lines[1].Text)
	}
	if snap.Lines[0].Segments != nil || snap.Lines[0].Cells != nil {
		t.Error("text detail must not carry segments or cells")
	}
	if snap.Cursor.Row != 1 || snap.Cursor.Col != 3 {
		t.Errorf("cursor = %+v", snap.Cursor)
	}
}

func TestSnapshotStyledSegments(t *testing.T) {
	term := New()
	term.WriteString("\x1b[31mred\x1b[0m plain")

	snap := term.Snapshot(SnapshotDetailStyled)
	segs := snap.Lines[0].Segments
	if len(segs) < 2 {
		t.Fatalf("expected at least 2 segments, got %d", len(segs))
	}
	if segs[0].Text != "red" {
		t.Errorf("segment 0 = %q, want %q", segs[0].Text, "red")
	}
	if segs[0].Fg == segs[1].Fg {
		t.Error("differently colored runs must split segments")
	}
}

func TestSnapshotFullCells(t *testing.T) {
	term := New(WithSize(2, 5))
	term.SetCharProtection(true)
	term.WriteString("\x1b[1mA")

	snap := term.Snapshot(SnapshotDetailFull)
	cells := snap.Lines[0].Cells
	if len(cells) != 5 {
		t.Fatalf("expected 5 cells, got %d", len(cells))
	}
	if cells[0].Char != "A" || !cells[0].Attributes.Bold || !cells[0].Protected {
		t.Errorf("cell 0 = %+v", cells[0])
	}
}

func TestSnapshotSegmentsSplitOnHyperlink(t *testing.T) {
	term := New()
	term.WriteString("\x1b]8;;https://example.com\x07ab\x1b]8;;\x07cd")

	snap := term.Snapshot(SnapshotDetailStyled)
	segs := snap.Lines[0].Segments
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(segs), segs)
	}
	if segs[0].Hyperlink == nil || segs[0].Hyperlink.URI != "https://example.com" {
		t.Errorf("segment 0 hyperlink = %+v", segs[0].Hyperlink)
	}
	if segs[1].Hyperlink != nil {
		t.Error("segment after the link close must not carry it")
	}
}

func TestSnapshotSerializesToJSON(t *testing.T) {
	term := New(WithSize(2, 5))
	term.WriteString("hi")

	data, err := json.Marshal(term.Snapshot(SnapshotDetailStyled))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Snapshot
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Lines[0].Text != "hi" {
		t.Errorf("round-tripped text = %q", back.Lines[0].Text)
	}
}

func TestSnapshotCursorShapeNames(t *testing.T) {
	cases := []struct {
		style CursorStyle
		want  string
	}{
		{CursorStyleSteadyBlock, "block"},
		{CursorStyleBlinkingUnderline, "underline"},
		{CursorStyleSteadyBar, "bar"},
	}
	for _, tc := range cases {
		if got := cursorShapeName(tc.style); got != tc.want {
			t.Errorf("cursorShapeName(%v) = %q, want %q", tc.style, got, tc.want)
		}
	}
}

func TestGetImageData(t *testing.T) {
	term := New()
	id := term.images.Store(2, 2, make([]byte, 16))

	snap := term.GetImageData(id)
	if snap == nil || snap.Width != 2 || snap.Height != 2 || snap.Format != "rgba" {
		t.Errorf("image snapshot = %+v", snap)
	}
	if term.GetImageData(9999) != nil {
		t.Error("unknown id must return nil")
	}
}
