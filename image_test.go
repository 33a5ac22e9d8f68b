package term

import "testing"

func TestImageStoreDeduplicatesByHash(t *testing.T) {
	s := NewImageStore()
	data := []byte{1, 2, 3, 4}

	id1 := s.Store(1, 1, data)
	id2 := s.Store(1, 1, append([]byte(nil), data...))
	if id1 != id2 {
		t.Errorf("identical pixels got distinct ids %d, %d", id1, id2)
	}
	if s.ImageCount() != 1 {
		t.Errorf("image count = %d, want 1", s.ImageCount())
	}
}

func TestImageStoreStoreWithIDReplaces(t *testing.T) {
	s := NewImageStore()
	s.StoreWithID(5, 1, 1, []byte{1, 2, 3, 4})
	s.StoreWithID(5, 2, 1, []byte{9, 9, 9, 9, 9, 9, 9, 9})

	img := s.Image(5)
	if img == nil || img.Width != 2 {
		t.Fatalf("image = %+v, want replaced 2x1", img)
	}
	if s.UsedMemory() != 8 {
		t.Errorf("used memory = %d, want 8 after replacement", s.UsedMemory())
	}
}

func TestImageStorePlacementLifecycle(t *testing.T) {
	s := NewImageStore()
	id := s.Store(1, 1, []byte{0, 0, 0, 0})

	pid := s.Place(&ImagePlacement{ImageID: id, Row: 2, Col: 3, Rows: 1, Cols: 1})
	if s.Placement(pid) == nil {
		t.Fatal("placement not retrievable")
	}
	if s.PlacementCount() != 1 {
		t.Fatalf("placement count = %d", s.PlacementCount())
	}

	s.RemovePlacement(pid)
	if s.PlacementCount() != 0 {
		t.Error("placement not removed")
	}
}

func TestImageStoreDeleteImageDropsPlacements(t *testing.T) {
	s := NewImageStore()
	id := s.Store(1, 1, []byte{0, 0, 0, 0})
	s.Place(&ImagePlacement{ImageID: id})
	s.Place(&ImagePlacement{ImageID: id})

	s.DeleteImage(id)
	if s.ImageCount() != 0 || s.PlacementCount() != 0 {
		t.Errorf("delete left images=%d placements=%d", s.ImageCount(), s.PlacementCount())
	}
	if s.UsedMemory() != 0 {
		t.Errorf("used memory = %d after delete", s.UsedMemory())
	}
}

func TestImageStorePositionalDeletes(t *testing.T) {
	s := NewImageStore()
	id := s.Store(1, 1, []byte{0, 0, 0, 0})
	s.Place(&ImagePlacement{ImageID: id, Row: 0, Col: 0, Rows: 2, Cols: 2})
	s.Place(&ImagePlacement{ImageID: id, Row: 5, Col: 5, Rows: 1, Cols: 1, ZIndex: 3})

	s.DeletePlacementsByPosition(1, 1)
	if s.PlacementCount() != 1 {
		t.Fatalf("count after position delete = %d, want 1", s.PlacementCount())
	}
	s.DeletePlacementsByZIndex(3)
	if s.PlacementCount() != 0 {
		t.Errorf("count after z delete = %d, want 0", s.PlacementCount())
	}
}

func TestImageStoreRowColumnDeletes(t *testing.T) {
	s := NewImageStore()
	id := s.Store(1, 1, []byte{0, 0, 0, 0})
	s.Place(&ImagePlacement{ImageID: id, Row: 0, Col: 0, Rows: 3, Cols: 1})
	s.Place(&ImagePlacement{ImageID: id, Row: 10, Col: 4, Rows: 1, Cols: 3})

	s.DeletePlacementsInRow(1)
	if s.PlacementCount() != 1 {
		t.Fatalf("count after row delete = %d, want 1", s.PlacementCount())
	}
	s.DeletePlacementsInColumn(5)
	if s.PlacementCount() != 0 {
		t.Errorf("count after column delete = %d, want 0", s.PlacementCount())
	}
}

func TestImageStoreBudgetEvictsUnplacedLRU(t *testing.T) {
	s := NewImageStore()
	s.SetMaxMemory(10)

	first := s.Store(1, 1, []byte{1, 1, 1, 1})
	placed := s.Store(1, 1, []byte{2, 2, 2, 2})
	s.Place(&ImagePlacement{ImageID: placed})

	// Pushes the store over budget; only the unplaced image can go.
	s.Store(1, 1, []byte{3, 3, 3, 3})

	if s.Image(placed) == nil {
		t.Error("placed image must survive eviction")
	}
	if s.ImageCount() > 2 {
		t.Errorf("image count = %d, want eviction to have run", s.ImageCount())
	}
	_ = first
}

func TestImageStoreClear(t *testing.T) {
	s := NewImageStore()
	id := s.Store(1, 1, []byte{0, 0, 0, 0})
	s.Place(&ImagePlacement{ImageID: id})

	s.Clear()
	if s.ImageCount() != 0 || s.PlacementCount() != 0 || s.UsedMemory() != 0 {
		t.Error("clear left state behind")
	}
}

func TestTerminalImageAccessors(t *testing.T) {
	term := New()
	id := term.images.Store(2, 2, make([]byte, 16))
	term.images.Place(&ImagePlacement{ImageID: id, Rows: 1, Cols: 1})

	if term.ImageCount() != 1 || term.ImagePlacementCount() != 1 {
		t.Error("accessor counts wrong")
	}
	if term.ImageUsedMemory() != 16 {
		t.Errorf("used memory = %d, want 16", term.ImageUsedMemory())
	}
	term.ClearImages()
	if term.ImageCount() != 0 {
		t.Error("ClearImages left images")
	}
}
