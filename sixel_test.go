package term

import "testing"

func TestParseSixelSingleColumn(t *testing.T) {
	// '~' paints all six pixels of the band in the current color.
	img, err := ParseSixel(nil, []byte("#1~"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if img.Width != 1 || img.Height != 6 {
		t.Fatalf("dims = %dx%d, want 1x6", img.Width, img.Height)
	}
}

func TestParseSixelRepeat(t *testing.T) {
	img, err := ParseSixel(nil, []byte("!10~"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if img.Width != 10 {
		t.Errorf("width = %d, want 10", img.Width)
	}
}

func TestParseSixelBandsAndCR(t *testing.T) {
	// Two bands separated by '-', with '$' returning to column 0.
	img, err := ParseSixel(nil, []byte("~~$@-~"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if img.Height != 12 {
		t.Errorf("height = %d, want 12 (two bands)", img.Height)
	}
	if img.Width != 2 {
		t.Errorf("width = %d, want 2", img.Width)
	}
}

func TestParseSixelColorDefinition(t *testing.T) {
	// Define color 1 as pure red (RGB percentages) and paint with it.
	img, err := ParseSixel(nil, []byte("#1;2;100;0;0#1?"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// '?' paints nothing (zero bits); with no pixels the image is empty.
	if img.Width != 0 {
		t.Errorf("width = %d, want 0 for blank data", img.Width)
	}

	img, err = ParseSixel(nil, []byte("#1;2;100;0;0#1@"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if img.Width != 1 || img.Height != 1 {
		t.Fatalf("dims = %dx%d, want 1x1", img.Width, img.Height)
	}
	if img.Data[0] != 255 || img.Data[1] != 0 || img.Data[2] != 0 {
		t.Errorf("pixel = %v, want red", img.Data[:4])
	}
}

func TestParseSixelTransparentBackground(t *testing.T) {
	img, err := ParseSixel([]int64{0, 1}, []byte("@"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !img.Transparent {
		t.Error("P2=1 must mark the image transparent")
	}
}

func TestSixelHLSGray(t *testing.T) {
	c := sixelHLS(0, 50, 0)
	if c.R != c.G || c.G != c.B {
		t.Errorf("zero saturation must be gray, got %v", c)
	}
}

func TestSixelReceivedPlacesImage(t *testing.T) {
	term := New()
	term.SixelReceived([][]uint16{{0}}, []byte("#1!20~-#1!20~"))

	if term.ImageCount() != 1 {
		t.Fatalf("image count = %d, want 1", term.ImageCount())
	}
	placements := term.ImagePlacements()
	if len(placements) != 1 {
		t.Fatalf("placements = %d, want 1", len(placements))
	}
	if placements[0].Cols != 2 {
		t.Errorf("cols = %d, want 2 for a 20px-wide image on 10px cells", placements[0].Cols)
	}
	// The cursor moves below the image.
	row, _ := term.CursorPos()
	if row != 1 {
		t.Errorf("cursor row = %d, want 1", row)
	}
}

func TestSixelDisabled(t *testing.T) {
	term := New(WithSixel(false))
	term.SixelReceived([][]uint16{{0}}, []byte("~"))
	if term.ImageCount() != 0 {
		t.Error("disabled sixel must not store images")
	}
}
