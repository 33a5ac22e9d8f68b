package term

import "image/color"

// SixelImage is a decoded Sixel raster: RGBA pixels plus the transparency
// hint from the DCS P2 parameter.
type SixelImage struct {
	Width       uint32
	Height      uint32
	Data        []byte
	Transparent bool
}

// sixelDecoder accumulates one Sixel stream onto a growable canvas. Each
// data byte paints a 6-pixel vertical strip in the currently selected
// palette color.
type sixelDecoder struct {
	palette    [256]color.RGBA
	colorIndex int
	x, y       int
	maxX, maxY int
	// canvas rows are allocated lazily as the image grows downward; -1
	// marks an unpainted pixel so color 0 stays distinguishable from
	// background.
	canvas      [][]int16
	transparent bool
}

// ParseSixel decodes a Sixel stream. params are the DCS parameters
// (aspect ratio; background select; grid size); data is everything after
// the 'q' final.
func ParseSixel(params []int64, data []byte) (*SixelImage, error) {
	d := &sixelDecoder{}
	d.initPalette()

	// P2 == 1 keeps unpainted pixels transparent instead of color 0.
	if len(params) >= 2 && params[1] == 1 {
		d.transparent = true
	}

	d.run(data)
	return d.image(), nil
}

// initPalette loads the VGA 16-color base and a grayscale ramp for the
// rest, the conventional defaults for undeclared Sixel colors.
func (d *sixelDecoder) initPalette() {
	base := [16]color.RGBA{
		{0, 0, 0, 255},
		{0, 0, 205, 255},
		{205, 0, 0, 255},
		{205, 0, 205, 255},
		{0, 205, 0, 255},
		{0, 205, 205, 255},
		{205, 205, 0, 255},
		{205, 205, 205, 255},
		{0, 0, 0, 255},
		{0, 0, 255, 255},
		{255, 0, 0, 255},
		{255, 0, 255, 255},
		{0, 255, 0, 255},
		{0, 255, 255, 255},
		{255, 255, 0, 255},
		{255, 255, 255, 255},
	}
	copy(d.palette[:], base[:])
	for i := 16; i < 256; i++ {
		v := uint8((i - 16) * 255 / 239)
		d.palette[i] = color.RGBA{v, v, v, 255}
	}
}

func (d *sixelDecoder) run(data []byte) {
	i := 0
	for i < len(data) {
		b := data[i]
		i++

		switch {
		case b == '$':
			// Graphics CR: back to the left edge of the current band.
			d.x = 0

		case b == '-':
			// Graphics LF: next 6-pixel band.
			d.x = 0
			d.y += 6

		case b == '!':
			// Repeat introducer: !<count><data byte>.
			count, next := scanSixelNumber(data, i)
			i = next
			if i < len(data) {
				if ch := data[i]; ch >= '?' && ch <= '~' {
					d.paint(ch, int(count))
				}
				i++
			}

		case b == '#':
			i = d.colorCommand(data, i)

		case b == '"':
			// Raster attributes; the aspect/extent hints are advisory and
			// skipped up to the next drawing command.
			for i < len(data) {
				ch := data[i]
				if ch == '$' || ch == '-' || ch == '#' || ch == '!' || (ch >= '?' && ch <= '~') {
					break
				}
				i++
			}

		case b >= '?' && b <= '~':
			d.paint(b, 1)
		}
	}
}

// colorCommand handles #<index>[;<type>;<v1>;<v2>;<v3>]: a palette
// definition when the parameter list is present, then selection either way.
func (d *sixelDecoder) colorCommand(data []byte, i int) int {
	index, i := scanSixelNumber(data, i)

	var params []int64
	for len(params) < 4 && i < len(data) && data[i] == ';' {
		var v int64
		v, i = scanSixelNumber(data, i+1)
		params = append(params, v)
	}

	if index >= 0 && index < 256 {
		if len(params) == 4 {
			if params[0] == 1 {
				d.palette[index] = sixelHLS(int(params[1]), int(params[2]), int(params[3]))
			} else {
				d.palette[index] = color.RGBA{
					R: uint8(params[1] * 255 / 100),
					G: uint8(params[2] * 255 / 100),
					B: uint8(params[3] * 255 / 100),
					A: 255,
				}
			}
		}
		d.colorIndex = int(index)
	}
	return i
}

func scanSixelNumber(data []byte, i int) (int64, int) {
	var n int64
	for i < len(data) && data[i] >= '0' && data[i] <= '9' {
		n = n*10 + int64(data[i]-'0')
		i++
	}
	return n, i
}

// paint draws one data byte count times: bit k of (b - '?') is the pixel
// k rows below the current band's top.
func (d *sixelDecoder) paint(b byte, count int) {
	if count <= 0 {
		count = 1
	}
	bits := b - '?'

	for rep := 0; rep < count; rep++ {
		for bit := 0; bit < 6; bit++ {
			if bits&(1<<bit) == 0 {
				continue
			}
			d.set(d.x, d.y+bit)
		}
		d.x++
	}
}

func (d *sixelDecoder) set(x, y int) {
	for len(d.canvas) <= y {
		d.canvas = append(d.canvas, nil)
	}
	row := d.canvas[y]
	for len(row) <= x {
		row = append(row, -1)
	}
	row[x] = int16(d.colorIndex)
	d.canvas[y] = row

	if x > d.maxX {
		d.maxX = x
	}
	if y > d.maxY {
		d.maxY = y
	}
}

// image flattens the canvas to RGBA. Unpainted pixels become transparent
// or color 0 per the P2 parameter.
func (d *sixelDecoder) image() *SixelImage {
	if len(d.canvas) == 0 {
		return &SixelImage{}
	}

	width := uint32(d.maxX + 1)
	height := uint32(d.maxY + 1)
	data := make([]byte, width*height*4)

	if !d.transparent {
		bg := d.palette[0]
		for i := uint32(0); i < width*height; i++ {
			data[i*4+0] = bg.R
			data[i*4+1] = bg.G
			data[i*4+2] = bg.B
			data[i*4+3] = bg.A
		}
	}

	for y := 0; y < int(height) && y < len(d.canvas); y++ {
		row := d.canvas[y]
		for x := 0; x < int(width) && x < len(row); x++ {
			idx := row[x]
			if idx < 0 {
				continue
			}
			c := d.palette[idx]
			off := (uint32(y)*width + uint32(x)) * 4
			data[off+0] = c.R
			data[off+1] = c.G
			data[off+2] = c.B
			data[off+3] = c.A
		}
	}

	return &SixelImage{Width: width, Height: height, Data: data, Transparent: d.transparent}
}

// sixelHLS converts Sixel's HLS color space to RGB. Sixel's hue wheel is
// rotated relative to the standard one: blue sits at 0, red at 120,
// green at 240.
func sixelHLS(h, l, s int) color.RGBA {
	if s == 0 {
		v := uint8(l * 255 / 100)
		return color.RGBA{v, v, v, 255}
	}

	hue := float64(h)/360 + 2.0/3.0
	if hue >= 1 {
		hue -= 1
	}
	light := float64(l) / 100
	sat := float64(s) / 100

	var q float64
	if light < 0.5 {
		q = light * (1 + sat)
	} else {
		q = light + sat - light*sat
	}
	p := 2*light - q

	return color.RGBA{
		R: uint8(hueChannel(p, q, hue+1.0/3.0) * 255),
		G: uint8(hueChannel(p, q, hue) * 255),
		B: uint8(hueChannel(p, q, hue-1.0/3.0) * 255),
		A: 255,
	}
}

func hueChannel(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	default:
		return p
	}
}

// --- Terminal dispatch ---

// SixelReceived decodes a DCS Sixel stream, stores the raster, places it
// at the cursor, and moves the cursor below the image.
func (t *Terminal) SixelReceived(params [][]uint16, data []byte) {
	if t.middleware != nil && t.middleware.SixelReceived != nil {
		t.middleware.SixelReceived(params, data, t.sixelReceivedInternal)
		return
	}
	t.sixelReceivedInternal(params, data)
}

func (t *Terminal) sixelReceivedInternal(params [][]uint16, data []byte) {
	if !t.sixelEnabled {
		return
	}

	flat := make([]int64, 0, len(params))
	for _, p := range params {
		if len(p) > 0 {
			flat = append(flat, int64(p[0]))
		}
	}

	img, err := ParseSixel(flat, data)
	if err != nil || img.Width == 0 || img.Height == 0 {
		if err != nil {
			t.warnf("sixel: dropped undecodable stream")
		}
		return
	}

	imageID := t.images.Store(img.Width, img.Height, img.Data)

	cellW, cellH := t.cellSizePixels()
	cols := int((img.Width + uint32(cellW) - 1) / uint32(cellW))
	rows := int((img.Height + uint32(cellH) - 1) / uint32(cellH))

	t.mu.Lock()
	curRow, curCol := t.cursor.Row, t.cursor.Col
	t.mu.Unlock()

	placement := &ImagePlacement{
		ImageID: imageID,
		Row:     curRow,
		Col:     curCol,
		Cols:    cols,
		Rows:    rows,
		SrcW:    img.Width,
		SrcH:    img.Height,
	}
	placementID := t.images.Place(placement)

	t.assignImageToCells(imageID, placementID, placement, img.Width, img.Height, cellW, cellH)

	t.mu.Lock()
	t.cursor.Row += rows
	if t.cursor.Row >= t.rows {
		t.cursor.Row = t.rows - 1
	}
	t.mu.Unlock()
}
