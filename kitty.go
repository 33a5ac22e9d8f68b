package term

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"strconv"

	// Registered so the generic image.Decode fallback below can handle the
	// formats graphical toolkits commonly hand a terminal besides PNG.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// KittyAction is the a= verb of a Kitty graphics command.
type KittyAction byte

const (
	KittyActionTransmit        KittyAction = 't'
	KittyActionTransmitDisplay KittyAction = 'T'
	KittyActionQuery           KittyAction = 'q'
	KittyActionDisplay         KittyAction = 'p'
	KittyActionDelete          KittyAction = 'd'
	KittyActionFrame           KittyAction = 'f'
	KittyActionAnimate         KittyAction = 'a'
	KittyActionCompose         KittyAction = 'c'
)

// KittyTransmission is the t= transport of the payload.
type KittyTransmission byte

const (
	KittyTransmitDirect    KittyTransmission = 'd'
	KittyTransmitFile      KittyTransmission = 'f'
	KittyTransmitTempFile  KittyTransmission = 't'
	KittyTransmitSharedMem KittyTransmission = 's'
)

// KittyFormat is the f= pixel format of the payload.
type KittyFormat uint32

const (
	KittyFormatRGB  KittyFormat = 24
	KittyFormatRGBA KittyFormat = 32
	KittyFormatPNG  KittyFormat = 100
)

// KittyDelete is the d= selector of a delete command. Of the uppercase
// variants, only A and I also free image data; C, X, Y and Z remove
// placements only, like their lowercase forms. The n/N and p/P selectors
// are parsed but have no effect.
type KittyDelete byte

const (
	KittyDeleteAll          KittyDelete = 'a'
	KittyDeleteAllWithData  KittyDelete = 'A'
	KittyDeleteByID         KittyDelete = 'i'
	KittyDeleteByIDWithData KittyDelete = 'I'
	KittyDeleteByNumber     KittyDelete = 'n'
	KittyDeleteByNumData    KittyDelete = 'N'
	KittyDeleteAtCursor     KittyDelete = 'c'
	KittyDeleteAtCursorData KittyDelete = 'C'
	KittyDeleteAtPos        KittyDelete = 'p'
	KittyDeleteAtPosData    KittyDelete = 'P'
	KittyDeleteByCol        KittyDelete = 'x'
	KittyDeleteByColData    KittyDelete = 'X'
	KittyDeleteByRow        KittyDelete = 'y'
	KittyDeleteByRowData    KittyDelete = 'Y'
	KittyDeleteByZIndex     KittyDelete = 'z'
	KittyDeleteByZIndexData KittyDelete = 'Z'
)

// KittyCommand is one parsed Kitty graphics command: the control key=value
// pairs plus the base64-decoded payload.
type KittyCommand struct {
	Action       KittyAction
	Transmission KittyTransmission
	Format       KittyFormat
	Compression  byte

	ImageID     uint32 // i=
	ImageNumber uint32 // I=
	PlacementID uint32 // p=

	Width  uint32 // s=
	Height uint32 // v=
	Size   uint32 // S=
	Offset uint32 // O=
	More   bool   // m=

	SrcX, SrcY      uint32 // x=, y=
	SrcW, SrcH      uint32 // w=, h=
	Cols, Rows      uint32 // c=, r=
	CellOffsetX     uint32 // X=
	CellOffsetY     uint32 // Y=
	ZIndex          int32  // z=
	DoNotMoveCursor bool   // C=

	Delete KittyDelete // d=

	// Quiet suppresses responses: 1 drops OK replies, 2 drops errors too.
	Quiet uint32 // q=

	Payload []byte
}

// ParseKittyGraphics parses the body of an APC G sequence (the bytes
// between ESC _ G and ST).
func ParseKittyGraphics(data []byte) (*KittyCommand, error) {
	cmd := &KittyCommand{
		Action:       KittyActionTransmitDisplay,
		Transmission: KittyTransmitDirect,
		Format:       KittyFormatRGBA,
	}

	if len(data) > 0 && data[0] == 'G' {
		data = data[1:]
	}

	control := data
	var payload []byte
	if sep := bytes.IndexByte(data, ';'); sep >= 0 {
		control, payload = data[:sep], data[sep+1:]
	}

	for _, pair := range bytes.Split(control, []byte(",")) {
		eq := bytes.IndexByte(pair, '=')
		if eq <= 0 {
			continue
		}
		cmd.applyKey(pair[0], pair[eq+1:])
	}

	if len(payload) > 0 {
		decoded, err := base64.StdEncoding.DecodeString(string(payload))
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(string(payload))
			if err != nil {
				return nil, fmt.Errorf("kitty graphics: bad base64 payload: %w", err)
			}
		}
		cmd.Payload = decoded
	}

	return cmd, nil
}

func (cmd *KittyCommand) applyKey(key byte, value []byte) {
	switch key {
	case 'a':
		if len(value) > 0 {
			cmd.Action = KittyAction(value[0])
		}
	case 't':
		if len(value) > 0 {
			cmd.Transmission = KittyTransmission(value[0])
		}
	case 'f':
		cmd.Format = KittyFormat(parseUint32(value))
	case 'o':
		if len(value) > 0 {
			cmd.Compression = value[0]
		}
	case 'i':
		cmd.ImageID = parseUint32(value)
	case 'I':
		cmd.ImageNumber = parseUint32(value)
	case 'p':
		cmd.PlacementID = parseUint32(value)
	case 's':
		cmd.Width = parseUint32(value)
	case 'v':
		cmd.Height = parseUint32(value)
	case 'S':
		cmd.Size = parseUint32(value)
	case 'O':
		cmd.Offset = parseUint32(value)
	case 'm':
		cmd.More = parseUint32(value) == 1
	case 'x':
		cmd.SrcX = parseUint32(value)
	case 'y':
		cmd.SrcY = parseUint32(value)
	case 'w':
		cmd.SrcW = parseUint32(value)
	case 'h':
		cmd.SrcH = parseUint32(value)
	case 'c':
		cmd.Cols = parseUint32(value)
	case 'r':
		cmd.Rows = parseUint32(value)
	case 'X':
		cmd.CellOffsetX = parseUint32(value)
	case 'Y':
		cmd.CellOffsetY = parseUint32(value)
	case 'z':
		cmd.ZIndex = parseInt32(value)
	case 'C':
		cmd.DoNotMoveCursor = parseUint32(value) == 1
	case 'd':
		if len(value) > 0 {
			cmd.Delete = KittyDelete(value[0])
		}
	case 'q':
		cmd.Quiet = parseUint32(value)
	}
}

// DecodeImageData turns the payload into RGBA pixels per the command's
// format and compression, returning pixels, width, height.
func (cmd *KittyCommand) DecodeImageData() ([]byte, uint32, uint32, error) {
	data := cmd.Payload

	if cmd.Compression == 'z' && len(data) > 0 {
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, 0, 0, fmt.Errorf("kitty graphics: zlib: %w", err)
		}
		defer r.Close()
		data, err = io.ReadAll(r)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("kitty graphics: decompress: %w", err)
		}
	}

	switch cmd.Format {
	case KittyFormatPNG:
		return decodePNG(data)

	case KittyFormatRGB:
		if cmd.Width == 0 || cmd.Height == 0 {
			return nil, 0, 0, fmt.Errorf("kitty graphics: RGB needs s= and v=")
		}
		n := int(cmd.Width * cmd.Height)
		if len(data) < n*3 {
			return nil, 0, 0, fmt.Errorf("kitty graphics: short RGB payload: %d < %d", len(data), n*3)
		}
		rgba := make([]byte, n*4)
		for i := 0; i < n; i++ {
			copy(rgba[i*4:], data[i*3:i*3+3])
			rgba[i*4+3] = 255
		}
		return rgba, cmd.Width, cmd.Height, nil

	case KittyFormatRGBA:
		if cmd.Width == 0 || cmd.Height == 0 {
			return nil, 0, 0, fmt.Errorf("kitty graphics: RGBA needs s= and v=")
		}
		n := int(cmd.Width * cmd.Height * 4)
		if len(data) < n {
			return nil, 0, 0, fmt.Errorf("kitty graphics: short RGBA payload: %d < %d", len(data), n)
		}
		return data[:n], cmd.Width, cmd.Height, nil

	default:
		return nil, 0, 0, fmt.Errorf("kitty graphics: unknown format %d", cmd.Format)
	}
}

// decodePNG flattens a PNG (or any registered image format, as a fallback)
// to RGBA pixels.
func decodePNG(data []byte) ([]byte, uint32, uint32, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, 0, 0, fmt.Errorf("kitty graphics: decode: %w", err)
		}
	}

	bounds := img.Bounds()
	width := uint32(bounds.Dx())
	height := uint32(bounds.Dy())
	rgba := make([]byte, width*height*4)

	for y := 0; y < int(height); y++ {
		for x := 0; x < int(width); x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			off := (uint32(y)*width + uint32(x)) * 4
			rgba[off+0] = uint8(r >> 8)
			rgba[off+1] = uint8(g >> 8)
			rgba[off+2] = uint8(b >> 8)
			rgba[off+3] = uint8(a >> 8)
		}
	}
	return rgba, width, height, nil
}

func parseUint32(b []byte) uint32 {
	n, _ := strconv.ParseUint(string(b), 10, 32)
	return uint32(n)
}

func parseInt32(b []byte) int32 {
	n, _ := strconv.ParseInt(string(b), 10, 32)
	return int32(n)
}

// FormatKittyResponse builds the APC G reply for a command: OK or an error
// token, echoing the image id when known.
func FormatKittyResponse(imageID uint32, message string, isError bool) string {
	body := "OK"
	if isError {
		body = message
	}
	if imageID > 0 {
		return fmt.Sprintf("\x1b_Gi=%d;%s\x1b\\", imageID, body)
	}
	return "\x1b_G;" + body + "\x1b\\"
}

// --- Terminal dispatch ---

// handleKittyGraphics executes one parsed graphics command against the
// image store and the grid.
func (t *Terminal) handleKittyGraphics(data []byte) {
	cmd, err := ParseKittyGraphics(data)
	if err != nil {
		return
	}

	switch cmd.Action {
	case KittyActionQuery:
		if cmd.Quiet < 1 {
			t.writeResponseString(FormatKittyResponse(cmd.ImageID, "", false))
		}

	case KittyActionTransmit:
		t.kittyTransmit(cmd)

	case KittyActionTransmitDisplay:
		t.kittyTransmit(cmd)
		if !cmd.More {
			t.kittyDisplay(cmd)
		}

	case KittyActionDisplay:
		t.kittyDisplay(cmd)

	case KittyActionDelete:
		t.kittyDelete(cmd)
	}
}

// kittyTransmit stores payload bytes, reassembling chunked (m=1)
// transmissions before decoding.
func (t *Terminal) kittyTransmit(cmd *KittyCommand) {
	if cmd.More {
		t.images.mu.Lock()
		if !t.images.accumulatorMore {
			// First chunk carries the format metadata; continuations are
			// payload only.
			t.images.accumulatorFormat = cmd.Format
			t.images.accumulatorWidth = cmd.Width
			t.images.accumulatorHeight = cmd.Height
			t.images.accumulatorCompression = cmd.Compression
		}
		t.images.accumulator = append(t.images.accumulator, cmd.Payload...)
		t.images.accumulatorID = cmd.ImageID
		t.images.accumulatorMore = true
		t.images.mu.Unlock()
		return
	}

	t.images.mu.Lock()
	if t.images.accumulatorMore {
		cmd.Payload = append(t.images.accumulator, cmd.Payload...)
		cmd.Format = t.images.accumulatorFormat
		if cmd.Width == 0 {
			cmd.Width = t.images.accumulatorWidth
		}
		if cmd.Height == 0 {
			cmd.Height = t.images.accumulatorHeight
		}
		if cmd.Compression == 0 {
			cmd.Compression = t.images.accumulatorCompression
		}
		t.images.accumulator = nil
		t.images.accumulatorMore = false
	}
	t.images.mu.Unlock()

	rgba, width, height, err := cmd.DecodeImageData()
	if err != nil || width == 0 || height == 0 {
		t.warnf("kitty graphics: dropped undecodable transmission")
		if cmd.Quiet < 2 {
			t.writeResponseString(FormatKittyResponse(cmd.ImageID, "ENODATA", true))
		}
		return
	}

	if cmd.ImageID > 0 {
		t.images.StoreWithID(cmd.ImageID, width, height, rgba)
	} else {
		cmd.ImageID = t.images.Store(width, height, rgba)
	}

	if cmd.Quiet < 1 {
		t.writeResponseString(FormatKittyResponse(cmd.ImageID, "", false))
	}
}

// kittyDisplay places a stored image at the cursor, stamps cell
// references, and advances the cursor unless C=1 suppressed that.
func (t *Terminal) kittyDisplay(cmd *KittyCommand) {
	img := t.images.Image(cmd.ImageID)
	if img == nil {
		if cmd.Quiet < 2 {
			t.writeResponseString(FormatKittyResponse(cmd.ImageID, "ENOENT", true))
		}
		return
	}

	cellW, cellH := t.cellSizePixels()

	srcW, srcH := cmd.SrcW, cmd.SrcH
	if srcW == 0 {
		srcW = img.Width - cmd.SrcX
	}
	if srcH == 0 {
		srcH = img.Height - cmd.SrcY
	}

	cols := int(cmd.Cols)
	rows := int(cmd.Rows)
	if cols == 0 {
		cols = int((srcW + uint32(cellW) - 1) / uint32(cellW))
	}
	if rows == 0 {
		rows = int((srcH + uint32(cellH) - 1) / uint32(cellH))
	}

	t.mu.Lock()
	curRow, curCol := t.cursor.Row, t.cursor.Col
	t.mu.Unlock()

	placement := &ImagePlacement{
		ImageID: cmd.ImageID,
		Row:     curRow,
		Col:     curCol,
		Cols:    cols,
		Rows:    rows,
		SrcX:    cmd.SrcX,
		SrcY:    cmd.SrcY,
		SrcW:    srcW,
		SrcH:    srcH,
		ZIndex:  cmd.ZIndex,
		OffsetX: cmd.CellOffsetX,
		OffsetY: cmd.CellOffsetY,
	}
	placementID := t.images.Place(placement)

	t.assignImageToCells(cmd.ImageID, placementID, placement, img.Width, img.Height, cellW, cellH)

	if !cmd.DoNotMoveCursor {
		t.mu.Lock()
		t.cursor.Col += cols
		if t.cursor.Col >= t.cols {
			t.cursor.Col = 0
			t.cursor.Row++
			if t.cursor.Row >= t.rows {
				t.cursor.Row = t.rows - 1
			}
		}
		t.mu.Unlock()
	}

	if cmd.Quiet < 1 {
		t.writeResponseString(FormatKittyResponse(cmd.ImageID, "", false))
	}
}

// kittyDelete removes placements matching the command's criteria. The a/A
// selectors clear every image and placement; I also frees the image data.
// Other uppercase selectors act as their lowercase forms, and n/N and p/P
// are not handled.
func (t *Terminal) kittyDelete(cmd *KittyCommand) {
	t.mu.Lock()
	curRow, curCol := t.cursor.Row, t.cursor.Col
	t.mu.Unlock()

	switch cmd.Delete {
	case KittyDeleteAll, KittyDeleteAllWithData:
		t.images.Clear()
	case KittyDeleteByID, KittyDeleteByIDWithData:
		t.images.RemovePlacementsForImage(cmd.ImageID)
		if cmd.Delete == KittyDeleteByIDWithData {
			t.images.DeleteImage(cmd.ImageID)
		}
	case KittyDeleteAtCursor, KittyDeleteAtCursorData:
		t.images.DeletePlacementsByPosition(curRow, curCol)
	case KittyDeleteByCol, KittyDeleteByColData:
		t.images.DeletePlacementsInColumn(curCol)
	case KittyDeleteByRow, KittyDeleteByRowData:
		t.images.DeletePlacementsInRow(curRow)
	case KittyDeleteByZIndex, KittyDeleteByZIndexData:
		t.images.DeletePlacementsByZIndex(cmd.ZIndex)
	}
}
