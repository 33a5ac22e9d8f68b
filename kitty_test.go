package term

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func TestParseKittyGraphicsControlKeys(t *testing.T) {
	cmd, err := ParseKittyGraphics([]byte("Ga=T,f=32,s=10,v=20,i=7,z=-1,q=2,C=1"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cmd.Action != KittyActionTransmitDisplay {
		t.Errorf("action = %c", cmd.Action)
	}
	if cmd.Format != KittyFormatRGBA || cmd.Width != 10 || cmd.Height != 20 {
		t.Errorf("format/dims = %d %dx%d", cmd.Format, cmd.Width, cmd.Height)
	}
	if cmd.ImageID != 7 || cmd.ZIndex != -1 || cmd.Quiet != 2 || !cmd.DoNotMoveCursor {
		t.Errorf("cmd = %+v", cmd)
	}
}

func TestParseKittyGraphicsPayload(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("pixels"))
	cmd, err := ParseKittyGraphics([]byte("Ga=t;" + payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if string(cmd.Payload) != "pixels" {
		t.Errorf("payload = %q", cmd.Payload)
	}

	if _, err := ParseKittyGraphics([]byte("Ga=t;@@not-base64@@")); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestDecodeImageDataRGB(t *testing.T) {
	cmd := &KittyCommand{Format: KittyFormatRGB, Width: 2, Height: 1, Payload: []byte{1, 2, 3, 4, 5, 6}}
	rgba, w, h, err := cmd.DecodeImageData()
	if err != nil || w != 2 || h != 1 {
		t.Fatalf("decode: %v %dx%d", err, w, h)
	}
	want := []byte{1, 2, 3, 255, 4, 5, 6, 255}
	if !bytes.Equal(rgba, want) {
		t.Errorf("rgba = %v, want %v", rgba, want)
	}
}

func TestDecodeImageDataPNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	cmd := &KittyCommand{Format: KittyFormatPNG, Payload: buf.Bytes()}
	rgba, w, h, err := cmd.DecodeImageData()
	if err != nil || w != 2 || h != 2 {
		t.Fatalf("decode: %v %dx%d", err, w, h)
	}
	if rgba[0] != 255 || rgba[1] != 0 || rgba[2] != 0 {
		t.Errorf("pixel (0,0) = %v, want red", rgba[:4])
	}
}

func TestDecodeImageDataShortPayload(t *testing.T) {
	cmd := &KittyCommand{Format: KittyFormatRGBA, Width: 10, Height: 10, Payload: []byte{1}}
	if _, _, _, err := cmd.DecodeImageData(); err == nil {
		t.Error("expected error for short payload")
	}
}

func TestFormatKittyResponse(t *testing.T) {
	if got := FormatKittyResponse(42, "", false); got != "\x1b_Gi=42;OK\x1b\\" {
		t.Errorf("ok reply = %q", got)
	}
	if got := FormatKittyResponse(0, "ENOENT", true); got != "\x1b_G;ENOENT\x1b\\" {
		t.Errorf("error reply = %q", got)
	}
}

func kittyAPC(control string, payload []byte) []byte {
	if payload == nil {
		return []byte("G" + control)
	}
	return []byte("G" + control + ";" + base64.StdEncoding.EncodeToString(payload))
}

func TestKittyQueryResponds(t *testing.T) {
	var buf bytes.Buffer
	term := New(WithResponse(&buf))
	term.ApplicationCommandReceived(kittyAPC("a=q,i=3", nil))

	if got := buf.String(); !strings.Contains(got, "i=3;OK") {
		t.Errorf("query reply = %q", got)
	}
}

func TestKittyTransmitAndDisplay(t *testing.T) {
	var buf bytes.Buffer
	term := New(WithResponse(&buf))

	pixels := make([]byte, 4*4*4)
	term.ApplicationCommandReceived(kittyAPC("a=T,f=32,s=4,v=4,i=9", pixels))

	if term.ImageCount() != 1 {
		t.Fatalf("image count = %d, want 1", term.ImageCount())
	}
	if term.ImagePlacementCount() != 1 {
		t.Fatalf("placement count = %d, want 1", term.ImagePlacementCount())
	}
	if cell := term.Cell(0, 0); cell == nil || !cell.HasImage() {
		t.Error("cell (0,0) should reference the placed image")
	}
	if img := term.Image(9); img == nil || img.Width != 4 {
		t.Errorf("stored image = %+v", img)
	}
}

func TestKittyChunkedTransmission(t *testing.T) {
	term := New()
	pixels := make([]byte, 2*2*4)

	first := kittyAPC("a=t,f=32,s=2,v=2,i=5,m=1", pixels[:8])
	second := kittyAPC("a=t,i=5,m=0", pixels[8:])
	term.ApplicationCommandReceived(first)
	if term.ImageCount() != 0 {
		t.Fatal("image must not materialize before the final chunk")
	}
	term.ApplicationCommandReceived(second)
	if term.ImageCount() != 1 {
		t.Fatalf("image count after final chunk = %d, want 1", term.ImageCount())
	}
}

func TestKittyDeleteByID(t *testing.T) {
	term := New()
	pixels := make([]byte, 2*2*4)
	term.ApplicationCommandReceived(kittyAPC("a=T,f=32,s=2,v=2,i=11,q=2", pixels))

	term.ApplicationCommandReceived(kittyAPC("a=d,d=i,i=11,q=2", nil))
	if term.ImagePlacementCount() != 0 {
		t.Error("placements should be gone after d=i")
	}
	if term.ImageCount() != 1 {
		t.Error("lowercase delete keeps the image data")
	}

	term.ApplicationCommandReceived(kittyAPC("a=d,d=I,i=11,q=2", nil))
	if term.ImageCount() != 0 {
		t.Error("uppercase delete must free the image data")
	}
}

func TestKittyDisabled(t *testing.T) {
	term := New(WithKitty(false))
	received := [][]byte{}
	term.SetAPCProvider(apcFunc(func(data []byte) { received = append(received, data) }))

	pixels := make([]byte, 4)
	term.ApplicationCommandReceived(kittyAPC("a=T,f=32,s=1,v=1", pixels))
	if term.ImageCount() != 0 {
		t.Error("disabled kitty must not store images")
	}
	if len(received) != 1 {
		t.Error("disabled kitty should fall through to the APC provider")
	}
}

type apcFunc func(data []byte)

func (f apcFunc) Receive(data []byte) { f(data) }
