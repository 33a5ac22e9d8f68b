package term

import "io"

// Providers are the collaborator seams of the terminal: every outward
// effect (responses, bells, titles, clipboard, string payloads, raw-input
// taps) goes through one of these interfaces, defaulting to a no-op so an
// embedding application only wires what it cares about.

// ResponseProvider receives report sequences headed back to the pty
// (cursor position reports, device attributes, OSC replies). Usually the
// pty's write half.
type ResponseProvider = io.Writer

// NoopResponse discards responses.
type NoopResponse struct{}

func (NoopResponse) Write(p []byte) (int, error) { return len(p), nil }

// BellProvider is notified on BEL.
type BellProvider interface {
	Ring()
}

// NoopBell ignores bells.
type NoopBell struct{}

func (NoopBell) Ring() {}

// TitleProvider tracks the window title and the XTWINOPS title stack.
type TitleProvider interface {
	SetTitle(title string)
	PushTitle()
	PopTitle()
}

// NoopTitle ignores title changes.
type NoopTitle struct{}

func (NoopTitle) SetTitle(title string) {}
func (NoopTitle) PushTitle()            {}
func (NoopTitle) PopTitle()             {}

// APCProvider receives APC payloads the terminal does not consume itself.
type APCProvider interface {
	Receive(data []byte)
}

// NoopAPC ignores APC payloads.
type NoopAPC struct{}

func (NoopAPC) Receive(data []byte) {}

// PMProvider receives Privacy Message payloads.
type PMProvider interface {
	Receive(data []byte)
}

// NoopPM ignores PM payloads.
type NoopPM struct{}

func (NoopPM) Receive(data []byte) {}

// SOSProvider receives Start of String payloads.
type SOSProvider interface {
	Receive(data []byte)
}

// NoopSOS ignores SOS payloads.
type NoopSOS struct{}

func (NoopSOS) Receive(data []byte) {}

// ClipboardProvider is the OSC 52 backend. The clipboard selector is the
// OSC 52 letter: 'c' for the clipboard, 'p' for the primary selection.
type ClipboardProvider interface {
	Read(clipboard byte) string
	Write(clipboard byte, data []byte)
}

// NoopClipboard ignores clipboard traffic.
type NoopClipboard struct{}

func (NoopClipboard) Read(clipboard byte) string        { return "" }
func (NoopClipboard) Write(clipboard byte, data []byte) {}

// ScrollbackProvider stores rows scrolled off the top of the primary
// screen. NewMemoryScrollback is the built-in page-backed implementation;
// NoopScrollback discards history entirely.
type ScrollbackProvider interface {
	// Push appends one row; implementations trim past MaxLines.
	Push(line []Cell)
	Len() int
	// Line returns the row at index (0 = oldest), nil out of range.
	Line(index int) []Cell
	Clear()
	SetMaxLines(max int)
	MaxLines() int
}

// NoopScrollback discards history (the alt screen's store).
type NoopScrollback struct{}

func (NoopScrollback) Push(line []Cell)      {}
func (NoopScrollback) Len() int              { return 0 }
func (NoopScrollback) Line(index int) []Cell { return nil }
func (NoopScrollback) Clear()                {}
func (NoopScrollback) SetMaxLines(max int)   {}
func (NoopScrollback) MaxLines() int         { return 0 }

// RecordingProvider taps raw input bytes before parsing, for replay and
// regression capture.
type RecordingProvider interface {
	Record(data []byte)
	Data() []byte
	Clear()
}

// NoopRecording discards the tap.
type NoopRecording struct{}

func (NoopRecording) Record([]byte) {}
func (NoopRecording) Data() []byte  { return nil }
func (NoopRecording) Clear()        {}

// SizeProvider reports cell pixel metrics, for XTWINOPS pixel reports and
// image cell-coverage math. Headless embedders can skip it; a 10x20 cell
// is assumed.
type SizeProvider interface {
	CellSizePixels() (width, height int)
}

// FixedSize is a SizeProvider with constant cell metrics.
type FixedSize struct {
	Width  int
	Height int
}

// CellSizePixels returns the fixed metrics.
func (s FixedSize) CellSizePixels() (width, height int) { return s.Width, s.Height }

var (
	_ ResponseProvider   = NoopResponse{}
	_ BellProvider       = NoopBell{}
	_ TitleProvider      = NoopTitle{}
	_ APCProvider        = NoopAPC{}
	_ PMProvider         = NoopPM{}
	_ SOSProvider        = NoopSOS{}
	_ ClipboardProvider  = NoopClipboard{}
	_ ScrollbackProvider = NoopScrollback{}
	_ RecordingProvider  = NoopRecording{}
	_ SizeProvider       = FixedSize{}
)
