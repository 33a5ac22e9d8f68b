package term

import (
	"image/color"
	"sync"

	"github.com/danielgatis/go-ansicode"
)

var _ ansicode.Handler = (*Terminal)(nil)

// TerminalMode is the bitset of ANSI and DEC private modes the terminal
// tracks. Modes compose freely; DECSET/DECRST flip them one at a time.
type TerminalMode uint32

const (
	// ModeCursorKeys makes arrow keys send application sequences (DECCKM).
	ModeCursorKeys TerminalMode = 1 << iota
	// ModeColumnMode is the 132-column switch (DECCOLM).
	ModeColumnMode
	// ModeInsert shifts existing characters right instead of overwriting.
	ModeInsert
	// ModeOrigin interprets cursor rows relative to the scroll region (DECOM).
	ModeOrigin
	// ModeLineWrap enables autowrap at the right margin (DECAWM).
	ModeLineWrap
	// ModeBlinkingCursor requests a blinking cursor.
	ModeBlinkingCursor
	// ModeLineFeedNewLine makes LF imply CR.
	ModeLineFeedNewLine
	// ModeShowCursor makes the cursor visible (DECTCEM).
	ModeShowCursor
	// ModeReportMouseClicks enables click reporting (1000).
	ModeReportMouseClicks
	// ModeReportCellMouseMotion enables drag reporting (1002).
	ModeReportCellMouseMotion
	// ModeReportAllMouseMotion enables all-motion reporting (1003).
	ModeReportAllMouseMotion
	// ModeReportFocusInOut enables focus event reporting (1004).
	ModeReportFocusInOut
	// ModeUTF8Mouse selects UTF-8 mouse coordinate encoding (1005).
	ModeUTF8Mouse
	// ModeSGRMouse selects SGR mouse coordinate encoding (1006).
	ModeSGRMouse
	// ModeAlternateScroll converts wheel events to arrows on the alt screen.
	ModeAlternateScroll
	// ModeUrgencyHints requests window urgency on bell.
	ModeUrgencyHints
	// ModeSwapScreenAndSetRestoreCursor is the 1049 alt-screen form: enter
	// saves the cursor and clears the alt screen, exit restores both.
	ModeSwapScreenAndSetRestoreCursor
	// ModeBracketedPaste wraps pastes in ESC[200~ / ESC[201~ (2004).
	ModeBracketedPaste
	// ModeKeypadApplication makes the numeric keypad send escape sequences.
	ModeKeypadApplication
	// ModeLeftRightMargin enables DECSLRM margins (DECLRMM, ?69).
	ModeLeftRightMargin
	// ModeSynchronizedUpdate defers renderer wakeups until reset (?2026).
	ModeSynchronizedUpdate
	// ModeSixelScroll is the Sixel scrolling bit (?80). No handler sets or
	// reads it: a Sixel image is placed at the cursor and the cursor is
	// clamped to the last row, without scrolling.
	ModeSixelScroll
)

const (
	// DEFAULT_ROWS is the terminal height used when none is configured.
	DEFAULT_ROWS = 24
	// DEFAULT_COLS is the terminal width used when none is configured.
	DEFAULT_COLS = 80
)

// Selection is an ordered pair of grid positions plus a rectangular flag.
// Start never comes after End.
type Selection struct {
	Start       Position
	End         Position
	Rectangular bool
	Active      bool
}

// Terminal is the display-less terminal model: two screens (primary with
// scrollback, alternate without), a cursor with pen state, modes, margins,
// charsets, and the side tables the renderer reads (style tables, image
// store). A single mutex guards all of it; the IO loop holds the lock
// while applying parsed events and the renderer holds it while reading.
type Terminal struct {
	mu sync.RWMutex

	rows int
	cols int

	primary   *Grid
	alternate *Grid
	active    *Grid

	cursor      *Cursor
	savedCursor *SavedCursor

	// pen carries the attributes SGR has accumulated; prints copy it.
	pen Pen
	// lastGlyph is the most recent printable, for REP.
	lastGlyph rune

	charsets      [4]Charset
	activeCharset int

	scrollTop    int
	scrollBottom int
	// DECSLRM margins; consulted only while ModeLeftRightMargin is set.
	scrollLeft  int
	scrollRight int

	modes TerminalMode

	title      string
	titleStack []string

	// colors holds OSC 4/10/11/12 overrides on top of the default palette.
	colors map[int]color.Color

	currentHyperlink *Hyperlink

	keyboardModes   []ansicode.KeyboardMode
	modifyOtherKeys ansicode.ModifyOtherKeys

	decoder *ansicode.Decoder

	selection Selection

	scrollbackStorage ScrollbackProvider

	middleware *Middleware

	responseProvider         ResponseProvider
	bellProvider             BellProvider
	titleProvider            TitleProvider
	apcProvider              APCProvider
	pmProvider               PMProvider
	sosProvider              SOSProvider
	clipboardProvider        ClipboardProvider
	recordingProvider        RecordingProvider
	shellIntegrationProvider ShellIntegrationProvider
	notificationProvider     NotificationProvider
	sizeProvider             SizeProvider

	// clipboardWriteAllowed gates OSC 52 stores; denied writes drop silently.
	clipboardWriteAllowed bool

	promptMarks []PromptMark

	workingDir string

	userVars map[string]string

	// warn receives non-fatal resource complaints (style table exhausted,
	// history allocation refused). Nil means silent.
	warn func(msg string)

	autoResize bool

	images *ImageStore

	// One style table per screen so alt-screen churn cannot evict styles
	// the primary screen's cached rows still reference.
	primaryStyles   *StyleTable
	alternateStyles *StyleTable

	sixelEnabled bool
	kittyEnabled bool
}

// Option configures a Terminal during construction.
type Option func(*Terminal)

// WithSize sets the terminal dimensions. Non-positive values fall back to
// the 24x80 default.
func WithSize(rows, cols int) Option {
	if rows <= 0 {
		rows = DEFAULT_ROWS
	}
	if cols <= 0 {
		cols = DEFAULT_COLS
	}
	return func(t *Terminal) {
		t.rows = rows
		t.cols = cols
	}
}

// WithResponse sets the sink for report sequences (DSR, DA, OSC replies).
// Nil discards them.
func WithResponse(p ResponseProvider) Option {
	return func(t *Terminal) { t.responseProvider = p }
}

// WithBell sets the bell handler.
func WithBell(p BellProvider) Option {
	return func(t *Terminal) { t.bellProvider = p }
}

// WithTitle sets the window-title handler.
func WithTitle(p TitleProvider) Option {
	return func(t *Terminal) { t.titleProvider = p }
}

// WithAPC sets the handler for APC payloads the terminal does not consume
// itself (everything but Kitty graphics).
func WithAPC(p APCProvider) Option {
	return func(t *Terminal) { t.apcProvider = p }
}

// WithPM sets the Privacy Message handler.
func WithPM(p PMProvider) Option {
	return func(t *Terminal) { t.pmProvider = p }
}

// WithSOS sets the Start of String handler.
func WithSOS(p SOSProvider) Option {
	return func(t *Terminal) { t.sosProvider = p }
}

// WithClipboard sets the OSC 52 clipboard backend and allows clipboard
// writes. Without this option writes are denied (dropped silently) and
// reads return nothing.
func WithClipboard(p ClipboardProvider) Option {
	return func(t *Terminal) {
		t.clipboardProvider = p
		t.clipboardWriteAllowed = true
	}
}

// WithClipboardWritePolicy toggles whether OSC 52 stores reach the
// clipboard provider. Denied writes are dropped without a response.
func WithClipboardWritePolicy(allowed bool) Option {
	return func(t *Terminal) { t.clipboardWriteAllowed = allowed }
}

// WithScrollback sets the history store for lines scrolled off the primary
// screen. Defaults to discarding them.
func WithScrollback(storage ScrollbackProvider) Option {
	return func(t *Terminal) { t.scrollbackStorage = storage }
}

// WithMiddleware installs interceptors around handler dispatch.
func WithMiddleware(mw *Middleware) Option {
	return func(t *Terminal) {
		if t.middleware == nil {
			t.middleware = &Middleware{}
		}
		t.middleware.Merge(mw)
	}
}

// WithAutoResize grows the grid instead of scrolling or wrapping, for
// capturing unbounded output.
func WithAutoResize() Option {
	return func(t *Terminal) { t.autoResize = true }
}

// WithRecording sets a tap for raw input bytes ahead of parsing.
func WithRecording(p RecordingProvider) Option {
	return func(t *Terminal) { t.recordingProvider = p }
}

// WithShellIntegration sets the handler for OSC 133 prompt marks.
func WithShellIntegration(p ShellIntegrationProvider) Option {
	return func(t *Terminal) { t.shellIntegrationProvider = p }
}

// WithNotification sets the handler for desktop notifications (OSC 99).
func WithNotification(p NotificationProvider) Option {
	return func(t *Terminal) { t.notificationProvider = p }
}

// WithSizeProvider sets the source for cell pixel dimensions, used by
// XTWINOPS reports and image cell-coverage math.
func WithSizeProvider(p SizeProvider) Option {
	return func(t *Terminal) { t.sizeProvider = p }
}

// WithWarn sets the sink for non-fatal resource warnings. The terminal
// stays usable after every warning; this is observability, not control
// flow.
func WithWarn(f func(msg string)) Option {
	return func(t *Terminal) { t.warn = f }
}

// WithSixel toggles Sixel decoding. Default on.
func WithSixel(enabled bool) Option {
	return func(t *Terminal) { t.sixelEnabled = enabled }
}

// WithKitty toggles Kitty graphics decoding. Default on.
func WithKitty(enabled bool) Option {
	return func(t *Terminal) { t.kittyEnabled = enabled }
}

// New creates a terminal. Without options: 24x80, autowrap on, cursor
// visible, no scrollback, every provider a no-op.
func New(opts ...Option) *Terminal {
	t := &Terminal{
		rows:                 DEFAULT_ROWS,
		cols:                 DEFAULT_COLS,
		colors:               make(map[int]color.Color),
		userVars:             make(map[string]string),
		keyboardModes:        make([]ansicode.KeyboardMode, 0),
		bellProvider:         NoopBell{},
		titleProvider:        NoopTitle{},
		apcProvider:          NoopAPC{},
		pmProvider:           NoopPM{},
		sosProvider:          NoopSOS{},
		clipboardProvider:    NoopClipboard{},
		recordingProvider:    NoopRecording{},
		notificationProvider: NoopNotification{},
		sixelEnabled:         true,
		kittyEnabled:         true,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.scrollbackStorage == nil {
		t.scrollbackStorage = NoopScrollback{}
	}
	t.primary = NewGridWithScrollback(t.rows, t.cols, t.scrollbackStorage)
	t.alternate = NewGrid(t.rows, t.cols)
	t.active = t.primary

	t.cursor = NewCursor()
	t.pen = NewPen()

	t.scrollTop = 0
	t.scrollBottom = t.rows
	t.scrollLeft = 0
	t.scrollRight = t.cols

	t.modes = ModeLineWrap | ModeShowCursor

	t.decoder = ansicode.NewDecoder(t)
	t.images = NewImageStore()
	t.primaryStyles = NewStyleTable()
	t.alternateStyles = NewStyleTable()

	return t
}

// Write feeds raw bytes through the recording tap and the escape-sequence
// decoder, mutating terminal state. Implements io.Writer.
func (t *Terminal) Write(data []byte) (int, error) {
	t.recordingProvider.Record(data)
	return t.decoder.Write(data)
}

// WriteString is Write for strings.
func (t *Terminal) WriteString(s string) (int, error) {
	return t.Write([]byte(s))
}

// --- Renderer-facing accessors ---

// ActiveStyleTable returns the style table backing the active screen, for
// a renderer populating a ContentsCache.
func (t *Terminal) ActiveStyleTable() *StyleTable {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.active == t.alternate {
		return t.alternateStyles
	}
	return t.primaryStyles
}

// ActiveScreenType reports which screen is active, for cache keys.
func (t *Terminal) ActiveScreenType() ScreenType {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.active == t.alternate {
		return ScreenAlternate
	}
	return ScreenPrimary
}

// RowID returns the stable cache key for a viewport row of the active
// screen, or 0 out of range.
func (t *Terminal) RowID(row int) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active.RowID(row)
}

// RowDirty reports whether a viewport row changed since the last
// ClearDirty.
func (t *Terminal) RowDirty(row int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active.RowDirty(row)
}

// DirtyRowIDs returns the stable ids of every changed row, the set a
// renderer must re-shape (and invalidate in its ContentsCache).
func (t *Terminal) DirtyRowIDs() []uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rows := t.active.DirtyRows()
	ids := make([]uint64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, t.active.RowID(r))
	}
	return ids
}

// SelectionSignature summarizes how the current selection intersects a
// viewport row, for use as the selection component of a cache key. Rows
// outside the selection report 0, so their cached vertices survive
// selection changes elsewhere on screen.
func (t *Terminal) SelectionSignature(row int) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.selection.Active || row < t.selection.Start.Row || row > t.selection.End.Row {
		return 0
	}

	startCol, endCol := 0, t.cols
	if t.selection.Rectangular || row == t.selection.Start.Row {
		startCol = t.selection.Start.Col
	}
	if t.selection.Rectangular || row == t.selection.End.Row {
		endCol = t.selection.End.Col
	}
	// 1 in the low bit distinguishes "selected from column 0 to 0" from
	// "not selected at all".
	return 1 | uint64(startCol)<<1 | uint64(endCol)<<32
}

// --- Geometry ---

// Rows returns the terminal height.
func (t *Terminal) Rows() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rows
}

// Cols returns the terminal width.
func (t *Terminal) Cols() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cols
}

// Cell returns the cell at (row, col) on the active screen, or nil.
func (t *Terminal) Cell(row, col int) *Cell {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active.Cell(row, col)
}

// Grapheme returns the combining marks attached to (row, col), nil for a
// plain cell.
func (t *Terminal) Grapheme(row, col int) []rune {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active.Grapheme(row, col)
}

// CursorPos returns the cursor position, 0-based.
func (t *Terminal) CursorPos() (row, col int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cursor.Row, t.cursor.Col
}

// CursorPending reports whether a wrap is pending (cursor sits past the
// right margin waiting for the next printable).
func (t *Terminal) CursorPending() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cursor.PendingWrap
}

// CursorVisible reports cursor visibility (DECTCEM).
func (t *Terminal) CursorVisible() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cursor.Visible
}

// CursorStyle returns the DECSCUSR cursor shape.
func (t *Terminal) CursorStyle() CursorStyle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cursor.Style
}

// Title returns the window title.
func (t *Terminal) Title() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.title
}

// HasMode reports whether every bit of mode is set.
func (t *Terminal) HasMode(mode TerminalMode) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.modes&mode == mode
}

// IsAlternateScreen reports whether the alternate screen is active.
func (t *Terminal) IsAlternateScreen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active == t.alternate
}

// ScrollRegion returns the vertical margins, 0-based with exclusive
// bottom.
func (t *Terminal) ScrollRegion() (top, bottom int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scrollTop, t.scrollBottom
}

// LRMargins returns the horizontal margins, 0-based with exclusive right.
// They bind only while DECLRMM is set.
func (t *Terminal) LRMargins() (left, right int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scrollLeft, t.scrollRight
}

// AutoResize reports whether growth mode is on.
func (t *Terminal) AutoResize() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.autoResize
}

// SixelEnabled reports whether Sixel decoding is on.
func (t *Terminal) SixelEnabled() bool { return t.sixelEnabled }

// KittyEnabled reports whether Kitty graphics decoding is on.
func (t *Terminal) KittyEnabled() bool { return t.kittyEnabled }

// Resize changes the terminal dimensions. Shrinking the primary screen
// scrolls rows into history when the cursor would otherwise fall off; the
// cursor is clamped, margins reset to full width/height, pending wrap
// cancelled.
func (t *Terminal) Resize(rows, cols int) {
	if rows <= 0 || cols <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	oldRows := t.rows
	if rows < oldRows && t.active == t.primary && t.cursor.Row >= rows {
		shift := oldRows - rows
		t.primary.ScrollUp(0, oldRows, 0, t.cols, shift)
		t.cursor.Row -= shift
		if t.cursor.Row < 0 {
			t.cursor.Row = 0
		}
	}

	t.rows = rows
	t.cols = cols
	t.primary.Resize(rows, cols)
	t.alternate.Resize(rows, cols)

	t.cursor.Row = clamp(t.cursor.Row, 0, rows-1)
	t.cursor.Col = clamp(t.cursor.Col, 0, cols-1)
	t.cursor.PendingWrap = false

	t.scrollTop = 0
	t.scrollBottom = rows
	t.scrollLeft = 0
	t.scrollRight = cols
}

// --- Margin helpers (callers hold t.mu) ---

func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// effectiveRow maps an origin-relative row to absolute when DECOM is set.
func (t *Terminal) effectiveRow(row int) int {
	if t.modes&ModeOrigin != 0 {
		return row + t.scrollTop
	}
	return row
}

// leftMargin returns the left scroll margin, honoring DECLRMM.
func (t *Terminal) leftMargin() int {
	if t.modes&ModeLeftRightMargin != 0 {
		return t.scrollLeft
	}
	return 0
}

// rightMargin returns the exclusive right scroll margin, honoring DECLRMM.
func (t *Terminal) rightMargin() int {
	if t.modes&ModeLeftRightMargin != 0 {
		return t.scrollRight
	}
	return t.cols
}

// scrollIfNeeded resolves a cursor that moved outside the scroll region:
// past the bottom scrolls content up (or grows the grid in auto-resize
// mode), above the top scrolls content down.
func (t *Terminal) scrollIfNeeded() {
	if t.cursor.Row >= t.scrollBottom {
		if t.autoResize {
			add := t.cursor.Row - t.scrollBottom + 1
			t.active.GrowRows(add)
			t.rows = t.active.Rows()
			t.scrollBottom = t.rows
			return
		}
		n := t.cursor.Row - t.scrollBottom + 1
		t.active.ScrollUp(t.scrollTop, t.scrollBottom, t.leftMargin(), t.rightMargin(), n)
		t.cursor.Row = t.scrollBottom - 1
	} else if t.cursor.Row < t.scrollTop {
		n := t.scrollTop - t.cursor.Row
		t.active.ScrollDown(t.scrollTop, t.scrollBottom, t.leftMargin(), t.rightMargin(), n)
		t.cursor.Row = t.scrollTop
	}
}

// warnf reports a non-fatal resource condition to the configured sink.
func (t *Terminal) warnf(msg string) {
	if t.warn != nil {
		t.warn(msg)
	}
}

// writeResponse sends report bytes back toward the pty.
func (t *Terminal) writeResponse(data []byte) {
	t.mu.RLock()
	provider := t.responseProvider
	t.mu.RUnlock()
	if provider != nil {
		provider.Write(data)
	}
}

func (t *Terminal) writeResponseString(s string) {
	t.writeResponse([]byte(s))
}

// --- Left/right margins (DECSLRM) ---

// SetLRMargins sets the DECSLRM margins, 1-based inclusive on the wire,
// and homes the cursor. Ignored unless DECLRMM (?69) is set, matching
// hardware terminals.
func (t *Terminal) SetLRMargins(left, right int) {
	if t.middleware != nil && t.middleware.SetLRMargins != nil {
		t.middleware.SetLRMargins(left, right, t.setLRMarginsInternal)
		return
	}
	t.setLRMarginsInternal(left, right)
}

func (t *Terminal) setLRMarginsInternal(left, right int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	left--
	if left < 0 {
		left = 0
	}
	if right <= 0 || right > t.cols {
		right = t.cols
	}
	if left >= right {
		return
	}

	t.scrollLeft = left
	t.scrollRight = right

	if t.modes&ModeOrigin != 0 {
		t.cursor.Row = t.scrollTop
		t.cursor.Col = t.scrollLeft
	} else {
		t.cursor.Row = 0
		t.cursor.Col = 0
	}
	t.cursor.PendingWrap = false
}

// --- Synchronized update (?2026) ---

// BeginSynchronizedUpdate defers renderer wakeups until the matching end,
// so multi-part redraws land in one frame.
func (t *Terminal) BeginSynchronizedUpdate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modes |= ModeSynchronizedUpdate
}

// EndSynchronizedUpdate releases a deferred-update window.
func (t *Terminal) EndSynchronizedUpdate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modes &^= ModeSynchronizedUpdate
}

// --- Runtime provider swaps ---

// SetResponseProvider replaces the report sink.
func (t *Terminal) SetResponseProvider(p ResponseProvider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responseProvider = p
}

// ResponseProvider returns the report sink.
func (t *Terminal) ResponseProvider() ResponseProvider {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.responseProvider
}

// SetBellProvider replaces the bell handler.
func (t *Terminal) SetBellProvider(p BellProvider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bellProvider = p
}

// BellProvider returns the bell handler.
func (t *Terminal) BellProvider() BellProvider {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bellProvider
}

// SetTitleProvider replaces the title handler.
func (t *Terminal) SetTitleProvider(p TitleProvider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.titleProvider = p
}

// TitleProvider returns the title handler.
func (t *Terminal) TitleProvider() TitleProvider {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.titleProvider
}

// SetAPCProvider replaces the APC handler.
func (t *Terminal) SetAPCProvider(p APCProvider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.apcProvider = p
}

// APCProvider returns the APC handler.
func (t *Terminal) APCProvider() APCProvider {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.apcProvider
}

// SetPMProvider replaces the PM handler.
func (t *Terminal) SetPMProvider(p PMProvider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pmProvider = p
}

// PMProvider returns the PM handler.
func (t *Terminal) PMProvider() PMProvider {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pmProvider
}

// SetSOSProvider replaces the SOS handler.
func (t *Terminal) SetSOSProvider(p SOSProvider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sosProvider = p
}

// SOSProvider returns the SOS handler.
func (t *Terminal) SOSProvider() SOSProvider {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sosProvider
}

// SetClipboardProvider replaces the clipboard backend.
func (t *Terminal) SetClipboardProvider(c ClipboardProvider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clipboardProvider = c
}

// ClipboardProvider returns the clipboard backend.
func (t *Terminal) ClipboardProvider() ClipboardProvider {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.clipboardProvider
}

// SetNotificationProvider replaces the desktop-notification handler.
func (t *Terminal) SetNotificationProvider(p NotificationProvider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notificationProvider = p
}

// NotificationProvider returns the desktop-notification handler.
func (t *Terminal) NotificationProvider() NotificationProvider {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.notificationProvider
}

// SetMiddleware replaces the dispatch interceptors.
func (t *Terminal) SetMiddleware(mw *Middleware) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.middleware = mw
}

// Middleware returns the dispatch interceptors.
func (t *Terminal) Middleware() *Middleware {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.middleware
}

// SetSizeProvider replaces the cell-pixel-size source.
func (t *Terminal) SetSizeProvider(p SizeProvider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sizeProvider = p
}

// SetRecordingProvider replaces the raw-input tap.
func (t *Terminal) SetRecordingProvider(p RecordingProvider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recordingProvider = p
}

// RecordingProvider returns the raw-input tap.
func (t *Terminal) RecordingProvider() RecordingProvider {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.recordingProvider
}

// RecordedData returns everything the tap captured since the last clear.
func (t *Terminal) RecordedData() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.recordingProvider.Data()
}

// ClearRecording discards the tap's capture.
func (t *Terminal) ClearRecording() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recordingProvider.Clear()
}

// --- Scrollback ---

// ScrollbackLen returns the number of history lines (primary screen).
func (t *Terminal) ScrollbackLen() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.primary.ScrollbackLen()
}

// ScrollbackLine returns history line index (0 = oldest), or nil.
func (t *Terminal) ScrollbackLine(index int) []Cell {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.primary.ScrollbackLine(index)
}

// ClearScrollback drops all history.
func (t *Terminal) ClearScrollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.primary.ClearScrollback()
}

// SetMaxScrollback caps history, trimming the oldest lines.
func (t *Terminal) SetMaxScrollback(max int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.primary.SetMaxScrollback(max)
}

// MaxScrollback returns the history cap.
func (t *Terminal) MaxScrollback() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.primary.MaxScrollback()
}

// SetScrollbackProvider swaps the history store at runtime.
func (t *Terminal) SetScrollbackProvider(storage ScrollbackProvider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scrollbackStorage = storage
	t.primary.SetScrollbackProvider(storage)
}

// ScrollbackProvider returns the history store.
func (t *Terminal) ScrollbackProvider() ScrollbackProvider {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.primary.ScrollbackProvider()
}

// --- Dirty tracking ---

// HasDirty reports pending changes on the active screen.
func (t *Terminal) HasDirty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active.HasDirty()
}

// DirtyCells returns every changed cell position.
func (t *Terminal) DirtyCells() []Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active.DirtyCells()
}

// ClearDirty acknowledges all pending changes.
func (t *Terminal) ClearDirty() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active.ClearAllDirty()
}

// --- Selection ---

// SetSelection activates a selection between start and end (normalized to
// reading order).
func (t *Terminal) SetSelection(start, end Position) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if end.Before(start) {
		start, end = end, start
	}
	t.selection = Selection{Start: start, End: end, Active: true}
}

// SetRectangularSelection activates a block selection.
func (t *Terminal) SetRectangularSelection(start, end Position) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if end.Before(start) {
		start, end = end, start
	}
	t.selection = Selection{Start: start, End: end, Rectangular: true, Active: true}
}

// ClearSelection deactivates the selection.
func (t *Terminal) ClearSelection() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selection.Active = false
}

// GetSelection returns the selection state.
func (t *Terminal) GetSelection() Selection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.selection
}

// HasSelection reports whether a selection is active.
func (t *Terminal) HasSelection() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.selection.Active
}

// IsSelected reports whether (row, col) falls inside the active selection.
func (t *Terminal) IsSelected(row, col int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.selection.Active {
		return false
	}
	pos := Position{Row: row, Col: col}
	if t.selection.Rectangular {
		return row >= t.selection.Start.Row && row <= t.selection.End.Row &&
			col >= t.selection.Start.Col && col <= t.selection.End.Col
	}
	return !pos.Before(t.selection.Start) && !t.selection.End.Before(pos)
}

// GetSelectedText extracts the selected text, with trailing blanks of each
// row trimmed and newlines between rows.
func (t *Terminal) GetSelectedText() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.selection.Active {
		return ""
	}

	start, end := t.selection.Start, t.selection.End
	var out []rune
	for row := start.Row; row <= end.Row && row < t.rows; row++ {
		startCol, endCol := 0, t.cols
		if t.selection.Rectangular || row == start.Row {
			startCol = start.Col
		}
		if t.selection.Rectangular || row == end.Row {
			endCol = end.Col + 1
		}

		rowStart := len(out)
		for col := startCol; col < endCol && col < t.cols; col++ {
			cell := t.active.Cell(row, col)
			if cell == nil || cell.IsSpacer() {
				continue
			}
			if cell.Char == 0 {
				out = append(out, ' ')
			} else {
				out = append(out, cell.Char)
				if cell.HasFlag(CellFlagGraphemeExt) {
					out = append(out, t.active.Grapheme(row, col)...)
				}
			}
		}
		for len(out) > rowStart && out[len(out)-1] == ' ' {
			out = out[:len(out)-1]
		}
		if row < end.Row {
			out = append(out, '\n')
		}
	}
	return string(out)
}

// --- Text extraction ---

// LineContent returns a row's text with trailing blanks trimmed.
func (t *Terminal) LineContent(row int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active.LineContent(row)
}

// String renders the visible screen as newline-separated text, trailing
// blank lines omitted. Implements fmt.Stringer.
func (t *Terminal) String() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	lines := make([]string, t.rows)
	last := -1
	for row := 0; row < t.rows; row++ {
		lines[row] = t.active.LineContent(row)
		if lines[row] != "" {
			last = row
		}
	}
	if last < 0 {
		return ""
	}

	out := ""
	for i := 0; i <= last; i++ {
		if i > 0 {
			out += "\n"
		}
		out += lines[i]
	}
	return out
}

// Search returns the positions of every occurrence of pattern on the
// visible screen.
func (t *Terminal) Search(pattern string) []Position {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if pattern == "" {
		return nil
	}

	var matches []Position
	want := []rune(pattern)
	for row := 0; row < t.rows; row++ {
		line := []rune(t.active.LineContent(row))
		matches = appendRuneMatches(matches, line, want, row)
	}
	return matches
}

// SearchScrollback returns pattern matches in history. Row values are
// negative: -1 is the most recent history line.
func (t *Terminal) SearchScrollback(pattern string) []Position {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if pattern == "" {
		return nil
	}

	var matches []Position
	want := []rune(pattern)
	n := t.primary.ScrollbackLen()
	for i := 0; i < n; i++ {
		cells := t.primary.ScrollbackLine(i)
		if cells == nil {
			continue
		}
		var line []rune
		for _, cell := range cells {
			if cell.IsSpacer() {
				continue
			}
			if cell.Char == 0 {
				line = append(line, ' ')
			} else {
				line = append(line, cell.Char)
			}
		}
		matches = appendRuneMatches(matches, line, want, -(n - i))
	}
	return matches
}

func appendRuneMatches(matches []Position, line, want []rune, row int) []Position {
	for col := 0; col+len(want) <= len(line); col++ {
		ok := true
		for i, r := range want {
			if line[col+i] != r {
				ok = false
				break
			}
		}
		if ok {
			matches = append(matches, Position{Row: row, Col: col})
		}
	}
	return matches
}

// --- Wrap tracking ---

// IsWrapped reports whether a row soft-wrapped into the next.
func (t *Terminal) IsWrapped(row int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active.IsWrapped(row)
}

// SetWrapped overrides a row's soft-wrap flag.
func (t *Terminal) SetWrapped(row int, wrapped bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active.SetWrapped(row, wrapped)
}

// --- Images ---

// Image returns the stored image for id, or nil.
func (t *Terminal) Image(id uint32) *ImageEntry {
	return t.images.Image(id)
}

// ImagePlacements returns every live placement.
func (t *Terminal) ImagePlacements() []*ImagePlacement {
	return t.images.Placements()
}

// ImageCount returns the number of stored images.
func (t *Terminal) ImageCount() int {
	return t.images.ImageCount()
}

// ImagePlacementCount returns the number of live placements.
func (t *Terminal) ImagePlacementCount() int {
	return t.images.PlacementCount()
}

// ImageUsedMemory returns current image memory usage in bytes.
func (t *Terminal) ImageUsedMemory() int64 {
	return t.images.UsedMemory()
}

// SetImageMaxMemory caps the image memory budget.
func (t *Terminal) SetImageMaxMemory(bytes int64) {
	t.images.SetMaxMemory(bytes)
}

// ClearImages drops every image and placement.
func (t *Terminal) ClearImages() {
	t.images.Clear()
}
