package term

import (
	"image/color"
	"reflect"

	"github.com/danielgatis/go-ansicode"
)

// Middleware interposes on handler dispatch: each non-nil field wraps the
// matching Terminal handler, receiving the original arguments plus a next
// continuation that runs the default behavior. Not calling next swallows
// the operation; calling it with altered arguments rewrites it. The field
// set is the fixed, closed set of handler operations, so dispatch stays a
// direct field check rather than any dynamic registry.
type Middleware struct {
	Input          func(r rune, next func(rune))
	Bell           func(next func())
	Backspace      func(next func())
	CarriageReturn func(next func())
	LineFeed       func(next func())
	Tab            func(n int, next func(int))

	ClearLine   func(mode ansicode.LineClearMode, next func(ansicode.LineClearMode))
	ClearScreen func(mode ansicode.ClearMode, next func(ansicode.ClearMode))
	ClearTabs   func(mode ansicode.TabulationClearMode, next func(ansicode.TabulationClearMode))

	Goto     func(row, col int, next func(int, int))
	GotoLine func(row int, next func(int))
	GotoCol  func(col int, next func(int))

	MoveUp           func(n int, next func(int))
	MoveDown         func(n int, next func(int))
	MoveForward      func(n int, next func(int))
	MoveBackward     func(n int, next func(int))
	MoveUpCr         func(n int, next func(int))
	MoveDownCr       func(n int, next func(int))
	MoveForwardTabs  func(n int, next func(int))
	MoveBackwardTabs func(n int, next func(int))

	InsertBlank      func(n int, next func(int))
	InsertBlankLines func(n int, next func(int))
	DeleteChars      func(n int, next func(int))
	DeleteLines      func(n int, next func(int))
	EraseChars       func(n int, next func(int))
	ScrollUp         func(n int, next func(int))
	ScrollDown       func(n int, next func(int))

	SetScrollingRegion func(top, bottom int, next func(int, int))
	SetLRMargins       func(left, right int, next func(int, int))

	SetMode   func(mode ansicode.TerminalMode, next func(ansicode.TerminalMode))
	UnsetMode func(mode ansicode.TerminalMode, next func(ansicode.TerminalMode))

	SetTerminalCharAttribute func(attr ansicode.TerminalCharAttribute, next func(ansicode.TerminalCharAttribute))

	SetTitle       func(title string, next func(string))
	PushTitle      func(next func())
	PopTitle       func(next func())
	SetCursorStyle func(style ansicode.CursorStyle, next func(ansicode.CursorStyle))

	SaveCursorPosition    func(next func())
	RestoreCursorPosition func(next func())
	ReverseIndex          func(next func())
	ResetState            func(next func())
	Substitute            func(next func())
	Decaln                func(next func())

	DeviceStatus     func(n int, next func(int))
	IdentifyTerminal func(b byte, next func(byte))

	ConfigureCharset func(index ansicode.CharsetIndex, charset ansicode.Charset, next func(ansicode.CharsetIndex, ansicode.Charset))
	SetActiveCharset func(n int, next func(int))

	SetKeypadApplicationMode   func(next func())
	UnsetKeypadApplicationMode func(next func())

	SetColor        func(index int, c color.Color, next func(int, color.Color))
	ResetColor      func(i int, next func(int))
	SetDynamicColor func(prefix string, index int, terminator string, next func(string, int, string))

	ClipboardLoad  func(clipboard byte, terminator string, next func(byte, string))
	ClipboardStore func(clipboard byte, data []byte, next func(byte, []byte))

	SetHyperlink func(hyperlink *ansicode.Hyperlink, next func(*ansicode.Hyperlink))

	TextAreaSizeChars  func(next func())
	TextAreaSizePixels func(next func())
	HorizontalTabSet   func(next func())

	SetKeyboardMode       func(mode ansicode.KeyboardMode, behavior ansicode.KeyboardModeBehavior, next func(ansicode.KeyboardMode, ansicode.KeyboardModeBehavior))
	PushKeyboardMode      func(mode ansicode.KeyboardMode, next func(ansicode.KeyboardMode))
	PopKeyboardMode       func(n int, next func(int))
	ReportKeyboardMode    func(next func())
	SetModifyOtherKeys    func(modify ansicode.ModifyOtherKeys, next func(ansicode.ModifyOtherKeys))
	ReportModifyOtherKeys func(next func())

	ApplicationCommandReceived func(data []byte, next func([]byte))
	PrivacyMessageReceived     func(data []byte, next func([]byte))
	StartOfStringReceived      func(data []byte, next func([]byte))

	ShellIntegrationMark func(mark ansicode.ShellIntegrationMark, exitCode int, next func(ansicode.ShellIntegrationMark, int))
	SetWorkingDirectory  func(uri string, next func(string))
	SixelReceived        func(params [][]uint16, data []byte, next func([][]uint16, []byte))
	DesktopNotification  func(payload *NotificationPayload, next func(*NotificationPayload))
	SetUserVar           func(name, value string, next func(string, string))
}

// Merge overlays other onto m: every non-nil interceptor in other replaces
// the corresponding one in m. All fields are func-typed, so a single
// reflective sweep covers the whole struct and cannot drift out of sync
// with the field list.
func (m *Middleware) Merge(other *Middleware) {
	if other == nil {
		return
	}
	dst := reflect.ValueOf(m).Elem()
	src := reflect.ValueOf(other).Elem()
	for i := 0; i < src.NumField(); i++ {
		if f := src.Field(i); !f.IsNil() {
			dst.Field(i).Set(f)
		}
	}
}
