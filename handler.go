package term

import (
	"encoding/base64"
	"fmt"
	"image/color"

	"github.com/danielgatis/go-ansicode"
)

// This file is the dispatch surface: the ansicode.Handler methods the
// decoder calls for every parsed action, each one a thin middleware-wrapped
// shell around an *Internal mutation that runs under the terminal mutex.
// Policy lives here (clipboard gating, response formatting); the grid
// mechanics live in Grid.

// Input writes one printable character at the cursor, handling deferred
// autowrap, wide-character pairing, combining marks, insert mode, and
// charset translation.
func (t *Terminal) Input(r rune) {
	if t.middleware != nil && t.middleware.Input != nil {
		t.middleware.Input(r, t.inputInternal)
		return
	}
	t.inputInternal(r)
}

func (t *Terminal) inputInternal(r rune) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.printLocked(r)
}

// printLocked is the core print operation; the caller holds t.mu.
func (t *Terminal) printLocked(r rune) {
	if t.activeCharset >= 0 && t.activeCharset < 4 && t.charsets[t.activeCharset] == CharsetLineDrawing {
		r = decSpecial(r)
	}

	width := runeWidth(r)

	// Zero-width scalars are combining marks: they extend the previous
	// cell's grapheme cluster instead of occupying a column.
	if width == 0 {
		row, col := t.graphemeBaseLocked()
		if col >= 0 {
			t.active.AppendGrapheme(row, col, r)
		}
		return
	}

	right := t.rightMargin()

	if t.autoResize && t.cursor.Col+width > t.cols {
		t.active.GrowCols(t.cursor.Row, t.cursor.Col+width)
		t.cols = t.active.Cols()
		right = t.rightMargin()
	} else if t.cursor.PendingWrap {
		// The previous print filled the last column; this character is the
		// one that actually performs the wrap.
		t.cursor.PendingWrap = false
		if t.modes&ModeLineWrap != 0 {
			t.active.SetWrapped(t.cursor.Row, true)
			t.cursor.Col = t.leftMargin()
			t.cursor.Row++
			t.scrollIfNeeded()
		} else {
			t.cursor.Col = right - width
			if t.cursor.Col < t.leftMargin() {
				t.cursor.Col = t.leftMargin()
			}
		}
	}

	// A wide character that would straddle the right margin leaves a
	// spacer-head blank in the last column and starts on the next row.
	if width == 2 && t.cursor.Col+2 > right && !t.autoResize {
		if t.modes&ModeLineWrap == 0 {
			return
		}
		if spacer := t.active.Cell(t.cursor.Row, right-1); spacer != nil {
			spacer.Reset()
			spacer.Fg = t.pen.Fg
			spacer.Bg = t.pen.Bg
			spacer.SetFlag(CellFlagSpacerHead)
			t.active.MarkDirty(t.cursor.Row, right-1)
		}
		t.active.SetWrapped(t.cursor.Row, true)
		t.cursor.Col = t.leftMargin()
		t.cursor.Row++
		t.scrollIfNeeded()
	}

	if t.modes&ModeInsert != 0 {
		t.active.InsertBlanks(t.cursor.Row, t.cursor.Col, width, right)
	}

	cell := t.active.Cell(t.cursor.Row, t.cursor.Col)
	if cell == nil {
		return
	}
	cell.Char = r
	cell.Fg = t.pen.Fg
	cell.Bg = t.pen.Bg
	cell.UnderlineColor = t.pen.UnderlineColor
	cell.Flags = t.pen.Flags
	cell.Hyperlink = t.currentHyperlink
	cell.Image = nil
	if width == 2 {
		cell.SetFlag(CellFlagWideHead)
	}
	t.active.dropGrapheme(t.cursor.Row, t.cursor.Col)
	t.active.MarkDirty(t.cursor.Row, t.cursor.Col)

	if width == 2 {
		if tail := t.active.Cell(t.cursor.Row, t.cursor.Col+1); tail != nil {
			tail.Reset()
			tail.Fg = t.pen.Fg
			tail.Bg = t.pen.Bg
			tail.SetFlag(CellFlagWideTail)
			t.active.MarkDirty(t.cursor.Row, t.cursor.Col+1)
		}
	}

	t.lastGlyph = r
	t.cursor.Col += width

	// Reaching the margin does not wrap yet; it arms the deferred wrap.
	if t.cursor.Col >= right {
		if t.modes&ModeLineWrap != 0 && !t.autoResize {
			t.cursor.Col = right
			t.cursor.PendingWrap = true
		} else if !t.autoResize {
			t.cursor.Col = right - 1
		}
	}
}

// graphemeBaseLocked finds the cell a combining mark should attach to: the
// most recently printed cell, stepping over a wide tail to its head.
func (t *Terminal) graphemeBaseLocked() (row, col int) {
	row = t.cursor.Row
	col = t.cursor.Col - 1
	if t.cursor.PendingWrap {
		col = t.rightMargin() - 1
	}
	if col < 0 {
		return row, -1
	}
	if cell := t.active.Cell(row, col); cell != nil && cell.HasFlag(CellFlagWideTail) {
		col--
	}
	return row, col
}

// decSpecial maps the DEC Special Graphics charset onto Unicode box-drawing
// characters. Unmapped bytes pass through.
var decSpecialMap = map[rune]rune{
	'j': '┘', 'k': '┐', 'l': '┌', 'm': '└', 'n': '┼',
	'q': '─', 't': '├', 'u': '┤', 'v': '┴', 'w': '┬', 'x': '│',
}

func decSpecial(r rune) rune {
	if mapped, ok := decSpecialMap[r]; ok {
		return mapped
	}
	return r
}

// RepeatLastChar re-prints the most recent printable n times (REP). A REP
// with no preceding printable is a no-op.
func (t *Terminal) RepeatLastChar(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lastGlyph == 0 {
		return
	}
	r := t.lastGlyph
	for i := 0; i < n; i++ {
		t.printLocked(r)
	}
}

// --- C0 controls ---

// Backspace moves the cursor one column left, stopping at the left margin.
func (t *Terminal) Backspace() {
	if t.middleware != nil && t.middleware.Backspace != nil {
		t.middleware.Backspace(t.backspaceInternal)
		return
	}
	t.backspaceInternal()
}

func (t *Terminal) backspaceInternal() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cursor.PendingWrap = false
	if t.cursor.Col > t.leftMargin() {
		t.cursor.Col--
	}
	if t.cursor.Col >= t.cols {
		t.cursor.Col = t.cols - 1
	}
}

// Bell forwards BEL to the bell provider.
func (t *Terminal) Bell() {
	if t.middleware != nil && t.middleware.Bell != nil {
		t.middleware.Bell(t.bellInternal)
		return
	}
	t.bellInternal()
}

func (t *Terminal) bellInternal() {
	if t.bellProvider != nil {
		t.bellProvider.Ring()
	}
}

// CarriageReturn moves the cursor to the left margin of the current row.
func (t *Terminal) CarriageReturn() {
	if t.middleware != nil && t.middleware.CarriageReturn != nil {
		t.middleware.CarriageReturn(t.carriageReturnInternal)
		return
	}
	t.carriageReturnInternal()
}

func (t *Terminal) carriageReturnInternal() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cursor.PendingWrap = false
	t.cursor.Col = t.leftMargin()
}

// LineFeed moves the cursor down, scrolling at the bottom of the scroll
// region. With ModeLineFeedNewLine set it also returns to the left margin.
func (t *Terminal) LineFeed() {
	if t.middleware != nil && t.middleware.LineFeed != nil {
		t.middleware.LineFeed(t.lineFeedInternal)
		return
	}
	t.lineFeedInternal()
}

func (t *Terminal) lineFeedInternal() {
	t.mu.Lock()
	defer t.mu.Unlock()

	// An explicit newline means this row did not soft-wrap.
	t.active.SetWrapped(t.cursor.Row, false)
	t.cursor.PendingWrap = false

	if t.modes&ModeLineFeedNewLine != 0 {
		t.cursor.Col = t.leftMargin()
	}
	t.cursor.Row++
	t.scrollIfNeeded()
}

// ReverseIndex moves the cursor up, scrolling down at the top of the
// scroll region.
func (t *Terminal) ReverseIndex() {
	if t.middleware != nil && t.middleware.ReverseIndex != nil {
		t.middleware.ReverseIndex(t.reverseIndexInternal)
		return
	}
	t.reverseIndexInternal()
}

func (t *Terminal) reverseIndexInternal() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cursor.PendingWrap = false
	if t.cursor.Row == t.scrollTop {
		t.active.ScrollDown(t.scrollTop, t.scrollBottom, t.leftMargin(), t.rightMargin(), 1)
	} else if t.cursor.Row > 0 {
		t.cursor.Row--
	}
}

// Substitute replaces the character under the cursor with '?' (SUB).
func (t *Terminal) Substitute() {
	if t.middleware != nil && t.middleware.Substitute != nil {
		t.middleware.Substitute(t.substituteInternal)
		return
	}
	t.substituteInternal()
}

func (t *Terminal) substituteInternal() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cell := t.active.Cell(t.cursor.Row, t.cursor.Col); cell != nil {
		cell.Char = '?'
		t.active.MarkDirty(t.cursor.Row, t.cursor.Col)
	}
}

// --- Tabs ---

// Tab advances the cursor to the nth next tab stop.
func (t *Terminal) Tab(n int) {
	if t.middleware != nil && t.middleware.Tab != nil {
		t.middleware.Tab(n, t.tabInternal)
		return
	}
	t.tabInternal(n)
}

func (t *Terminal) tabInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cursor.PendingWrap = false
	for i := 0; i < n; i++ {
		t.cursor.Col = t.active.NextTabStop(t.cursor.Col)
	}
	if right := t.rightMargin(); t.cursor.Col >= right {
		t.cursor.Col = right - 1
	}
}

// MoveForwardTabs is CHT: Tab by another name.
func (t *Terminal) MoveForwardTabs(n int) {
	if t.middleware != nil && t.middleware.MoveForwardTabs != nil {
		t.middleware.MoveForwardTabs(n, t.moveForwardTabsInternal)
		return
	}
	t.moveForwardTabsInternal(n)
}

func (t *Terminal) moveForwardTabsInternal(n int) {
	t.tabInternal(n)
}

// MoveBackwardTabs is CBT: move to the nth previous tab stop.
func (t *Terminal) MoveBackwardTabs(n int) {
	if t.middleware != nil && t.middleware.MoveBackwardTabs != nil {
		t.middleware.MoveBackwardTabs(n, t.moveBackwardTabsInternal)
		return
	}
	t.moveBackwardTabsInternal(n)
}

func (t *Terminal) moveBackwardTabsInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cursor.PendingWrap = false
	for i := 0; i < n; i++ {
		t.cursor.Col = t.active.PrevTabStop(t.cursor.Col)
	}
}

// HorizontalTabSet sets a tab stop at the cursor column (HTS).
func (t *Terminal) HorizontalTabSet() {
	if t.middleware != nil && t.middleware.HorizontalTabSet != nil {
		t.middleware.HorizontalTabSet(t.horizontalTabSetInternal)
		return
	}
	t.horizontalTabSetInternal()
}

func (t *Terminal) horizontalTabSetInternal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active.SetTabStop(t.cursor.Col)
}

// ClearTabs removes the tab stop at the cursor, or all of them (TBC).
func (t *Terminal) ClearTabs(mode ansicode.TabulationClearMode) {
	if t.middleware != nil && t.middleware.ClearTabs != nil {
		t.middleware.ClearTabs(mode, t.clearTabsInternal)
		return
	}
	t.clearTabsInternal(mode)
}

func (t *Terminal) clearTabsInternal(mode ansicode.TabulationClearMode) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch mode {
	case ansicode.TabulationClearModeCurrent:
		t.active.ClearTabStop(t.cursor.Col)
	case ansicode.TabulationClearModeAll:
		t.active.ClearAllTabStops()
	}
}

// --- Cursor positioning ---

// Goto places the cursor (CUP/HVP), origin-relative when DECOM is set.
func (t *Terminal) Goto(row, col int) {
	if t.middleware != nil && t.middleware.Goto != nil {
		t.middleware.Goto(row, col, t.gotoInternal)
		return
	}
	t.gotoInternal(row, col)
}

func (t *Terminal) gotoInternal(row, col int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cursor.PendingWrap = false
	t.cursor.Row = clamp(t.effectiveRow(row), 0, t.rows-1)
	t.cursor.Col = clamp(col, 0, t.cols-1)
}

// GotoLine moves the cursor to a row (VPA), keeping the column.
func (t *Terminal) GotoLine(row int) {
	if t.middleware != nil && t.middleware.GotoLine != nil {
		t.middleware.GotoLine(row, t.gotoLineInternal)
		return
	}
	t.gotoLineInternal(row)
}

func (t *Terminal) gotoLineInternal(row int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cursor.PendingWrap = false
	t.cursor.Row = clamp(t.effectiveRow(row), 0, t.rows-1)
}

// GotoCol moves the cursor to a column (CHA/HPA), keeping the row.
func (t *Terminal) GotoCol(col int) {
	if t.middleware != nil && t.middleware.GotoCol != nil {
		t.middleware.GotoCol(col, t.gotoColInternal)
		return
	}
	t.gotoColInternal(col)
}

func (t *Terminal) gotoColInternal(col int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cursor.PendingWrap = false
	t.cursor.Col = clamp(col, 0, t.cols-1)
}

// MoveUp moves the cursor up n rows (CUU), saturating at the top.
func (t *Terminal) MoveUp(n int) {
	if t.middleware != nil && t.middleware.MoveUp != nil {
		t.middleware.MoveUp(n, t.moveUpInternal)
		return
	}
	t.moveUpInternal(n)
}

func (t *Terminal) moveUpInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cursor.PendingWrap = false
	t.cursor.Row = clamp(t.cursor.Row-n, 0, t.rows-1)
}

// MoveDown moves the cursor down n rows (CUD), saturating at the bottom.
func (t *Terminal) MoveDown(n int) {
	if t.middleware != nil && t.middleware.MoveDown != nil {
		t.middleware.MoveDown(n, t.moveDownInternal)
		return
	}
	t.moveDownInternal(n)
}

func (t *Terminal) moveDownInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cursor.PendingWrap = false
	t.cursor.Row = clamp(t.cursor.Row+n, 0, t.rows-1)
}

// MoveForward moves the cursor right n columns (CUF), saturating at the
// right margin.
func (t *Terminal) MoveForward(n int) {
	if t.middleware != nil && t.middleware.MoveForward != nil {
		t.middleware.MoveForward(n, t.moveForwardInternal)
		return
	}
	t.moveForwardInternal(n)
}

func (t *Terminal) moveForwardInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cursor.PendingWrap = false
	t.cursor.Col = clamp(t.cursor.Col+n, 0, t.rightMargin()-1)
}

// MoveBackward moves the cursor left n columns (CUB), saturating at the
// left margin.
func (t *Terminal) MoveBackward(n int) {
	if t.middleware != nil && t.middleware.MoveBackward != nil {
		t.middleware.MoveBackward(n, t.moveBackwardInternal)
		return
	}
	t.moveBackwardInternal(n)
}

func (t *Terminal) moveBackwardInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cursor.PendingWrap = false
	t.cursor.Col = clamp(t.cursor.Col-n, t.leftMargin(), t.cols-1)
}

// MoveDownCr moves down n rows and to the left margin (CNL).
func (t *Terminal) MoveDownCr(n int) {
	if t.middleware != nil && t.middleware.MoveDownCr != nil {
		t.middleware.MoveDownCr(n, t.moveDownCrInternal)
		return
	}
	t.moveDownCrInternal(n)
}

func (t *Terminal) moveDownCrInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cursor.PendingWrap = false
	t.cursor.Row = clamp(t.cursor.Row+n, 0, t.rows-1)
	t.cursor.Col = t.leftMargin()
}

// MoveUpCr moves up n rows and to the left margin (CPL).
func (t *Terminal) MoveUpCr(n int) {
	if t.middleware != nil && t.middleware.MoveUpCr != nil {
		t.middleware.MoveUpCr(n, t.moveUpCrInternal)
		return
	}
	t.moveUpCrInternal(n)
}

func (t *Terminal) moveUpCrInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cursor.PendingWrap = false
	t.cursor.Row = clamp(t.cursor.Row-n, 0, t.rows-1)
	t.cursor.Col = t.leftMargin()
}

// --- Erase and edit ---

// ClearLine erases within the cursor's row (EL): right of cursor, left of
// cursor, or all.
func (t *Terminal) ClearLine(mode ansicode.LineClearMode) {
	if t.middleware != nil && t.middleware.ClearLine != nil {
		t.middleware.ClearLine(mode, t.clearLineInternal)
		return
	}
	t.clearLineInternal(mode)
}

func (t *Terminal) clearLineInternal(mode ansicode.LineClearMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.eraseLineLocked(mode, false)
}

// SelectiveEraseLine is DECSEL: like EL but cells protected by DECSCA
// survive.
func (t *Terminal) SelectiveEraseLine(mode ansicode.LineClearMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.eraseLineLocked(mode, true)
}

func (t *Terminal) eraseLineLocked(mode ansicode.LineClearMode, selective bool) {
	erase := t.active.ClearRowRange
	if selective {
		erase = t.active.ClearRowRangeUnprotected
	}
	switch mode {
	case ansicode.LineClearModeRight:
		erase(t.cursor.Row, t.cursor.Col, t.cols)
	case ansicode.LineClearModeLeft:
		erase(t.cursor.Row, 0, t.cursor.Col+1)
	case ansicode.LineClearModeAll:
		erase(t.cursor.Row, 0, t.cols)
	}
}

// ClearScreen erases screen regions (ED): below, above, all, or history.
func (t *Terminal) ClearScreen(mode ansicode.ClearMode) {
	if t.middleware != nil && t.middleware.ClearScreen != nil {
		t.middleware.ClearScreen(mode, t.clearScreenInternal)
		return
	}
	t.clearScreenInternal(mode)
}

func (t *Terminal) clearScreenInternal(mode ansicode.ClearMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.eraseScreenLocked(mode, false)
}

// SelectiveEraseScreen is DECSED: like ED but DECSCA-protected cells
// survive.
func (t *Terminal) SelectiveEraseScreen(mode ansicode.ClearMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.eraseScreenLocked(mode, true)
}

func (t *Terminal) eraseScreenLocked(mode ansicode.ClearMode, selective bool) {
	erase := t.active.ClearRowRange
	if selective {
		erase = t.active.ClearRowRangeUnprotected
	}
	switch mode {
	case ansicode.ClearModeBelow:
		erase(t.cursor.Row, t.cursor.Col, t.cols)
		for row := t.cursor.Row + 1; row < t.rows; row++ {
			erase(row, 0, t.cols)
		}
	case ansicode.ClearModeAbove:
		for row := 0; row < t.cursor.Row; row++ {
			erase(row, 0, t.cols)
		}
		erase(t.cursor.Row, 0, t.cursor.Col+1)
	case ansicode.ClearModeAll:
		for row := 0; row < t.rows; row++ {
			erase(row, 0, t.cols)
		}
	case ansicode.ClearModeSaved:
		// ED 3 targets history, not the visible screen.
		t.primary.ClearScrollback()
	}
}

// EraseChars blanks n cells at the cursor in place (ECH); nothing shifts.
func (t *Terminal) EraseChars(n int) {
	if t.middleware != nil && t.middleware.EraseChars != nil {
		t.middleware.EraseChars(n, t.eraseCharsInternal)
		return
	}
	t.eraseCharsInternal(n)
}

func (t *Terminal) eraseCharsInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active.ClearRowRange(t.cursor.Row, t.cursor.Col, t.cursor.Col+n)
}

// InsertBlank opens n blank cells at the cursor (ICH), shifting the line
// tail right within the margins.
func (t *Terminal) InsertBlank(n int) {
	if t.middleware != nil && t.middleware.InsertBlank != nil {
		t.middleware.InsertBlank(n, t.insertBlankInternal)
		return
	}
	t.insertBlankInternal(n)
}

func (t *Terminal) insertBlankInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active.InsertBlanks(t.cursor.Row, t.cursor.Col, n, t.rightMargin())
}

// DeleteChars removes n cells at the cursor (DCH), pulling the line tail
// left within the margins.
func (t *Terminal) DeleteChars(n int) {
	if t.middleware != nil && t.middleware.DeleteChars != nil {
		t.middleware.DeleteChars(n, t.deleteCharsInternal)
		return
	}
	t.deleteCharsInternal(n)
}

func (t *Terminal) deleteCharsInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active.DeleteChars(t.cursor.Row, t.cursor.Col, n, t.rightMargin())
}

// InsertBlankLines opens n blank lines at the cursor (IL); only acts when
// the cursor is inside the scroll region.
func (t *Terminal) InsertBlankLines(n int) {
	if t.middleware != nil && t.middleware.InsertBlankLines != nil {
		t.middleware.InsertBlankLines(n, t.insertBlankLinesInternal)
		return
	}
	t.insertBlankLinesInternal(n)
}

func (t *Terminal) insertBlankLinesInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cursor.Row >= t.scrollTop && t.cursor.Row < t.scrollBottom {
		t.active.InsertLines(t.cursor.Row, n, t.scrollBottom, t.leftMargin(), t.rightMargin())
		t.cursor.PendingWrap = false
	}
}

// DeleteLines removes n lines at the cursor (DL); only acts when the
// cursor is inside the scroll region.
func (t *Terminal) DeleteLines(n int) {
	if t.middleware != nil && t.middleware.DeleteLines != nil {
		t.middleware.DeleteLines(n, t.deleteLinesInternal)
		return
	}
	t.deleteLinesInternal(n)
}

func (t *Terminal) deleteLinesInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cursor.Row >= t.scrollTop && t.cursor.Row < t.scrollBottom {
		t.active.DeleteLines(t.cursor.Row, n, t.scrollBottom, t.leftMargin(), t.rightMargin())
		t.cursor.PendingWrap = false
	}
}

// ScrollUp shifts the scroll region up n lines (SU).
func (t *Terminal) ScrollUp(n int) {
	if t.middleware != nil && t.middleware.ScrollUp != nil {
		t.middleware.ScrollUp(n, t.scrollUpInternal)
		return
	}
	t.scrollUpInternal(n)
}

func (t *Terminal) scrollUpInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active.ScrollUp(t.scrollTop, t.scrollBottom, t.leftMargin(), t.rightMargin(), n)
}

// ScrollDown shifts the scroll region down n lines (SD).
func (t *Terminal) ScrollDown(n int) {
	if t.middleware != nil && t.middleware.ScrollDown != nil {
		t.middleware.ScrollDown(n, t.scrollDownInternal)
		return
	}
	t.scrollDownInternal(n)
}

func (t *Terminal) scrollDownInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active.ScrollDown(t.scrollTop, t.scrollBottom, t.leftMargin(), t.rightMargin(), n)
}

// Decaln fills the screen with the DECALN alignment pattern.
func (t *Terminal) Decaln() {
	if t.middleware != nil && t.middleware.Decaln != nil {
		t.middleware.Decaln(t.decalnInternal)
		return
	}
	t.decalnInternal()
}

func (t *Terminal) decalnInternal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active.FillAlignment()
}

// --- Margins ---

// SetScrollingRegion sets the DECSTBM vertical margins (1-based on the
// wire) and homes the cursor.
func (t *Terminal) SetScrollingRegion(top, bottom int) {
	if t.middleware != nil && t.middleware.SetScrollingRegion != nil {
		t.middleware.SetScrollingRegion(top, bottom, t.setScrollingRegionInternal)
		return
	}
	t.setScrollingRegionInternal(top, bottom)
}

func (t *Terminal) setScrollingRegionInternal(top, bottom int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	top--
	if top < 0 {
		top = 0
	}
	if bottom <= 0 || bottom > t.rows {
		bottom = t.rows
	}
	if top >= bottom {
		return
	}

	t.scrollTop = top
	t.scrollBottom = bottom

	if t.modes&ModeOrigin != 0 {
		t.cursor.Row = t.scrollTop
	} else {
		t.cursor.Row = 0
	}
	t.cursor.Col = t.leftMargin()
	t.cursor.PendingWrap = false
}

// --- Save/restore cursor ---

// SaveCursorPosition captures cursor, pen, origin mode, and charsets
// (DECSC).
func (t *Terminal) SaveCursorPosition() {
	if t.middleware != nil && t.middleware.SaveCursorPosition != nil {
		t.middleware.SaveCursorPosition(t.saveCursorPositionInternal)
		return
	}
	t.saveCursorPositionInternal()
}

func (t *Terminal) saveCursorPositionInternal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.saveCursorLocked()
}

func (t *Terminal) saveCursorLocked() {
	t.savedCursor = &SavedCursor{
		Row:          t.cursor.Row,
		Col:          t.cursor.Col,
		PendingWrap:  t.cursor.PendingWrap,
		Pen:          t.pen,
		OriginMode:   t.modes&ModeOrigin != 0,
		CharsetIndex: t.activeCharset,
		Charsets:     t.charsets,
	}
}

// RestoreCursorPosition restores the DECSC snapshot (DECRC). Without a
// prior save it is a no-op.
func (t *Terminal) RestoreCursorPosition() {
	if t.middleware != nil && t.middleware.RestoreCursorPosition != nil {
		t.middleware.RestoreCursorPosition(t.restoreCursorPositionInternal)
		return
	}
	t.restoreCursorPositionInternal()
}

func (t *Terminal) restoreCursorPositionInternal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.restoreCursorLocked()
}

func (t *Terminal) restoreCursorLocked() {
	saved := t.savedCursor
	if saved == nil {
		return
	}
	t.cursor.Row = clamp(saved.Row, 0, t.rows-1)
	t.cursor.Col = clamp(saved.Col, 0, t.cols-1)
	t.cursor.PendingWrap = saved.PendingWrap
	t.pen = saved.Pen
	if saved.OriginMode {
		t.modes |= ModeOrigin
	} else {
		t.modes &^= ModeOrigin
	}
	t.activeCharset = saved.CharsetIndex
	t.charsets = saved.Charsets
}

// --- Charsets ---

// ConfigureCharset designates a character set into one of G0..G3.
func (t *Terminal) ConfigureCharset(index ansicode.CharsetIndex, charset ansicode.Charset) {
	if t.middleware != nil && t.middleware.ConfigureCharset != nil {
		t.middleware.ConfigureCharset(index, charset, t.configureCharsetInternal)
		return
	}
	t.configureCharsetInternal(index, charset)
}

func (t *Terminal) configureCharsetInternal(index ansicode.CharsetIndex, charset ansicode.Charset) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if idx := CharsetIndex(index); idx >= CharsetIndexG0 && idx <= CharsetIndexG3 {
		t.charsets[idx] = Charset(charset)
	}
}

// SetActiveCharset invokes a designation slot as GL (SI/SO, LS2, LS3).
func (t *Terminal) SetActiveCharset(n int) {
	if t.middleware != nil && t.middleware.SetActiveCharset != nil {
		t.middleware.SetActiveCharset(n, t.setActiveCharsetInternal)
		return
	}
	t.setActiveCharsetInternal(n)
}

func (t *Terminal) setActiveCharsetInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n >= 0 && n < 4 {
		t.activeCharset = n
	}
}

// --- SGR / pen ---

// SetTerminalCharAttribute folds one SGR attribute into the pen.
func (t *Terminal) SetTerminalCharAttribute(attr ansicode.TerminalCharAttribute) {
	if t.middleware != nil && t.middleware.SetTerminalCharAttribute != nil {
		t.middleware.SetTerminalCharAttribute(attr, t.setTerminalCharAttributeInternal)
		return
	}
	t.setTerminalCharAttributeInternal(attr)
}

func (t *Terminal) setTerminalCharAttributeInternal(attr ansicode.TerminalCharAttribute) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch attr.Attr {
	case ansicode.CharAttributeReset:
		protected := t.pen.HasFlag(CellFlagProtected)
		t.pen = NewPen()
		if protected {
			// DECSCA protection is not an SGR attribute; SGR 0 leaves it.
			t.pen.SetFlag(CellFlagProtected)
		}

	case ansicode.CharAttributeBold:
		t.pen.SetFlag(CellFlagBold)
	case ansicode.CharAttributeDim:
		t.pen.SetFlag(CellFlagFaint)
	case ansicode.CharAttributeItalic:
		t.pen.SetFlag(CellFlagItalic)

	case ansicode.CharAttributeUnderline:
		t.pen.ClearFlag(CellUnderlineFlags)
		t.pen.SetFlag(CellFlagUnderline)
	case ansicode.CharAttributeDoubleUnderline:
		t.pen.ClearFlag(CellUnderlineFlags)
		t.pen.SetFlag(CellFlagDoubleUnderline)
	case ansicode.CharAttributeCurlyUnderline:
		t.pen.ClearFlag(CellUnderlineFlags)
		t.pen.SetFlag(CellFlagCurlyUnderline)
	case ansicode.CharAttributeDottedUnderline:
		t.pen.ClearFlag(CellUnderlineFlags)
		t.pen.SetFlag(CellFlagDottedUnderline)
	case ansicode.CharAttributeDashedUnderline:
		t.pen.ClearFlag(CellUnderlineFlags)
		t.pen.SetFlag(CellFlagDashedUnderline)

	case ansicode.CharAttributeBlinkSlow:
		t.pen.SetFlag(CellFlagBlinkSlow)
	case ansicode.CharAttributeBlinkFast:
		t.pen.SetFlag(CellFlagBlinkFast)
	case ansicode.CharAttributeReverse:
		t.pen.SetFlag(CellFlagInverse)
	case ansicode.CharAttributeHidden:
		t.pen.SetFlag(CellFlagInvisible)
	case ansicode.CharAttributeStrike:
		t.pen.SetFlag(CellFlagStrike)

	case ansicode.CharAttributeCancelBold:
		t.pen.ClearFlag(CellFlagBold)
	case ansicode.CharAttributeCancelBoldDim:
		t.pen.ClearFlag(CellFlagBold | CellFlagFaint)
	case ansicode.CharAttributeCancelItalic:
		t.pen.ClearFlag(CellFlagItalic)
	case ansicode.CharAttributeCancelUnderline:
		t.pen.ClearFlag(CellUnderlineFlags)
	case ansicode.CharAttributeCancelBlink:
		t.pen.ClearFlag(CellFlagBlinkSlow | CellFlagBlinkFast)
	case ansicode.CharAttributeCancelReverse:
		t.pen.ClearFlag(CellFlagInverse)
	case ansicode.CharAttributeCancelHidden:
		t.pen.ClearFlag(CellFlagInvisible)
	case ansicode.CharAttributeCancelStrike:
		t.pen.ClearFlag(CellFlagStrike)

	case ansicode.CharAttributeForeground:
		t.pen.Fg = attrColor(attr, NamedColorForeground)
	case ansicode.CharAttributeBackground:
		t.pen.Bg = attrColor(attr, NamedColorBackground)
	case ansicode.CharAttributeUnderlineColor:
		if attr.RGBColor == nil && attr.IndexedColor == nil && attr.NamedColor == nil {
			// SGR 59: underline color follows the foreground again.
			t.pen.UnderlineColor = nil
		} else {
			t.pen.UnderlineColor = attrColor(attr, NamedColorForeground)
		}
	}
}

// attrColor converts an SGR color parameter (24-bit, indexed, or named) to
// a cell color, falling back to the given semantic default.
func attrColor(attr ansicode.TerminalCharAttribute, fallback int) color.Color {
	switch {
	case attr.RGBColor != nil:
		return color.RGBA{R: attr.RGBColor.R, G: attr.RGBColor.G, B: attr.RGBColor.B, A: 255}
	case attr.IndexedColor != nil:
		return &IndexedColor{Index: int(attr.IndexedColor.Index)}
	case attr.NamedColor != nil:
		return &NamedColor{Name: int(*attr.NamedColor)}
	default:
		return &NamedColor{Name: fallback}
	}
}

// SetCharProtection arms or disarms DECSCA: while armed, printed cells
// carry the protection bit and survive selective erases.
func (t *Terminal) SetCharProtection(protect bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if protect {
		t.pen.SetFlag(CellFlagProtected)
	} else {
		t.pen.ClearFlag(CellFlagProtected)
	}
}

// --- Modes ---

// SetMode enables a terminal mode (SM / DECSET).
func (t *Terminal) SetMode(mode ansicode.TerminalMode) {
	if t.middleware != nil && t.middleware.SetMode != nil {
		t.middleware.SetMode(mode, t.setModeInternal)
		return
	}
	t.setModeInternal(mode)
}

func (t *Terminal) setModeInternal(mode ansicode.TerminalMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyModeLocked(mode, true)
}

// UnsetMode disables a terminal mode (RM / DECRST).
func (t *Terminal) UnsetMode(mode ansicode.TerminalMode) {
	if t.middleware != nil && t.middleware.UnsetMode != nil {
		t.middleware.UnsetMode(mode, t.unsetModeInternal)
		return
	}
	t.unsetModeInternal(mode)
}

func (t *Terminal) unsetModeInternal(mode ansicode.TerminalMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyModeLocked(mode, false)
}

// applyModeLocked maps a wire mode to the internal bit and performs its
// side effects. Unknown modes are ignored.
func (t *Terminal) applyModeLocked(mode ansicode.TerminalMode, set bool) {
	var m TerminalMode

	switch mode {
	case ansicode.TerminalModeCursorKeys:
		m = ModeCursorKeys
	case ansicode.TerminalModeColumnMode:
		m = ModeColumnMode
	case ansicode.TerminalModeInsert:
		m = ModeInsert
	case ansicode.TerminalModeOrigin:
		m = ModeOrigin
		if set {
			t.cursor.Row = t.scrollTop
			t.cursor.Col = t.leftMargin()
			t.cursor.PendingWrap = false
		}
	case ansicode.TerminalModeLineWrap:
		m = ModeLineWrap
	case ansicode.TerminalModeBlinkingCursor:
		m = ModeBlinkingCursor
	case ansicode.TerminalModeLineFeedNewLine:
		m = ModeLineFeedNewLine
	case ansicode.TerminalModeShowCursor:
		m = ModeShowCursor
		t.cursor.Visible = set
	case ansicode.TerminalModeReportMouseClicks:
		m = ModeReportMouseClicks
	case ansicode.TerminalModeReportCellMouseMotion:
		m = ModeReportCellMouseMotion
	case ansicode.TerminalModeReportAllMouseMotion:
		m = ModeReportAllMouseMotion
	case ansicode.TerminalModeReportFocusInOut:
		m = ModeReportFocusInOut
	case ansicode.TerminalModeUTF8Mouse:
		m = ModeUTF8Mouse
	case ansicode.TerminalModeSGRMouse:
		m = ModeSGRMouse
	case ansicode.TerminalModeAlternateScroll:
		m = ModeAlternateScroll
	case ansicode.TerminalModeUrgencyHints:
		m = ModeUrgencyHints
	case ansicode.TerminalModeSwapScreenAndSetRestoreCursor:
		m = ModeSwapScreenAndSetRestoreCursor
		t.switchScreenLocked(set)
	case ansicode.TerminalModeBracketedPaste:
		m = ModeBracketedPaste
	default:
		return
	}

	if set {
		t.modes |= m
	} else {
		t.modes &^= m
	}
}

// switchScreenLocked is the 1049 alt-screen transition: enter saves the
// cursor and clears the alternate screen; exit restores the primary screen
// and the saved cursor.
func (t *Terminal) switchScreenLocked(enter bool) {
	if enter {
		t.saveCursorLocked()
		t.active = t.alternate
		t.active.ClearAll()
		t.cursor.Row = 0
		t.cursor.Col = 0
		t.cursor.PendingWrap = false
	} else {
		t.active = t.primary
		t.restoreCursorLocked()
	}
}

// EnterAltScreen switches to the alternate screen with the requested
// 47/1047/1049 semantics: saveCursor captures state for the matching exit,
// clear blanks the alternate screen on the way in.
func (t *Terminal) EnterAltScreen(saveCursor, clear bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if saveCursor {
		t.saveCursorLocked()
	}
	t.active = t.alternate
	if clear {
		t.active.ClearAll()
		t.cursor.Row = 0
		t.cursor.Col = 0
	}
	t.cursor.PendingWrap = false
	t.modes |= ModeSwapScreenAndSetRestoreCursor
}

// ExitAltScreen returns to the primary screen, optionally restoring the
// cursor saved on enter.
func (t *Terminal) ExitAltScreen(restoreCursor bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active = t.primary
	if restoreCursor {
		t.restoreCursorLocked()
	}
	t.cursor.PendingWrap = false
	t.modes &^= ModeSwapScreenAndSetRestoreCursor
}

// SetKeypadApplicationMode enables application keypad encoding (DECKPAM).
func (t *Terminal) SetKeypadApplicationMode() {
	if t.middleware != nil && t.middleware.SetKeypadApplicationMode != nil {
		t.middleware.SetKeypadApplicationMode(t.setKeypadApplicationModeInternal)
		return
	}
	t.setKeypadApplicationModeInternal()
}

func (t *Terminal) setKeypadApplicationModeInternal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modes |= ModeKeypadApplication
}

// UnsetKeypadApplicationMode restores numeric keypad encoding (DECKPNM).
func (t *Terminal) UnsetKeypadApplicationMode() {
	if t.middleware != nil && t.middleware.UnsetKeypadApplicationMode != nil {
		t.middleware.UnsetKeypadApplicationMode(t.unsetKeypadApplicationModeInternal)
		return
	}
	t.unsetKeypadApplicationModeInternal()
}

func (t *Terminal) unsetKeypadApplicationModeInternal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modes &^= ModeKeypadApplication
}

// --- Keyboard protocol ---

// SetKeyboardMode rewrites the top of the keyboard-mode stack with the
// given combination behavior.
func (t *Terminal) SetKeyboardMode(mode ansicode.KeyboardMode, behavior ansicode.KeyboardModeBehavior) {
	if t.middleware != nil && t.middleware.SetKeyboardMode != nil {
		t.middleware.SetKeyboardMode(mode, behavior, t.setKeyboardModeInternal)
		return
	}
	t.setKeyboardModeInternal(mode, behavior)
}

func (t *Terminal) setKeyboardModeInternal(mode ansicode.KeyboardMode, behavior ansicode.KeyboardModeBehavior) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := ansicode.KeyboardModeNoMode
	if n := len(t.keyboardModes); n > 0 {
		current = t.keyboardModes[n-1]
	}

	next := current
	switch behavior {
	case ansicode.KeyboardModeBehaviorReplace:
		next = mode
	case ansicode.KeyboardModeBehaviorUnion:
		next = current | mode
	case ansicode.KeyboardModeBehaviorDifference:
		next = current &^ mode
	}

	if n := len(t.keyboardModes); n > 0 {
		t.keyboardModes[n-1] = next
	} else {
		t.keyboardModes = append(t.keyboardModes, next)
	}
}

// PushKeyboardMode pushes onto the keyboard-mode stack.
func (t *Terminal) PushKeyboardMode(mode ansicode.KeyboardMode) {
	if t.middleware != nil && t.middleware.PushKeyboardMode != nil {
		t.middleware.PushKeyboardMode(mode, t.pushKeyboardModeInternal)
		return
	}
	t.pushKeyboardModeInternal(mode)
}

func (t *Terminal) pushKeyboardModeInternal(mode ansicode.KeyboardMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keyboardModes = append(t.keyboardModes, mode)
}

// PopKeyboardMode pops n entries off the keyboard-mode stack.
func (t *Terminal) PopKeyboardMode(n int) {
	if t.middleware != nil && t.middleware.PopKeyboardMode != nil {
		t.middleware.PopKeyboardMode(n, t.popKeyboardModeInternal)
		return
	}
	t.popKeyboardModeInternal(n)
}

func (t *Terminal) popKeyboardModeInternal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := 0; i < n && len(t.keyboardModes) > 0; i++ {
		t.keyboardModes = t.keyboardModes[:len(t.keyboardModes)-1]
	}
}

// ReportKeyboardMode answers the keyboard-mode query.
func (t *Terminal) ReportKeyboardMode() {
	if t.middleware != nil && t.middleware.ReportKeyboardMode != nil {
		t.middleware.ReportKeyboardMode(t.reportKeyboardModeInternal)
		return
	}
	t.reportKeyboardModeInternal()
}

func (t *Terminal) reportKeyboardModeInternal() {
	t.mu.RLock()
	var mode ansicode.KeyboardMode
	if n := len(t.keyboardModes); n > 0 {
		mode = t.keyboardModes[n-1]
	}
	t.mu.RUnlock()

	t.writeResponseString(fmt.Sprintf("\x1b[?%du", mode))
}

// SetModifyOtherKeys selects the modifyOtherKeys reporting level.
func (t *Terminal) SetModifyOtherKeys(modify ansicode.ModifyOtherKeys) {
	if t.middleware != nil && t.middleware.SetModifyOtherKeys != nil {
		t.middleware.SetModifyOtherKeys(modify, t.setModifyOtherKeysInternal)
		return
	}
	t.setModifyOtherKeysInternal(modify)
}

func (t *Terminal) setModifyOtherKeysInternal(modify ansicode.ModifyOtherKeys) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modifyOtherKeys = modify
}

// ReportModifyOtherKeys answers the modifyOtherKeys query.
func (t *Terminal) ReportModifyOtherKeys() {
	if t.middleware != nil && t.middleware.ReportModifyOtherKeys != nil {
		t.middleware.ReportModifyOtherKeys(t.reportModifyOtherKeysInternal)
		return
	}
	t.reportModifyOtherKeysInternal()
}

func (t *Terminal) reportModifyOtherKeysInternal() {
	t.mu.RLock()
	modify := t.modifyOtherKeys
	t.mu.RUnlock()

	t.writeResponseString(fmt.Sprintf("\x1b[>4;%dm", modify))
}

// --- Reports ---

// DeviceStatus answers DSR: operating status (5) or cursor position (6).
func (t *Terminal) DeviceStatus(n int) {
	if t.middleware != nil && t.middleware.DeviceStatus != nil {
		t.middleware.DeviceStatus(n, t.deviceStatusInternal)
		return
	}
	t.deviceStatusInternal(n)
}

func (t *Terminal) deviceStatusInternal(n int) {
	t.mu.RLock()
	row, col := t.cursor.Row, t.cursor.Col
	if t.modes&ModeOrigin != 0 {
		row -= t.scrollTop
	}
	t.mu.RUnlock()

	switch n {
	case 5:
		t.writeResponseString("\x1b[0n")
	case 6:
		t.writeResponseString(fmt.Sprintf("\x1b[%d;%dR", row+1, col+1))
	}
}

// IdentifyTerminal answers DA with a VT220-class identity.
func (t *Terminal) IdentifyTerminal(b byte) {
	if t.middleware != nil && t.middleware.IdentifyTerminal != nil {
		t.middleware.IdentifyTerminal(b, t.identifyTerminalInternal)
		return
	}
	t.identifyTerminalInternal(b)
}

func (t *Terminal) identifyTerminalInternal(b byte) {
	t.writeResponseString("\x1b[?62;c")
}

// ReportVersion answers XTVERSION with the implementation name.
func (t *Terminal) ReportVersion() {
	t.writeResponseString("\x1bP>|term(1.0)\x1b\\")
}

// ReportSetting answers DECRQSS for the settings this terminal models:
// DECSTBM ("r"), DECSLRM ("s"), SGR ("m"), and DECSCUSR (" q"). SGR is
// always reported as "0m"; the current pen attributes are not encoded.
// Unknown requests get the invalid-request reply.
func (t *Terminal) ReportSetting(request string) {
	t.mu.RLock()
	var payload string
	switch request {
	case "r":
		payload = fmt.Sprintf("%d;%dr", t.scrollTop+1, t.scrollBottom)
	case "s":
		payload = fmt.Sprintf("%d;%ds", t.scrollLeft+1, t.scrollRight)
	case " q":
		payload = fmt.Sprintf("%d q", int(t.cursor.Style)+1)
	case "m":
		payload = "0m"
	}
	t.mu.RUnlock()

	if payload == "" {
		t.writeResponseString("\x1bP0$r\x1b\\")
		return
	}
	t.writeResponseString("\x1bP1$r" + payload + "\x1b\\")
}

// TextAreaSizeChars answers XTWINOPS 18: the text area size in cells.
func (t *Terminal) TextAreaSizeChars() {
	if t.middleware != nil && t.middleware.TextAreaSizeChars != nil {
		t.middleware.TextAreaSizeChars(t.textAreaSizeCharsInternal)
		return
	}
	t.textAreaSizeCharsInternal()
}

func (t *Terminal) textAreaSizeCharsInternal() {
	t.mu.RLock()
	rows, cols := t.rows, t.cols
	t.mu.RUnlock()

	t.writeResponseString(fmt.Sprintf("\x1b[8;%d;%dt", rows, cols))
}

// TextAreaSizePixels answers XTWINOPS 14: the text area size in pixels,
// derived from the size provider's cell metrics.
func (t *Terminal) TextAreaSizePixels() {
	if t.middleware != nil && t.middleware.TextAreaSizePixels != nil {
		t.middleware.TextAreaSizePixels(t.textAreaSizePixelsInternal)
		return
	}
	t.textAreaSizePixelsInternal()
}

func (t *Terminal) textAreaSizePixelsInternal() {
	t.mu.RLock()
	rows, cols := t.rows, t.cols
	t.mu.RUnlock()

	cellW, cellH := t.cellSizePixels()
	t.writeResponseString(fmt.Sprintf("\x1b[4;%d;%dt", rows*cellH, cols*cellW))
}

// CellSizePixels answers XTWINOPS 16: one cell's size in pixels.
func (t *Terminal) CellSizePixels() {
	cellW, cellH := t.cellSizePixels()
	t.writeResponseString(fmt.Sprintf("\x1b[6;%d;%dt", cellH, cellW))
}

// cellSizePixels returns the cell metrics from the size provider, with a
// 10x20 fallback for headless use.
func (t *Terminal) cellSizePixels() (width, height int) {
	t.mu.RLock()
	p := t.sizeProvider
	t.mu.RUnlock()

	if p != nil {
		if w, h := p.CellSizePixels(); w > 0 && h > 0 {
			return w, h
		}
	}
	return 10, 20
}

// --- Title ---

// SetTitle updates the window title (OSC 0/2).
func (t *Terminal) SetTitle(title string) {
	if t.middleware != nil && t.middleware.SetTitle != nil {
		t.middleware.SetTitle(title, t.setTitleInternal)
		return
	}
	t.setTitleInternal(title)
}

func (t *Terminal) setTitleInternal(title string) {
	t.mu.Lock()
	t.title = title
	provider := t.titleProvider
	t.mu.Unlock()

	if provider != nil {
		provider.SetTitle(title)
	}
}

// PushTitle saves the title onto the XTWINOPS title stack.
func (t *Terminal) PushTitle() {
	if t.middleware != nil && t.middleware.PushTitle != nil {
		t.middleware.PushTitle(t.pushTitleInternal)
		return
	}
	t.pushTitleInternal()
}

func (t *Terminal) pushTitleInternal() {
	t.mu.Lock()
	t.titleStack = append(t.titleStack, t.title)
	provider := t.titleProvider
	t.mu.Unlock()

	if provider != nil {
		provider.PushTitle()
	}
}

// PopTitle restores the title from the XTWINOPS title stack.
func (t *Terminal) PopTitle() {
	if t.middleware != nil && t.middleware.PopTitle != nil {
		t.middleware.PopTitle(t.popTitleInternal)
		return
	}
	t.popTitleInternal()
}

func (t *Terminal) popTitleInternal() {
	t.mu.Lock()
	if n := len(t.titleStack); n > 0 {
		t.title = t.titleStack[n-1]
		t.titleStack = t.titleStack[:n-1]
	}
	provider := t.titleProvider
	t.mu.Unlock()

	if provider != nil {
		provider.PopTitle()
	}
}

// --- Colors ---

// SetColor installs a palette override (OSC 4).
func (t *Terminal) SetColor(index int, c color.Color) {
	if t.middleware != nil && t.middleware.SetColor != nil {
		t.middleware.SetColor(index, c, t.setColorInternal)
		return
	}
	t.setColorInternal(index, c)
}

func (t *Terminal) setColorInternal(index int, c color.Color) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.colors[index] = c
}

// ResetColor drops a palette override (OSC 104).
func (t *Terminal) ResetColor(i int) {
	if t.middleware != nil && t.middleware.ResetColor != nil {
		t.middleware.ResetColor(i, t.resetColorInternal)
		return
	}
	t.resetColorInternal(i)
}

func (t *Terminal) resetColorInternal(i int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.colors, i)
}

// SetDynamicColor answers an OSC 10/11/12 color query with the current
// value of the requested color.
func (t *Terminal) SetDynamicColor(prefix string, index int, terminator string) {
	if t.middleware != nil && t.middleware.SetDynamicColor != nil {
		t.middleware.SetDynamicColor(prefix, index, terminator, t.setDynamicColorInternal)
		return
	}
	t.setDynamicColorInternal(prefix, index, terminator)
}

func (t *Terminal) setDynamicColorInternal(prefix string, index int, terminator string) {
	t.mu.RLock()
	c, ok := t.colors[index]
	t.mu.RUnlock()

	var rgba color.RGBA
	switch {
	case ok:
		rgba = resolveDefaultColor(c, true)
	case index >= 0 && index < 256:
		rgba = DefaultPalette[index]
	case index >= NamedColorForeground && index <= NamedColorCursor:
		rgba = resolveNamedColor(index, true)
	default:
		return
	}
	t.writeResponseString(fmt.Sprintf("\x1b]%s;rgb:%02x/%02x/%02x%s", prefix, rgba.R, rgba.G, rgba.B, terminator))
}

// --- Hyperlinks ---

// SetHyperlink starts or ends an OSC 8 hyperlink run.
func (t *Terminal) SetHyperlink(hyperlink *ansicode.Hyperlink) {
	if t.middleware != nil && t.middleware.SetHyperlink != nil {
		t.middleware.SetHyperlink(hyperlink, t.setHyperlinkInternal)
		return
	}
	t.setHyperlinkInternal(hyperlink)
}

func (t *Terminal) setHyperlinkInternal(hyperlink *ansicode.Hyperlink) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if hyperlink == nil {
		t.currentHyperlink = nil
		return
	}
	t.currentHyperlink = &Hyperlink{ID: hyperlink.ID, URI: hyperlink.URI}
}

// --- Clipboard (OSC 52) ---

// ClipboardLoad answers a clipboard read request with base64 content from
// the provider.
func (t *Terminal) ClipboardLoad(clipboard byte, terminator string) {
	if t.middleware != nil && t.middleware.ClipboardLoad != nil {
		t.middleware.ClipboardLoad(clipboard, terminator, t.clipboardLoadInternal)
		return
	}
	t.clipboardLoadInternal(clipboard, terminator)
}

func (t *Terminal) clipboardLoadInternal(clipboard byte, terminator string) {
	t.mu.RLock()
	provider := t.clipboardProvider
	t.mu.RUnlock()

	if provider == nil {
		return
	}
	content := provider.Read(clipboard)
	if content == "" {
		return
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	t.writeResponseString("\x1b]52;" + string(clipboard) + ";" + encoded + terminator)
}

// ClipboardStore writes to the clipboard, subject to the write policy.
// Denied writes are dropped silently, with no error response.
func (t *Terminal) ClipboardStore(clipboard byte, data []byte) {
	if t.middleware != nil && t.middleware.ClipboardStore != nil {
		t.middleware.ClipboardStore(clipboard, data, t.clipboardStoreInternal)
		return
	}
	t.clipboardStoreInternal(clipboard, data)
}

func (t *Terminal) clipboardStoreInternal(clipboard byte, data []byte) {
	t.mu.RLock()
	provider := t.clipboardProvider
	allowed := t.clipboardWriteAllowed
	t.mu.RUnlock()

	if !allowed || provider == nil {
		return
	}
	provider.Write(clipboard, data)
}

// --- Cursor style ---

// SetCursorStyle applies DECSCUSR.
func (t *Terminal) SetCursorStyle(style ansicode.CursorStyle) {
	if t.middleware != nil && t.middleware.SetCursorStyle != nil {
		t.middleware.SetCursorStyle(style, t.setCursorStyleInternal)
		return
	}
	t.setCursorStyleInternal(style)
}

func (t *Terminal) setCursorStyleInternal(style ansicode.CursorStyle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursor.Style = CursorStyle(style)
}

// --- Reset ---

// ResetState is DECSTR/RIS: clear the screen, home the cursor, reset pen,
// modes, margins, charsets, palette overrides, and keyboard stacks.
func (t *Terminal) ResetState() {
	if t.middleware != nil && t.middleware.ResetState != nil {
		t.middleware.ResetState(t.resetStateInternal)
		return
	}
	t.resetStateInternal()
}

func (t *Terminal) resetStateInternal() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active.ClearAll()
	t.cursor.Row = 0
	t.cursor.Col = 0
	t.cursor.PendingWrap = false
	t.cursor.Visible = true
	t.cursor.Style = CursorStyleBlinkingBlock

	t.pen = NewPen()
	t.lastGlyph = 0
	t.scrollTop = 0
	t.scrollBottom = t.rows
	t.scrollLeft = 0
	t.scrollRight = t.cols
	t.modes = ModeLineWrap | ModeShowCursor

	t.charsets = [4]Charset{}
	t.activeCharset = 0

	t.colors = make(map[int]color.Color)
	t.keyboardModes = t.keyboardModes[:0]
	t.currentHyperlink = nil
	t.savedCursor = nil
}

// --- String payloads (APC / PM / SOS) ---

// ApplicationCommandReceived routes APC payloads: Kitty graphics are
// consumed here, everything else goes to the APC provider.
func (t *Terminal) ApplicationCommandReceived(data []byte) {
	if t.middleware != nil && t.middleware.ApplicationCommandReceived != nil {
		t.middleware.ApplicationCommandReceived(data, t.applicationCommandReceivedInternal)
		return
	}
	t.applicationCommandReceivedInternal(data)
}

func (t *Terminal) applicationCommandReceivedInternal(data []byte) {
	if len(data) > 0 && data[0] == 'G' && t.kittyEnabled {
		t.handleKittyGraphics(data)
		return
	}
	if t.apcProvider != nil {
		t.apcProvider.Receive(data)
	}
}

// PrivacyMessageReceived forwards PM payloads to the provider.
func (t *Terminal) PrivacyMessageReceived(data []byte) {
	if t.middleware != nil && t.middleware.PrivacyMessageReceived != nil {
		t.middleware.PrivacyMessageReceived(data, t.privacyMessageReceivedInternal)
		return
	}
	t.privacyMessageReceivedInternal(data)
}

func (t *Terminal) privacyMessageReceivedInternal(data []byte) {
	if t.pmProvider != nil {
		t.pmProvider.Receive(data)
	}
}

// StartOfStringReceived forwards SOS payloads to the provider.
func (t *Terminal) StartOfStringReceived(data []byte) {
	if t.middleware != nil && t.middleware.StartOfStringReceived != nil {
		t.middleware.StartOfStringReceived(data, t.startOfStringReceivedInternal)
		return
	}
	t.startOfStringReceivedInternal(data)
}

func (t *Terminal) startOfStringReceivedInternal(data []byte) {
	if t.sosProvider != nil {
		t.sosProvider.Receive(data)
	}
}

// --- Working directory (OSC 7) ---

// SetWorkingDirectory records the shell-reported working directory URI.
func (t *Terminal) SetWorkingDirectory(uri string) {
	if t.middleware != nil && t.middleware.SetWorkingDirectory != nil {
		t.middleware.SetWorkingDirectory(uri, t.setWorkingDirectoryInternal)
		return
	}
	t.setWorkingDirectoryInternal(uri)
}

func (t *Terminal) setWorkingDirectoryInternal(uri string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.workingDir = uri
}

// WorkingDirectory returns the last OSC 7 URI.
func (t *Terminal) WorkingDirectory() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.workingDir
}

// WorkingDirectoryPath extracts the path component of the OSC 7
// file://host/path URI, or "" when none was reported.
func (t *Terminal) WorkingDirectoryPath() string {
	t.mu.RLock()
	uri := t.workingDir
	t.mu.RUnlock()

	const scheme = "file://"
	if len(uri) <= len(scheme) || uri[:len(scheme)] != scheme {
		return ""
	}
	rest := uri[len(scheme):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[i:]
		}
	}
	return ""
}
