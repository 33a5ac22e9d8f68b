package term

import (
	"github.com/danielgatis/go-ansicode"
)

// Shell integration is the OSC 133 semantic-prompt protocol: shells mark
// where prompts begin, where commands start executing, and how they ended.
// The terminal records the marks against absolute rows (scrollback offset
// included) so a surface can jump between prompts and scrape the output of
// the last command.

// PromptMark is one recorded OSC 133 mark.
type PromptMark struct {
	// Type distinguishes prompt start, command start, command executed,
	// and command finished.
	Type ansicode.ShellIntegrationMark
	// Row is the absolute row at the time the mark arrived: the number of
	// history lines plus the cursor row.
	Row int
	// ExitCode is meaningful only on command-finished marks; -1 otherwise.
	ExitCode int
}

// ShellIntegrationProvider observes marks as they arrive.
type ShellIntegrationProvider interface {
	OnMark(mark ansicode.ShellIntegrationMark, exitCode int)
}

// NoopShellIntegration ignores marks.
type NoopShellIntegration struct{}

func (NoopShellIntegration) OnMark(mark ansicode.ShellIntegrationMark, exitCode int) {}

var _ ShellIntegrationProvider = NoopShellIntegration{}

// ShellIntegrationMark records an OSC 133 mark at the cursor's absolute
// row and forwards it to the provider.
func (t *Terminal) ShellIntegrationMark(mark ansicode.ShellIntegrationMark, exitCode int) {
	if t.middleware != nil && t.middleware.ShellIntegrationMark != nil {
		t.middleware.ShellIntegrationMark(mark, exitCode, t.shellIntegrationMarkInternal)
		return
	}
	t.shellIntegrationMarkInternal(mark, exitCode)
}

func (t *Terminal) shellIntegrationMarkInternal(mark ansicode.ShellIntegrationMark, exitCode int) {
	t.mu.Lock()

	absRow := t.cursor.Row + t.primary.ScrollbackLen()
	t.promptMarks = append(t.promptMarks, PromptMark{
		Type:     mark,
		Row:      absRow,
		ExitCode: exitCode,
	})
	provider := t.shellIntegrationProvider
	t.mu.Unlock()

	if provider != nil {
		provider.OnMark(mark, exitCode)
	}
}

// PromptMarks returns a copy of every recorded mark, oldest first.
func (t *Terminal) PromptMarks() []PromptMark {
	t.mu.RLock()
	defer t.mu.RUnlock()

	marks := make([]PromptMark, len(t.promptMarks))
	copy(marks, t.promptMarks)
	return marks
}

// PromptMarkCount returns the number of recorded marks.
func (t *Terminal) PromptMarkCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.promptMarks)
}

// ClearPromptMarks forgets every mark.
func (t *Terminal) ClearPromptMarks() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.promptMarks = nil
}

// NextPromptRow returns the absolute row of the first mark after
// currentAbsRow, filtered to markType unless markType is -1. Returns -1
// when there is none.
func (t *Terminal) NextPromptRow(currentAbsRow int, markType ansicode.ShellIntegrationMark) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, mark := range t.promptMarks {
		if mark.Row > currentAbsRow && (markType == -1 || mark.Type == markType) {
			return mark.Row
		}
	}
	return -1
}

// PrevPromptRow returns the absolute row of the last mark before
// currentAbsRow, filtered to markType unless markType is -1. Returns -1
// when there is none.
func (t *Terminal) PrevPromptRow(currentAbsRow int, markType ansicode.ShellIntegrationMark) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := len(t.promptMarks) - 1; i >= 0; i-- {
		mark := t.promptMarks[i]
		if mark.Row < currentAbsRow && (markType == -1 || mark.Type == markType) {
			return mark.Row
		}
	}
	return -1
}

// JumpToPrompt resolves a jump-by-N-prompts navigation request against the
// prompt-start marks: n < 0 walks backward from fromAbsRow, n > 0 forward.
// Returns the destination absolute row, or -1 when the walk runs out of
// marks.
func (t *Terminal) JumpToPrompt(fromAbsRow, n int) int {
	row := fromAbsRow
	for n < 0 {
		prev := t.PrevPromptRow(row, ansicode.PromptStart)
		if prev < 0 {
			return -1
		}
		row = prev
		n++
	}
	for n > 0 {
		next := t.NextPromptRow(row, ansicode.PromptStart)
		if next < 0 {
			return -1
		}
		row = next
		n--
	}
	return row
}

// GetPromptMarkAt returns the mark recorded at absRow, or nil.
func (t *Terminal) GetPromptMarkAt(absRow int) *PromptMark {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := range t.promptMarks {
		if t.promptMarks[i].Row == absRow {
			mark := t.promptMarks[i]
			return &mark
		}
	}
	return nil
}

// SetShellIntegrationProvider replaces the mark observer.
func (t *Terminal) SetShellIntegrationProvider(p ShellIntegrationProvider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shellIntegrationProvider = p
}

// ShellIntegrationProviderValue returns the mark observer.
func (t *Terminal) ShellIntegrationProviderValue() ShellIntegrationProvider {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.shellIntegrationProvider
}

// GetLastCommandOutput scrapes the text between the most recent
// command-executed mark and its matching command-finished mark, spanning
// scrollback and the visible screen. Returns "" without a complete pair.
func (t *Terminal) GetLastCommandOutput() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var executed, finished *PromptMark
	for i := len(t.promptMarks) - 1; i >= 0; i-- {
		mark := &t.promptMarks[i]
		if finished == nil && mark.Type == ansicode.CommandFinished {
			finished = mark
		}
		if executed == nil && mark.Type == ansicode.CommandExecuted {
			executed = mark
		}
		if executed != nil && finished != nil {
			if executed.Row < finished.Row {
				break
			}
			// Mismatched pair (a finish from an earlier command); keep
			// looking further back.
			executed, finished = nil, nil
		}
	}
	if executed == nil || finished == nil {
		return ""
	}
	return t.textBetweenAbsRows(executed.Row, finished.Row)
}

// textBetweenAbsRows joins rows [startRow, endRow) of the combined
// scrollback + visible area, trimming trailing blank lines. Caller holds
// t.mu.
func (t *Terminal) textBetweenAbsRows(startRow, endRow int) string {
	historyLen := t.primary.ScrollbackLen()

	var lines []string
	for absRow := startRow; absRow < endRow; absRow++ {
		switch {
		case absRow < historyLen:
			lines = append(lines, cellsToText(t.primary.ScrollbackLine(absRow)))
		case absRow-historyLen < t.rows:
			lines = append(lines, t.active.LineContent(absRow-historyLen))
		default:
			lines = append(lines, "")
		}
	}

	last := -1
	for i, line := range lines {
		if line != "" {
			last = i
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

// cellsToText renders a detached row (a scrollback line) as trimmed text.
func cellsToText(cells []Cell) string {
	last := -1
	for i := len(cells) - 1; i >= 0; i-- {
		if cells[i].Char != ' ' && cells[i].Char != 0 && !cells[i].IsSpacer() {
			last = i
			break
		}
	}
	if last < 0 {
		return ""
	}

	runes := make([]rune, 0, last+1)
	for i := 0; i <= last; i++ {
		cell := &cells[i]
		if cell.IsSpacer() {
			continue
		}
		if cell.Char == 0 {
			runes = append(runes, ' ')
		} else {
			runes = append(runes, cell.Char)
		}
	}
	return string(runes)
}
