package term

import (
	"testing"

	"github.com/danielgatis/go-ansicode"
)

type markCollector struct {
	marks []PromptMark
}

func (m *markCollector) OnMark(mark ansicode.ShellIntegrationMark, exitCode int) {
	m.marks = append(m.marks, PromptMark{Type: mark, ExitCode: exitCode})
}

func TestPromptMarksRecordedThroughWrite(t *testing.T) {
	collector := &markCollector{}
	term := New(WithShellIntegration(collector))

	term.WriteString("\x1b]133;A\x07$ ls\r\n")
	term.WriteString("\x1b]133;C\x07file1\r\nfile2\r\n")
	term.WriteString("\x1b]133;D;0\x07")

	if n := term.PromptMarkCount(); n != 3 {
		t.Fatalf("mark count = %d, want 3", n)
	}
	marks := term.PromptMarks()
	if marks[0].Type != ansicode.PromptStart {
		t.Errorf("mark 0 type = %v, want prompt start", marks[0].Type)
	}
	if marks[2].Type != ansicode.CommandFinished || marks[2].ExitCode != 0 {
		t.Errorf("mark 2 = %+v, want finished with exit 0", marks[2])
	}
	if len(collector.marks) != 3 {
		t.Errorf("provider saw %d marks, want 3", len(collector.marks))
	}
}

func TestPromptMarkExitCode(t *testing.T) {
	term := New()
	term.WriteString("\x1b]133;D;127\x07")

	marks := term.PromptMarks()
	if len(marks) != 1 || marks[0].ExitCode != 127 {
		t.Errorf("marks = %+v, want one with exit 127", marks)
	}
}

func TestPromptNavigation(t *testing.T) {
	term := New(WithSize(10, 20))
	term.WriteString("\x1b]133;A\x07$ one\r\n")
	term.WriteString("out\r\n")
	term.WriteString("\x1b]133;A\x07$ two\r\n")
	term.WriteString("\x1b]133;A\x07$ three")

	marks := term.PromptMarks()
	if len(marks) != 3 {
		t.Fatalf("want 3 prompt marks, got %d", len(marks))
	}

	second := marks[1].Row
	if got := term.PrevPromptRow(second, ansicode.PromptStart); got != marks[0].Row {
		t.Errorf("prev from second = %d, want %d", got, marks[0].Row)
	}
	if got := term.NextPromptRow(second, ansicode.PromptStart); got != marks[2].Row {
		t.Errorf("next from second = %d, want %d", got, marks[2].Row)
	}
	if got := term.PrevPromptRow(marks[0].Row, -1); got != -1 {
		t.Errorf("prev before the first mark = %d, want -1", got)
	}
}

func TestJumpToPromptWalksMarks(t *testing.T) {
	term := New(WithSize(10, 20))
	term.WriteString("\x1b]133;A\x07a\r\n\r\n")
	term.WriteString("\x1b]133;A\x07b\r\n\r\n")
	term.WriteString("\x1b]133;A\x07c")

	marks := term.PromptMarks()
	cur := marks[2].Row

	if got := term.JumpToPrompt(cur, -2); got != marks[0].Row {
		t.Errorf("jump -2 = %d, want %d", got, marks[0].Row)
	}
	if got := term.JumpToPrompt(marks[0].Row, 1); got != marks[1].Row {
		t.Errorf("jump +1 = %d, want %d", got, marks[1].Row)
	}
	if got := term.JumpToPrompt(marks[0].Row, -1); got != -1 {
		t.Errorf("jump past the oldest mark = %d, want -1", got)
	}
}

func TestGetPromptMarkAt(t *testing.T) {
	term := New()
	term.WriteString("\x1b]133;A\x07")

	row := term.PromptMarks()[0].Row
	if mark := term.GetPromptMarkAt(row); mark == nil || mark.Type != ansicode.PromptStart {
		t.Errorf("mark at %d = %+v", row, mark)
	}
	if term.GetPromptMarkAt(row+5) != nil {
		t.Error("expected nil for a row with no mark")
	}
}

func TestGetLastCommandOutput(t *testing.T) {
	term := New(WithSize(10, 30))
	term.WriteString("$ ls\r\n")
	term.WriteString("\x1b]133;C\x07")
	term.WriteString("file1\r\nfile2\r\n")
	term.WriteString("\x1b]133;D;0\x07")

	got := term.GetLastCommandOutput()
	if got != "file1\nfile2" {
		t.Errorf("last command output = %q, want %q", got, "file1\nfile2")
	}
}

func TestGetLastCommandOutputIncompletePair(t *testing.T) {
	term := New()
	term.WriteString("\x1b]133;C\x07still running")
	if got := term.GetLastCommandOutput(); got != "" {
		t.Errorf("output without a finish mark = %q, want empty", got)
	}
}

func TestClearPromptMarks(t *testing.T) {
	term := New()
	term.WriteString("\x1b]133;A\x07\x1b]133;C\x07")
	term.ClearPromptMarks()
	if term.PromptMarkCount() != 0 {
		t.Error("expected no marks after clear")
	}
}

func TestMarksSpanScrollback(t *testing.T) {
	term := New(WithSize(3, 20), WithScrollback(NewMemoryScrollback(100)))
	term.WriteString("\x1b]133;A\x07$ first\r\n")
	term.WriteString("a\r\nb\r\nc\r\nd\r\n") // scrolls the prompt into history
	term.WriteString("\x1b]133;A\x07$ second")

	marks := term.PromptMarks()
	if len(marks) != 2 {
		t.Fatalf("want 2 marks, got %d", len(marks))
	}
	if marks[1].Row <= marks[0].Row {
		t.Errorf("absolute rows must grow across scrolling: %d then %d", marks[0].Row, marks[1].Row)
	}
}
