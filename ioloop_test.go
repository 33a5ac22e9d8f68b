package term

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"
)

// fakePty is an in-memory Pty double: reads come from an io.Pipe the test
// feeds, writes accumulate in a mutex-guarded buffer the test can inspect.
type fakePty struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu          sync.Mutex
	written     bytes.Buffer
	lastResize  [4]int
	resizeCalls int
	closed      bool
}

func newFakePty() *fakePty {
	r, w := io.Pipe()
	return &fakePty{r: r, w: w}
}

func (p *fakePty) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *fakePty) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakePty) Resize(rows, cols, pixelW, pixelH int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resizeCalls++
	p.lastResize = [4]int{rows, cols, pixelW, pixelH}
	return nil
}

func (p *fakePty) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.w.Close()
}

// feed writes b into the pipe the loop reads from, simulating child output.
func (p *fakePty) feed(b []byte) { p.w.Write(b) }

func (p *fakePty) writtenString() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

const eventuallyTimeout = 2 * time.Second

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(eventuallyTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition was not satisfied before timeout")
	}
}

func TestIOLoopFeedsPtyBytesToTerminal(t *testing.T) {
	term := New()
	pty := newFakePty()

	woke := make(chan struct{}, 8)
	loop := NewIOLoop(pty, term, func() { woke <- struct{}{} }, nil)

	go loop.Run()
	defer loop.Stop()

	pty.feed([]byte("hello"))

	select {
	case <-woke:
	case <-time.After(eventuallyTimeout):
		t.Fatal("expected a renderer wakeup after pty bytes were parsed")
	}

	eventually(t, func() bool {
		cell := term.Cell(0, 0)
		return cell != nil && cell.Char == 'h'
	})
}

func TestIOLoopPostWriteSmallReachesPty(t *testing.T) {
	term := New()
	pty := newFakePty()
	loop := NewIOLoop(pty, term, nil, nil)
	go loop.Run()
	defer loop.Stop()

	msg := WriteSmallMessage{Len: 2}
	copy(msg.Inline[:], "hi")
	if err := loop.Post(msg); err != nil {
		t.Fatalf("unexpected error posting message: %v", err)
	}

	eventually(t, func() bool { return pty.writtenString() == "hi" })
}

func TestIOLoopPostResizePropagatesToPtyAndTerminal(t *testing.T) {
	term := New()
	pty := newFakePty()
	loop := NewIOLoop(pty, term, nil, nil)
	go loop.Run()
	defer loop.Stop()

	if err := loop.Post(ResizeMessage{Rows: 40, Cols: 100, PixelW: 800, PixelH: 600}); err != nil {
		t.Fatalf("unexpected error posting resize: %v", err)
	}

	eventually(t, func() bool {
		pty.mu.Lock()
		defer pty.mu.Unlock()
		return pty.resizeCalls == 1
	})
	if term.Rows() != 40 || term.Cols() != 100 {
		t.Errorf("expected terminal resized to 40x100, got %dx%d", term.Rows(), term.Cols())
	}
}

func TestIOLoopResizeCoalescesInMailbox(t *testing.T) {
	term := New()
	pty := newFakePty()
	loop := NewIOLoop(pty, term, nil, nil)

	// Saturate the mailbox with writes before the loop starts draining, so
	// the next Post has to make room rather than simply enqueue.
	for i := 0; i < defaultMailboxCapacity; i++ {
		msg := WriteSmallMessage{Len: 1}
		msg.Inline[0] = 'x'
		if err := loop.Post(msg); err != nil {
			t.Fatalf("unexpected error filling mailbox (msg %d): %v", i, err)
		}
	}
	if len(loop.mailbox) != defaultMailboxCapacity {
		t.Fatalf("expected mailbox saturated at %d, got %d", defaultMailboxCapacity, len(loop.mailbox))
	}

	// A non-resize message against a full mailbox is dropped.
	if err := loop.Post(ClearScreenMessage{}); err != ErrMailboxFull {
		t.Errorf("expected ErrMailboxFull for a non-resize post against a full mailbox, got %v", err)
	}

	// A resize message makes room for itself instead of being dropped.
	if err := loop.Post(ResizeMessage{Rows: 14, Cols: 80}); err != nil {
		t.Errorf("expected resize to coalesce into a full mailbox without error, got %v", err)
	}
	if len(loop.mailbox) != defaultMailboxCapacity {
		t.Fatalf("expected mailbox to stay at capacity %d after coalescing, got %d", defaultMailboxCapacity, len(loop.mailbox))
	}

	go loop.Run()
	defer loop.Stop()

	eventually(t, func() bool { return term.Rows() == 14 })
}

func TestIOLoopStopExitsCleanly(t *testing.T) {
	term := New()
	pty := newFakePty()
	exited := make(chan error, 1)
	loop := NewIOLoop(pty, term, nil, func(err error) { exited <- err })

	go loop.Run()
	loop.Stop()
	loop.Stop() // must not panic when called twice

	select {
	case <-exited:
	case <-time.After(eventuallyTimeout):
		t.Fatal("expected onExit to fire after Stop")
	}
}

func TestIOLoopClearScreenMessageClearsScrollback(t *testing.T) {
	term := New(WithSize(2, 10), WithScrollback(NewMemoryScrollback(100)))
	term.WriteString("a\r\nb\r\nc")
	if term.ScrollbackLen() == 0 {
		t.Fatal("expected history before the clear")
	}
	pty := newFakePty()
	loop := NewIOLoop(pty, term, nil, nil)
	go loop.Run()
	defer loop.Stop()

	if err := loop.Post(ClearScreenMessage{}); err != nil {
		t.Fatalf("unexpected error posting clear: %v", err)
	}
	// The clear reaches the terminal and drops its history along with the
	// visible screen.
	eventually(t, func() bool { return term.ScrollbackLen() == 0 })
}

func TestIOLoopJumpToPromptResolvesMark(t *testing.T) {
	term := New(WithSize(10, 20))
	term.WriteString("\x1b]133;A\x07$ one\r\n\r\n")
	term.WriteString("\x1b]133;A\x07$ two")

	marks := term.PromptMarks()
	if len(marks) != 2 {
		t.Fatalf("want 2 prompt marks, got %d", len(marks))
	}

	pty := newFakePty()
	loop := NewIOLoop(pty, term, nil, nil)
	dest := make(chan int, 1)
	loop.SetPromptJumpHandler(func(absRow int) { dest <- absRow })
	go loop.Run()
	defer loop.Stop()

	// The cursor sits on the second prompt; one step back lands on the first.
	if err := loop.Post(JumpToPromptMessage{N: -1}); err != nil {
		t.Fatalf("unexpected error posting jump: %v", err)
	}

	select {
	case got := <-dest:
		if got != marks[0].Row {
			t.Errorf("jump resolved to row %d, want %d", got, marks[0].Row)
		}
	case <-time.After(eventuallyTimeout):
		t.Fatal("expected the prompt-jump handler to fire")
	}
}

func TestIOLoopJumpToPromptPastOldestIsDropped(t *testing.T) {
	term := New(WithSize(10, 20))
	term.WriteString("\x1b]133;A\x07$ only")

	pty := newFakePty()
	loop := NewIOLoop(pty, term, nil, nil)
	fired := make(chan int, 1)
	loop.SetPromptJumpHandler(func(absRow int) { fired <- absRow })
	go loop.Run()
	defer loop.Stop()

	// There is no prompt before the first one; the walk fails and the
	// handler must not fire.
	if err := loop.Post(JumpToPromptMessage{N: -1}); err != nil {
		t.Fatalf("unexpected error posting jump: %v", err)
	}

	select {
	case got := <-fired:
		t.Errorf("handler fired with row %d for an unresolvable jump", got)
	case <-time.After(100 * time.Millisecond):
	}
}
