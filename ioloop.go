package term

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"github.com/danielgatis/go-ansicode"
)

// Pty is the byte-duplex file descriptor the IO loop drives. Platform pty
// creation and child-process spawning live with the embedding application;
// the loop only needs something that reads, writes, resizes, and closes.
type Pty interface {
	io.Reader
	io.Writer
	Resize(rows, cols, pixelW, pixelH int) error
	Close() error
}

// PtyFile adapts an *os.File produced by creack/pty to the Pty interface,
// so the IO loop can drive a real child process without depending on the
// exec/spawn details itself.
type PtyFile struct {
	f *os.File
}

// OpenPty starts cmd attached to a new pty of the given size and returns a
// Pty wrapping it. This is the one place the core touches process spawning;
// callers that already have a byte-duplex fd from elsewhere can skip it and
// implement Pty directly.
func OpenPty(cmd *exec.Cmd, rows, cols int) (*PtyFile, error) {
	f, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return nil, err
	}
	return &PtyFile{f: f}, nil
}

func (p *PtyFile) Read(b []byte) (int, error)  { return p.f.Read(b) }
func (p *PtyFile) Write(b []byte) (int, error) { return p.f.Write(b) }
func (p *PtyFile) Close() error                { return p.f.Close() }

// Resize issues TIOCSWINSZ via creack/pty. Pixel dimensions are best-effort;
// most kernels only honor rows/cols for scrollback-oblivious wrapping but
// some terminfo-aware programs query XTWINOPS pixel reports instead.
func (p *PtyFile) Resize(rows, cols, pixelW, pixelH int) error {
	return pty.Setsize(p.f, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
		X:    uint16(pixelW),
		Y:    uint16(pixelH),
	})
}

// MailboxMessage is the closed set of control messages the surface thread
// can send the IO loop. It is a sum type in spirit: one interface
// with a fixed family of concrete implementations, dispatched by a type
// switch in IOLoop.apply rather than by dynamic dispatch.
type MailboxMessage interface {
	isMailboxMessage()
}

// ResizeMessage propagates a size change to the pty (TIOCSWINSZ) and to the
// terminal model. Post admits a resize even into a full mailbox (see
// IOLoop.Post); resizes already waiting are not merged, and each one is
// applied in turn.
type ResizeMessage struct {
	Rows, Cols, PixelW, PixelH int
}

// WriteSmallMessage carries a short write inline to avoid a heap allocation
// for the common case of echoing a few keystrokes.
type WriteSmallMessage struct {
	Inline [64]byte
	Len    int
}

// WriteStableMessage carries a slice the caller guarantees stays alive until
// the loop drains it (e.g. a send of a string literal or long-lived buffer).
type WriteStableMessage struct {
	Data []byte
}

// WriteAllocMessage carries a slice the loop takes ownership of and is free
// to let go once written.
type WriteAllocMessage struct {
	Data []byte
}

// ClearScreenMessage requests the terminal contents be cleared.
type ClearScreenMessage struct{}

// ScrollViewportMessage requests the renderer's viewport scroll. The loop
// accepts it and takes no action on it. Delta is relative scroll in rows;
// if ToTop/ToBottom is set, Delta is ignored.
type ScrollViewportMessage struct {
	Delta    int
	ToTop    bool
	ToBottom bool
}

// JumpToPromptMessage requests scrollback navigation by N semantic prompt
// marks (OSC 133), forward if positive, backward if negative.
type JumpToPromptMessage struct {
	N int
}

// InspectorMessage toggles an external debugging overlay. The loop accepts
// it and takes no action on it; the toggle is not recorded.
type InspectorMessage struct {
	On bool
}

func (ResizeMessage) isMailboxMessage()         {}
func (WriteSmallMessage) isMailboxMessage()     {}
func (WriteStableMessage) isMailboxMessage()    {}
func (WriteAllocMessage) isMailboxMessage()     {}
func (ClearScreenMessage) isMailboxMessage()    {}
func (ScrollViewportMessage) isMailboxMessage() {}
func (JumpToPromptMessage) isMailboxMessage()   {}
func (InspectorMessage) isMailboxMessage()      {}

// ErrMailboxFull is returned by Post when the mailbox is at capacity and the
// message is not a resize.
var ErrMailboxFull = errors.New("term: mailbox full")

const defaultMailboxCapacity = 64

// IOLoop is the single-threaded cooperative event loop of the IO thread: it
// owns the pty, a bounded mailbox of control messages, a wakeup signal for
// the renderer, and the terminal model bytes are parsed into.
// Nothing on it may block indefinitely; the only suspension points are pty
// readability, a mailbox post, and Stop.
type IOLoop struct {
	pty  Pty
	term *Terminal

	mailbox  chan MailboxMessage
	wakeup   chan struct{}
	stop     chan struct{}
	stopOnce sync.Once

	onWakeup func()
	onExit   func(error)
	// onPromptJump receives the absolute row a JumpToPromptMessage resolved
	// to, for the surface to scroll its viewport there.
	onPromptJump func(absRow int)

	writeQueue [][]byte

	// deferredWakeup holds a wakeup suppressed by synchronized-update mode
	// (?2026) until the terminal leaves it.
	deferredWakeup bool
}

// NewIOLoop creates a loop driving term from p. onWakeup is called once for
// every batch of pty bytes or control message that mutated the terminal;
// the loop does not merge these calls. onExit is called once when the loop
// stops, with nil on a clean pty EOF shutdown.
func NewIOLoop(p Pty, term *Terminal, onWakeup func(), onExit func(error)) *IOLoop {
	if onWakeup == nil {
		onWakeup = func() {}
	}
	if onExit == nil {
		onExit = func(error) {}
	}
	return &IOLoop{
		pty:      p,
		term:     term,
		mailbox:  make(chan MailboxMessage, defaultMailboxCapacity),
		wakeup:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
		onWakeup: onWakeup,
		onExit:   onExit,
	}
}

// SetPromptJumpHandler registers the callback that receives the destination
// row of JumpToPromptMessage navigation. Set it before Run starts; the loop
// reads it without synchronization. Without a handler the destination is
// resolved and dropped.
func (l *IOLoop) SetPromptJumpHandler(f func(absRow int)) {
	l.onPromptJump = f
}

// Post enqueues a control message for the IO loop. A message that fits is
// queued in order; a resize is queued like any other message and is not
// merged with a resize already waiting. When the mailbox is full, a resize
// makes room for itself by discarding the oldest queued message, whatever
// its kind. Any other message that would overflow the bounded mailbox is
// dropped and ErrMailboxFull is returned; callers decide whether that is
// fatal.
func (l *IOLoop) Post(msg MailboxMessage) error {
	select {
	case l.mailbox <- msg:
		return nil
	default:
	}
	if _, ok := msg.(ResizeMessage); ok {
		select {
		case <-l.mailbox:
		default:
		}
		select {
		case l.mailbox <- msg:
			return nil
		default:
		}
	}
	return ErrMailboxFull
}

// Stop requests the loop finish its currently popped message and exit;
// messages still queued in the mailbox are dropped. It does not block;
// onExit is called once the loop has actually stopped. Safe to call more
// than once.
func (l *IOLoop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Run drives the loop until Stop is called or the pty reaches EOF. It is
// meant to be the entire body of the dedicated IO goroutine/thread.
func (l *IOLoop) Run() {
	buf := make([]byte, 64*1024)
	readResult := make(chan readOutcome, 1)
	go l.reader(buf, readResult)

	var exitErr error
loop:
	for {
		select {
		case <-l.stop:
			break loop

		case msg := <-l.mailbox:
			l.drainMailbox(msg)

		case res := <-readResult:
			if res.err != nil {
				if isRetryable(res.err) {
					go l.reader(buf, readResult)
					continue
				}
				if errors.Is(res.err, io.EOF) {
					exitErr = nil
				} else {
					exitErr = res.err
				}
				break loop
			}
			if res.n > 0 {
				l.term.Write(buf[:res.n])
				l.signalWakeup()
			}
			go l.reader(buf, readResult)
		}

		// A synchronized update that ended between events releases the
		// wakeup it was holding back.
		if l.deferredWakeup && !l.term.HasMode(ModeSynchronizedUpdate) {
			l.deferredWakeup = false
			l.signalWakeup()
		}
	}

	l.flushWrites()
	l.onExit(exitErr)
}

type readOutcome struct {
	n   int
	err error
}

// reader performs one blocking Read on the pty and reports the outcome.
// It runs on its own goroutine per call so Run's select can stay responsive
// to the mailbox and stop signal instead of blocking inside Read.
func (l *IOLoop) reader(buf []byte, out chan<- readOutcome) {
	n, err := l.pty.Read(buf)
	out <- readOutcome{n: n, err: err}
}

func isRetryable(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR)
}

// drainMailbox applies one message, then keeps draining whatever else is
// already queued without yielding back to Run's select, so the full
// pending backlog drains before the next pty read. Once Stop has been
// requested it applies nothing more, so messages still queued are dropped.
func (l *IOLoop) drainMailbox(first MailboxMessage) {
	msg := first
	for {
		select {
		case <-l.stop:
			return
		default:
		}
		l.apply(msg)
		select {
		case msg = <-l.mailbox:
			continue
		default:
			return
		}
	}
}

func (l *IOLoop) apply(msg MailboxMessage) {
	switch m := msg.(type) {
	case ResizeMessage:
		l.term.Resize(m.Rows, m.Cols)
		l.pty.Resize(m.Rows, m.Cols, m.PixelW, m.PixelH)
		l.signalWakeup()

	case WriteSmallMessage:
		l.enqueueWrite(append([]byte(nil), m.Inline[:m.Len]...))

	case WriteStableMessage:
		l.enqueueWrite(m.Data)

	case WriteAllocMessage:
		l.enqueueWrite(m.Data)

	case ClearScreenMessage:
		l.term.ClearScreen(ansicode.ClearModeAll)
		l.term.ClearScrollback()
		l.signalWakeup()

	case JumpToPromptMessage:
		// Resolve the walk against the terminal's prompt marks, starting
		// from the cursor's absolute row; the handler scrolls the viewport.
		row, _ := l.term.CursorPos()
		from := l.term.ScrollbackLen() + row
		if dest := l.term.JumpToPrompt(from, m.N); dest >= 0 && l.onPromptJump != nil {
			l.onPromptJump(dest)
		}

	case ScrollViewportMessage, InspectorMessage:
		// Viewport scrolling and the inspector overlay are surface-thread
		// concerns; the loop accepts and ignores them, and no terminal
		// mutation happens, so no wakeup is owed to the renderer.

	default:
	}
}

// enqueueWrite appends to the pending pty write queue and attempts an
// immediate non-blocking flush; a partial write re-enqueues its tail.
func (l *IOLoop) enqueueWrite(b []byte) {
	if len(b) == 0 {
		return
	}
	l.writeQueue = append(l.writeQueue, b)
	l.flushWrites()
}

func (l *IOLoop) flushWrites() {
	for len(l.writeQueue) > 0 {
		b := l.writeQueue[0]
		n, err := l.pty.Write(b)
		if n > 0 {
			b = b[n:]
		}
		if err != nil {
			if isRetryable(err) {
				l.writeQueue[0] = b
				return
			}
			l.writeQueue = l.writeQueue[1:]
			continue
		}
		if len(b) > 0 {
			l.writeQueue[0] = b
			return
		}
		l.writeQueue = l.writeQueue[1:]
	}
}

// signalWakeup notifies the renderer through onWakeup. The single-slot
// wakeup channel holds at most one pending signal, but onWakeup itself is
// called for every signal; a burst of mutations is not merged into one
// call. While the terminal is inside a
// synchronized update (?2026) the wakeup is held back and delivered when
// the update window closes.
func (l *IOLoop) signalWakeup() {
	if l.term.HasMode(ModeSynchronizedUpdate) {
		l.deferredWakeup = true
		return
	}
	select {
	case l.wakeup <- struct{}{}:
	default:
	}
	l.onWakeup()
}

var _ Pty = (*PtyFile)(nil)
