// Package term is the core engine of a GPU-display-agnostic terminal
// emulator: a VT parser pipeline, a terminal state model with paginated
// scrollback, an IO-thread event loop, and the renderer-facing cell cache.
//
// The package has no display of its own. Everything a surface needs to
// draw — cells, styles, cursor, images — is exposed as data, which also
// makes the engine directly usable for headless work: exercising terminal
// applications in tests, scraping screens, recording sessions.
//
// # Quick start
//
// A Terminal consumes raw bytes (UTF-8 text plus escape sequences) through
// io.Writer and exposes the resulting grid:
//
//	t := term.New()
//	t.WriteString("\x1b[31mhello \x1b[32mworld\x1b[0m")
//	fmt.Println(t.String()) // "hello world"
//
// Hook it to a real child process with the IO loop:
//
//	t := term.New(
//	    term.WithSize(24, 80),
//	    term.WithScrollback(term.NewMemoryScrollback(10000)),
//	)
//	p, err := term.OpenPty(exec.Command("bash"), 24, 80)
//	if err != nil { ... }
//	t.SetResponseProvider(p)
//	loop := term.NewIOLoop(p, t, renderer.Wake, onExit)
//	go loop.Run()
//
// The loop owns the pty: it reads output into the parser, drains control
// messages posted from the UI thread (resizes, writes, navigation), and
// signals the renderer through its wakeup callback whenever terminal state
// changed.
//
// # Pipeline
//
// Bytes flow through fixed stages:
//
//	pty -> IOLoop -> decoder (go-ansicode) -> Terminal handlers -> Grid
//	                                              |
//	                                              +-> responses back to pty
//
// The escape-sequence state machine itself is go-ansicode's; this package
// implements its Handler interface. Every handler method can be
// intercepted via [Middleware], which is where embedders apply policy
// (block a clipboard write, rewrite a title) without forking the engine.
//
// # Screens and scrollback
//
// The Terminal keeps two screens: the primary one, whose evicted top rows
// flow into a [ScrollbackProvider], and the alternate one used by
// full-screen programs (entered via DECSET 1049 and variants), which has
// none. [NewMemoryScrollback] is the built-in history store: a doubly
// linked list of page arenas supporting stable [Pin] references that are
// invalidated — never left dangling — when their page is evicted.
//
// # Renderer surface
//
// A renderer reads the grid under the Terminal's lock and caches shaped
// rows in a [ContentsCache], keyed by (screen, stable row id, selection
// signature). Rows report dirtiness per row id ([Terminal.DirtyRowIDs]);
// styles intern into the per-screen [StyleTable] so cached rows and live
// cells account for style lifetime together. The cursor is never cached:
// it is drawn last from current state.
//
// # Providers
//
// Outward effects are interfaces with no-op defaults: responses, bell,
// title, clipboard (OSC 52, write-gated), desktop notifications (OSC 99),
// shell-integration marks (OSC 133), working directory (OSC 7), user
// variables (OSC 1337), APC/PM/SOS payloads, raw-input recording, and
// cell pixel metrics. Wire only what the embedding application cares
// about.
//
// # Graphics
//
// Sixel streams and Kitty graphics commands decode into an [ImageStore]
// side table of images and placements; cells covered by a placement carry
// texture-slice references for the renderer. Both protocols can be
// disabled per terminal.
package term
