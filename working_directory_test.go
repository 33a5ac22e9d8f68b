package term

import "testing"

func TestWorkingDirectoryThroughWrite(t *testing.T) {
	term := New()
	term.WriteString("\x1b]7;file://localhost/home/user\x07")

	if got := term.WorkingDirectory(); got != "file://localhost/home/user" {
		t.Errorf("uri = %q", got)
	}
	if got := term.WorkingDirectoryPath(); got != "/home/user" {
		t.Errorf("path = %q, want /home/user", got)
	}
}

func TestWorkingDirectoryHostnameStripped(t *testing.T) {
	term := New()
	term.SetWorkingDirectory("file://build-box.local/var/log")

	if got := term.WorkingDirectoryPath(); got != "/var/log" {
		t.Errorf("path = %q, want /var/log", got)
	}
}

func TestWorkingDirectoryPathEdgeCases(t *testing.T) {
	term := New()
	if got := term.WorkingDirectoryPath(); got != "" {
		t.Errorf("empty uri path = %q", got)
	}

	term.SetWorkingDirectory("https://not-a-file-uri")
	if got := term.WorkingDirectoryPath(); got != "" {
		t.Errorf("non-file uri path = %q", got)
	}

	term.SetWorkingDirectory("file://hostonly")
	if got := term.WorkingDirectoryPath(); got != "" {
		t.Errorf("host-only uri path = %q", got)
	}
}

func TestWorkingDirectoryMiddleware(t *testing.T) {
	var seen string
	term := New(WithMiddleware(&Middleware{
		SetWorkingDirectory: func(uri string, next func(string)) {
			seen = uri
			next(uri)
		},
	}))

	term.SetWorkingDirectory("file:///tmp")
	if seen != "file:///tmp" {
		t.Errorf("middleware saw %q", seen)
	}
	if term.WorkingDirectory() != "file:///tmp" {
		t.Error("value not stored")
	}
}
