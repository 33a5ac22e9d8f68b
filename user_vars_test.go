package term

import (
	"sync"
	"testing"
)

func TestUserVarSetGet(t *testing.T) {
	term := New()
	term.SetUserVar("SESSION_NAME", "dev")

	if got := term.GetUserVar("SESSION_NAME"); got != "dev" {
		t.Errorf("value = %q, want %q", got, "dev")
	}
	if got := term.GetUserVar("MISSING"); got != "" {
		t.Errorf("unset var = %q, want empty", got)
	}
}

func TestUserVarOverwriteAndEmptyValue(t *testing.T) {
	term := New()
	term.SetUserVar("K", "v1")
	term.SetUserVar("K", "v2")
	if got := term.GetUserVar("K"); got != "v2" {
		t.Errorf("value = %q, want v2", got)
	}

	term.SetUserVar("EMPTY", "")
	if _, ok := term.GetUserVars()["EMPTY"]; !ok {
		t.Error("a var set to empty must still exist")
	}
}

func TestGetUserVarsReturnsCopy(t *testing.T) {
	term := New()
	term.SetUserVar("A", "1")

	vars := term.GetUserVars()
	vars["A"] = "mutated"
	vars["B"] = "inserted"

	if term.GetUserVar("A") != "1" || term.GetUserVar("B") != "" {
		t.Error("mutating the returned map must not affect the terminal")
	}
}

func TestClearUserVars(t *testing.T) {
	term := New()
	term.SetUserVar("A", "1")
	term.SetUserVar("B", "2")
	term.ClearUserVars()

	if len(term.GetUserVars()) != 0 {
		t.Error("expected no vars after clear")
	}
}

func TestUserVarMiddlewareRewrite(t *testing.T) {
	term := New(WithMiddleware(&Middleware{
		SetUserVar: func(name, value string, next func(string, string)) {
			next("PREFIXED_"+name, value)
		},
	}))

	term.SetUserVar("VAR", "x")
	if term.GetUserVar("PREFIXED_VAR") != "x" || term.GetUserVar("VAR") != "" {
		t.Error("middleware rewrite not applied")
	}
}

func TestUserVarMiddlewareBlock(t *testing.T) {
	term := New(WithMiddleware(&Middleware{
		SetUserVar: func(name, value string, next func(string, string)) {},
	}))

	term.SetUserVar("VAR", "x")
	if term.GetUserVar("VAR") != "" {
		t.Error("blocked set still landed")
	}
}

func TestOSC1337SetUserVarThroughWrite(t *testing.T) {
	term := New()
	// "test_value" base64-encoded; the decoder decodes before dispatch.
	term.WriteString("\x1b]1337;SetUserVar=TEST_VAR=dGVzdF92YWx1ZQ==\x07")

	if got := term.GetUserVar("TEST_VAR"); got != "test_value" {
		t.Errorf("value = %q, want %q", got, "test_value")
	}
}

func TestOSC1337InvalidBase64Ignored(t *testing.T) {
	term := New()
	term.WriteString("\x1b]1337;SetUserVar=BAD=!@#$%\x07")

	if got := term.GetUserVar("BAD"); got != "" {
		t.Errorf("invalid base64 must not set the var, got %q", got)
	}
}

func TestUserVarConcurrency(t *testing.T) {
	term := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			term.SetUserVar("K", "v")
		}()
		go func() {
			defer wg.Done()
			_ = term.GetUserVar("K")
			_ = term.GetUserVars()
		}()
	}
	wg.Wait()
	if term.GetUserVar("K") != "v" {
		t.Error("final value lost")
	}
}
