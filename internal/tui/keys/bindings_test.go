package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func keyEvent(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestViewBindingsScopedToTheirView(t *testing.T) {
	r := NewRegistry()
	fired := ""
	r.AddView("list", "filter", &Action{
		Rune: 'f', Key: tcell.KeyRune,
		Description: "f:filter", Visible: true,
		Handler: func() { fired = "filter" },
	})

	if !r.HandleEvent("list", keyEvent('f')) {
		t.Fatal("expected view binding to match in its own view")
	}
	if fired != "filter" {
		t.Fatalf("fired = %q, want filter", fired)
	}

	fired = ""
	if r.HandleEvent("conversation", keyEvent('f')) {
		t.Fatal("view binding matched outside its view")
	}
	if fired != "" {
		t.Fatalf("handler ran outside its view: %q", fired)
	}
}

func TestViewBindingShadowsGlobal(t *testing.T) {
	r := NewRegistry()
	fired := ""
	r.AddGlobal("escape", &Action{
		Key: tcell.KeyEscape,
		Handler: func() { fired = "global" },
	})
	r.AddView("list", "escape", &Action{
		Key: tcell.KeyEscape,
		Handler: func() { fired = "view" },
	})

	r.HandleEvent("list", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone))
	if fired != "view" {
		t.Fatalf("fired = %q, want view binding to win", fired)
	}
}

func TestHintsMergeViewAndGlobal(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal("quit", &Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
	})
	r.AddView("list", "unread", &Action{
		Rune: 'u', Key: tcell.KeyRune,
		Description: "u:unread", Visible: true,
	})
	r.AddView("list", "hidden", &Action{
		Key: tcell.KeyEscape,
	})

	hints := r.Hints("list")
	want := []string{"q:quit", "u:unread"}
	if len(hints) != len(want) {
		t.Fatalf("hints = %v, want %v", hints, want)
	}
	for i := range want {
		if hints[i] != want[i] {
			t.Fatalf("hints = %v, want %v", hints, want)
		}
	}

	if got := r.Hints("conversation"); len(got) != 1 || got[0] != "q:quit" {
		t.Fatalf("conversation hints = %v, want just the global", got)
	}
}
