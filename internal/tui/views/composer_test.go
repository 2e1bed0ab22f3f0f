package views

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func submit(c *Composer, text string) {
	c.SetText(text)
	handler := c.InputHandler()
	handler(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), nil)
}

func TestComposerSubmitsText(t *testing.T) {
	c := NewComposer()
	var got Submission
	c.SetOnSend(func(sub Submission) { got = sub })

	submit(c, "hello there")

	if got.Text != "hello there" || got.FilePath != "" {
		t.Fatalf("submission = %+v, want plain text", got)
	}
	if c.GetText() != "" {
		t.Fatalf("composer not cleared after submit: %q", c.GetText())
	}
}

func TestComposerParsesFileCommand(t *testing.T) {
	c := NewComposer()
	var got Submission
	c.SetOnSend(func(sub Submission) { got = sub })

	submit(c, "/file  /tmp/photo.png ")

	if got.FilePath != "/tmp/photo.png" || got.Text != "" {
		t.Fatalf("submission = %+v, want file path", got)
	}
}

func TestComposerIgnoresEmptyInput(t *testing.T) {
	c := NewComposer()
	calls := 0
	c.SetOnSend(func(Submission) { calls++ })

	submit(c, "")

	if calls != 0 {
		t.Fatalf("empty input submitted %d times", calls)
	}
}
