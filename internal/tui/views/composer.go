package views

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// fileCommand marks a composer entry as an attachment: "/file <path>".
const fileCommand = "/file "

// Submission is one committed composer entry: either plain message text
// or a local file path to send as an attachment.
type Submission struct {
	Text     string
	FilePath string
}

// Composer is the text input for sending messages. It parses the /file
// command itself so the shell only ever sees typed submissions.
type Composer struct {
	*tview.InputField
	onSend func(sub Submission)
}

// NewComposer creates a new message composer.
func NewComposer() *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)

	c := &Composer{InputField: input}

	input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || c.onSend == nil {
			return
		}
		text := input.GetText()
		if text == "" {
			return
		}
		if path, ok := strings.CutPrefix(text, fileCommand); ok {
			c.onSend(Submission{FilePath: strings.TrimSpace(path)})
		} else {
			c.onSend(Submission{Text: text})
		}
		c.SetText("")
	})

	return c
}

// SetOnSend sets the callback for committed submissions.
func (c *Composer) SetOnSend(fn func(sub Submission)) {
	c.onSend = fn
}
