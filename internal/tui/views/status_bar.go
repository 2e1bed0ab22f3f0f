package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"
)

// StatusBar displays the signed-in identity, key hints and transient
// flash messages.
type StatusBar struct {
	*tview.TextView
	identity string
	hints    []string
	flash    string
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	return &StatusBar{TextView: tv}
}

// SetIdentity updates the signed-in user display.
func (sb *StatusBar) SetIdentity(name string) {
	sb.identity = name
	sb.render()
}

// SetHints updates the keybinding hints.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s",
		sb.identity, strings.Join(sb.hints, " "), time.Now().Format("15:04"))
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", sb.flash)
	}
	_, _ = fmt.Fprint(sb, line)
}
