package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/tcosta/courier/internal/model"
	"github.com/tcosta/courier/internal/status"
)

// MessageView displays the open conversation.
type MessageView struct {
	*tview.TextView
	selfID string
}

// NewMessageView creates the conversation pane.
func NewMessageView(selfID string) *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")
	return &MessageView{TextView: tv, selfID: selfID}
}

// SetChatName updates the title with the chat name.
func (mv *MessageView) SetChatName(name string) {
	mv.SetTitle(fmt.Sprintf(" %s ", sanitizeForTerminal(name)))
}

// Update refreshes the pane. Messages come oldest first.
func (mv *MessageView) Update(msgs []model.MessageWithSender) {
	mv.Clear()

	for _, m := range msgs {
		sender := m.Sender.DisplayName
		if sender == "" {
			sender = m.Sender.Username
		}
		if m.SenderID == mv.selfID {
			sender = "You"
		}

		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s %s[-:-:-]\n",
			sanitizeForTerminal(sender), formatTimestamp(m.CreatedAt), ticks(&m, mv.selfID))
		if m.Content != "" {
			line += sanitizeForTerminal(m.Content) + "\n"
		}
		if m.HasAttachment() {
			line += fmt.Sprintf("[::d][%s] %s[-:-:-]\n", m.AttachmentType, m.AttachmentURL)
		}
		_, _ = fmt.Fprint(mv, line+"\n")
	}

	mv.ScrollToEnd()
}

// ticks renders the delivery marker on the viewer's own messages.
func ticks(m *model.MessageWithSender, selfID string) string {
	if m.SenderID != selfID {
		return ""
	}
	switch m.Status {
	case status.Read:
		return "[blue]✓✓[-]"
	case status.Delivered:
		return "✓✓"
	case status.Sent:
		return "✓"
	default:
		return "…"
	}
}
