package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/tcosta/courier/internal/model"
)

// ChatList is the sidebar table of conversations, most recent first.
type ChatList struct {
	*tview.Table
	chats []model.ChatWithDetails
}

// NewChatList creates the sidebar table.
func NewChatList() *ChatList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Chats ")
	return &ChatList{Table: table}
}

// SetFilterName shows the active filter in the border title.
func (cl *ChatList) SetFilterName(name string) {
	if name == "" {
		cl.SetTitle(" Chats ")
		return
	}
	cl.SetTitle(fmt.Sprintf(" Chats ~ %s ", name))
}

// Update refreshes the table with a new projection snapshot.
func (cl *ChatList) Update(chats []model.ChatWithDetails) {
	cl.chats = chats
	row, _ := cl.GetSelection()
	cl.Clear()

	cl.SetCell(0, 0, tview.NewTableCell(" Name").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 1, tview.NewTableCell(" Last Message").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 2, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, chat := range chats {
		name := sanitizeForTerminal(chat.Name)
		if chat.IsGroup {
			name = "# " + name
		}
		if len(chat.Labels) > 0 {
			var tags []string
			for _, l := range chat.Labels {
				tags = append(tags, l.Name)
			}
			name = fmt.Sprintf("%s [%s]", name, strings.Join(tags, ","))
		}
		if chat.UnreadCount > 0 {
			name = fmt.Sprintf("* %s (%d)", name, chat.UnreadCount)
		}

		preview, ts := "", ""
		if chat.LastMessage != nil {
			preview = sanitizeForTerminal(previewText(chat.LastMessage))
			ts = formatTimestamp(chat.LastMessage.CreatedAt)
		}

		cl.SetCell(i+1, 0, tview.NewTableCell(" "+name).SetMaxWidth(30).SetExpansion(1))
		cl.SetCell(i+1, 1, tview.NewTableCell(" "+preview).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(i+1, 2, tview.NewTableCell(" "+ts).SetMaxWidth(12))
	}

	if row > len(chats) {
		row = len(chats)
	}
	if row < 1 {
		row = 1
	}
	cl.Select(row, 0)
}

// SelectedChat returns the id of the currently selected chat.
func (cl *ChatList) SelectedChat() string {
	row, _ := cl.GetSelection()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(cl.chats) {
		return cl.chats[idx].ID
	}
	return ""
}

func previewText(lm *model.LastMessage) string {
	if lm.Content != "" {
		return lm.Content
	}
	if lm.HasAttachment {
		return "[attachment]"
	}
	return ""
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
