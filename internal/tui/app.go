// Package tui is the terminal front end: a chat sidebar kept fresh by
// the chat list engine, a conversation pane driven by the open thread
// and a composer, all redrawn from bus events.
package tui

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/tcosta/courier/internal/bus"
	"github.com/tcosta/courier/internal/chatlist"
	"github.com/tcosta/courier/internal/model"
	"github.com/tcosta/courier/internal/realtime"
	"github.com/tcosta/courier/internal/session"
	"github.com/tcosta/courier/internal/store"
	"github.com/tcosta/courier/internal/thread"
	"github.com/tcosta/courier/internal/tui/keys"
	"github.com/tcosta/courier/internal/tui/views"
	"github.com/tcosta/courier/internal/upload"
)

const flashDuration = 5 * time.Second

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	sess     *session.Session
	store    store.Remote
	rt       realtime.Transport
	bus      *bus.Bus
	engine   *chatlist.Engine
	uploader upload.Uploader
	logger   *zap.Logger
	registry *keys.Registry

	sidebar   *views.ChatList
	msgView   *views.MessageView
	composer  *views.Composer
	searchBox *tview.InputField
	statusBar *views.StatusBar
	flash     flash

	active     *thread.Thread
	filters    []chatlist.Filter
	filterIdx  int // -1 = no filter
	searchTerm string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp wires the TUI against the client core.
func NewApp(sess *session.Session, st store.Remote, rt realtime.Transport, b *bus.Bus, engine *chatlist.Engine, up upload.Uploader, logger *zap.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:       tview.NewApplication(),
		sess:      sess,
		store:     st,
		rt:        rt,
		bus:       b,
		engine:    engine,
		uploader:  up,
		logger:    logger,
		registry:  keys.NewRegistry(),
		sidebar:   views.NewChatList(),
		msgView:   views.NewMessageView(sess.UserID()),
		composer:  views.NewComposer(),
		statusBar: views.NewStatusBar(),
		filterIdx: -1,
		ctx:       ctx,
		cancel:    cancel,
	}

	a.searchBox = tview.NewInputField().
		SetLabel(" / ").
		SetFieldWidth(0)

	if filters, err := chatlist.LoadFilters(session.FiltersPath()); err != nil {
		logger.Warn("loading saved filters failed", zap.Error(err))
	} else {
		a.filters = filters
	}

	a.statusBar.SetIdentity(sess.Profile.DisplayName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddView("list", "search", &keys.Action{
		Rune: '/', Key: tcell.KeyRune,
		Description: "/:search", Visible: true,
		Handler: func() { a.app.SetFocus(a.searchBox) },
	})
	a.registry.AddView("list", "filter", &keys.Action{
		Rune: 'f', Key: tcell.KeyRune,
		Description: "f:filter", Visible: true,
		Handler: func() { a.cycleFilter() },
	})
	a.registry.AddView("list", "unread", &keys.Action{
		Rune: 'u', Key: tcell.KeyRune,
		Description: "u:unread", Visible: true,
		Handler: func() { a.toggleUnread() },
	})
	a.statusBar.SetHints(a.registry.Hints("list"))
}

func (a *App) setupCallbacks() {
	a.sidebar.SetSelectedFunc(func(row, col int) {
		if id := a.sidebar.SelectedChat(); id != "" {
			a.openChat(id)
		}
	})

	a.composer.SetOnSend(func(sub views.Submission) { a.send(sub) })

	a.searchBox.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			a.searchTerm = a.searchBox.GetText()
			a.redraw()
			a.app.SetFocus(a.sidebar)
		case tcell.KeyEscape:
			a.searchTerm = ""
			a.searchBox.SetText("")
			a.redraw()
			a.app.SetFocus(a.sidebar)
		}
	})
}

func (a *App) setupLayout() {
	left := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.sidebar, 0, 1, true).
		AddItem(a.searchBox, 1, 0, false)

	right := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	main := tview.NewFlex().
		AddItem(left, 0, 1, true).
		AddItem(right, 0, 2, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(main, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// Text inputs get every key.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			if event.Key() == tcell.KeyEscape {
				a.app.SetFocus(a.sidebar)
				return nil
			}
			return event
		}

		if event.Key() == tcell.KeyRune && event.Rune() == 'i' {
			a.app.SetFocus(a.composer.InputField)
			return nil
		}
		if a.registry.HandleEvent("list", event) {
			return nil
		}
		return event
	})
}

// Run starts the chat list engine and the UI loop, blocking until quit.
func (a *App) Run() error {
	if err := a.engine.Start(a.ctx); err != nil {
		return err
	}
	go a.watchBus()
	go a.tick()

	a.app.QueueUpdateDraw(a.redraw)
	err := a.app.Run()
	a.shutdown()
	return err
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.app.Stop()
}

func (a *App) shutdown() {
	a.cancel()
	if a.active != nil {
		a.active.Close()
	}
	a.engine.Stop()
}

// watchBus redraws on every domain event the core publishes.
func (a *App) watchBus() {
	events, cancel := a.bus.Subscribe("", 64)
	defer cancel()
	for {
		select {
		case evt := <-events:
			if evt.Kind == "thread.send_failed" {
				a.flash.Set("Send failed", flashDuration)
			}
			a.app.QueueUpdateDraw(a.redraw)
		case <-a.ctx.Done():
			return
		}
	}
}

// tick keeps the clock and flash expiry honest.
func (a *App) tick() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() {
				a.statusBar.SetFlash(a.flash.Get())
			})
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) redraw() {
	a.sidebar.Update(a.visibleChats())
	if a.active != nil {
		a.msgView.Update(a.active.Messages())
	}
	a.statusBar.SetFlash(a.flash.Get())
}

// visibleChats applies the active saved filter and the search term to
// the engine's snapshot. Both are pure projections; ordering always
// comes from the engine.
func (a *App) visibleChats() []model.ChatWithDetails {
	chats := a.engine.Chats()
	if a.filterIdx >= 0 && a.filterIdx < len(a.filters) {
		chats = chatlist.Apply(chats, &a.filters[a.filterIdx])
	}
	return chatlist.Search(chats, a.searchTerm)
}

func (a *App) cycleFilter() {
	if len(a.filters) == 0 {
		a.flash.Set("No saved filters", flashDuration)
		a.redraw()
		return
	}
	a.filterIdx++
	if a.filterIdx >= len(a.filters) {
		a.filterIdx = -1
		a.sidebar.SetFilterName("")
	} else {
		a.sidebar.SetFilterName(a.filters[a.filterIdx].Name)
	}
	a.redraw()
}

var unreadFilter = chatlist.Filter{Name: "unread", Criteria: chatlist.Criteria{Unread: true}}

func (a *App) toggleUnread() {
	// The unread toggle is an ad-hoc filter slot appended past the saved
	// ones.
	if a.filterIdx >= 0 && a.filterIdx < len(a.filters) && a.filters[a.filterIdx].Name == unreadFilter.Name {
		a.filterIdx = -1
		a.sidebar.SetFilterName("")
		a.redraw()
		return
	}
	for i, f := range a.filters {
		if f.Name == unreadFilter.Name {
			a.filterIdx = i
			a.sidebar.SetFilterName(f.Name)
			a.redraw()
			return
		}
	}
	a.filters = append(a.filters, unreadFilter)
	a.filterIdx = len(a.filters) - 1
	a.sidebar.SetFilterName(unreadFilter.Name)
	if err := chatlist.SaveFilters(session.FiltersPath(), a.filters); err != nil {
		a.logger.Warn("saving filters failed", zap.Error(err))
	}
	a.redraw()
}

// openChat closes the current thread, opens the selected one and marks
// it read.
func (a *App) openChat(chatID string) {
	if a.active != nil && a.active.ChatID() == chatID {
		a.app.SetFocus(a.composer.InputField)
		return
	}

	name := chatID
	for _, c := range a.engine.Chats() {
		if c.ID == chatID && c.Name != "" {
			name = c.Name
			break
		}
	}

	old := a.active
	t := thread.New(chatID, a.sess.Profile, a.store, a.rt, a.bus, a.logger)
	go func() {
		if old != nil {
			old.Close()
		}
		if err := t.Open(a.ctx); err != nil {
			a.logger.Warn("opening chat failed", zap.String("chat_id", chatID), zap.Error(err))
			a.flash.Set("Open failed: "+err.Error(), flashDuration)
			a.app.QueueUpdateDraw(a.redraw)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.active = t
			a.msgView.SetChatName(name)
			a.redraw()
			a.app.SetFocus(a.composer.InputField)
		})
	}()
}

// send dispatches a composer submission: file paths go through the
// uploader, anything else is a text message.
func (a *App) send(sub views.Submission) {
	t := a.active
	if t == nil {
		a.flash.Set("No open chat", flashDuration)
		return
	}
	go func() {
		var err error
		if sub.FilePath != "" {
			err = a.sendFile(t, sub.FilePath)
		} else {
			err = t.Send(a.ctx, sub.Text, "", "")
		}
		if err != nil {
			a.flash.Set("Send failed: "+err.Error(), flashDuration)
			a.app.QueueUpdateDraw(a.redraw)
		}
	}()
}

func (a *App) sendFile(t *thread.Thread, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	res, err := a.uploader.Upload(a.ctx, filepath.Base(path), f)
	if err != nil {
		return err
	}
	return t.Send(a.ctx, "", res.URL, res.Type)
}
