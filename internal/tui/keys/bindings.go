// Package keys is a small keybinding registry with per-view scopes and
// discoverable hints for the status bar.
package keys

import (
	"sort"

	"github.com/gdamore/tcell/v2"
)

// Action represents a keybinding action.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Description string
	Handler     func()
	Visible     bool
}

// Matches returns true if the event matches this action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

type binding struct {
	name   string
	action *Action
}

// Registry holds keybindings organized by scope. Bindings keep their
// registration order so hints render deterministically.
type Registry struct {
	global []binding
	views  map[string][]binding
}

// NewRegistry creates a new keybinding registry.
func NewRegistry() *Registry {
	return &Registry{views: make(map[string][]binding)}
}

// AddGlobal registers a keybinding active in every view.
func (r *Registry) AddGlobal(name string, action *Action) {
	r.global = append(r.global, binding{name, action})
}

// AddView registers a view-specific keybinding.
func (r *Registry) AddView(view, name string, action *Action) {
	r.views[view] = append(r.views[view], binding{name, action})
}

// Hints returns visible keybinding descriptions for a given view,
// view-specific first.
func (r *Registry) Hints(view string) []string {
	var hints []string
	for _, b := range r.views[view] {
		if b.action.Visible {
			hints = append(hints, b.action.Description)
		}
	}
	for _, b := range r.global {
		if b.action.Visible {
			hints = append(hints, b.action.Description)
		}
	}
	sort.Strings(hints)
	return hints
}

// HandleEvent dispatches a key event to the matching action in the
// given view. Returns true if a handler matched.
func (r *Registry) HandleEvent(view string, ev *tcell.EventKey) bool {
	for _, b := range r.views[view] {
		if b.action.Matches(ev) {
			b.action.Handler()
			return true
		}
	}
	for _, b := range r.global {
		if b.action.Matches(ev) {
			b.action.Handler()
			return true
		}
	}
	return false
}
