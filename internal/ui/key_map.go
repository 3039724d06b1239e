package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up        key.Binding
	down      key.Binding
	enter     key.Binding
	back      key.Binding
	tab       key.Binding
	search    key.Binding
	toggle    key.Binding
	next      key.Binding
	prev      key.Binding
	forward   key.Binding
	rewind    key.Binding
	louder    key.Binding
	quieter   key.Binding
	quit      key.Binding
	forceQuit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		tab:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch view")),
		search:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		toggle:    key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "play/pause")),
		next:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		prev:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous")),
		forward:   key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "+10s")),
		rewind:    key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "-10s")),
		louder:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "volume up")),
		quieter:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "volume down")),
		quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		forceQuit: key.NewBinding(key.WithKeys("ctrl+c")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.toggle, k.next, k.prev, k.tab, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.tab, k.search, k.quit},
		{k.toggle, k.next, k.prev},
		{k.forward, k.rewind, k.louder, k.quieter},
	}
}
