package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	PageDown    key.Binding
	PageUp      key.Binding
	Top         key.Binding
	Bottom      key.Binding
	NextSection key.Binding
	PrevSection key.Binding
	Toggle      key.Binding
	Help        key.Binding
	Quit        key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown", " ", "f"),
		key.WithHelp("space/f", "page down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup", "b"),
		key.WithHelp("b", "page up"),
	),
	Top: key.NewBinding(
		key.WithKeys("home", "g"),
		key.WithHelp("g", "top"),
	),
	Bottom: key.NewBinding(
		key.WithKeys("end", "G"),
		key.WithHelp("G", "bottom"),
	),
	NextSection: key.NewBinding(
		key.WithKeys("n", "tab"),
		key.WithHelp("n/tab", "next section"),
	),
	PrevSection: key.NewBinding(
		key.WithKeys("N", "shift+tab"),
		key.WithHelp("N/S-tab", "prev section"),
	),
	Toggle: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "formatted/json"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "back to review"),
	),
}
