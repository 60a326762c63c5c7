package ui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap holds the window's key bindings. It satisfies help.KeyMap.
type KeyMap struct {
	CheckNow key.Binding
	Refresh  key.Binding
	Open     key.Binding
	Copy     key.Binding
	Quit     key.Binding
	Scroll   key.Binding

	// selector
	Select key.Binding
	Cancel key.Binding
	Up     key.Binding
	Down   key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		CheckNow: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "check now")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh repo")),
		Open:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open repo")),
		Copy:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy review")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Scroll:   key.NewBinding(key.WithKeys("up", "down", "pgup", "pgdown"), key.WithHelp("↑/↓", "scroll")),

		Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Up:     key.NewBinding(key.WithKeys("up", "ctrl+p"), key.WithHelp("↑", "previous")),
		Down:   key.NewBinding(key.WithKeys("down", "ctrl+n", "tab"), key.WithHelp("↓", "next")),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.CheckNow, k.Refresh, k.Open, k.Copy, k.Scroll, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.CheckNow, k.Refresh, k.Open},
		{k.Copy, k.Scroll, k.Quit},
	}
}

// selectorHelp is shown while the repository selector is open.
type selectorHelp KeyMap

func (k selectorHelp) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Up, k.Down, k.Cancel}
}

func (k selectorHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
