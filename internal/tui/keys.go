package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	Edit       key.Binding
	TogglePaid key.Binding
	Save       key.Binding
	PrevMonth  key.Binding
	NextMonth  key.Binding
	Quit       key.Binding
	Confirm    key.Binding
	Cancel     key.Binding
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
	Edit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "edit amount"),
	),
	TogglePaid: key.NewBinding(
		key.WithKeys(" ", "space"),
		key.WithHelp("space", "paid"),
	),
	Save: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "save"),
	),
	PrevMonth: key.NewBinding(
		key.WithKeys("["),
		key.WithHelp("[", "prev month"),
	),
	NextMonth: key.NewBinding(
		key.WithKeys("]"),
		key.WithHelp("]", "next month"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "confirm"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Edit, k.TogglePaid, k.Save, k.PrevMonth, k.NextMonth, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// editKeys is the help shown while an amount is being typed.
type editKeys struct{}

func (editKeys) ShortHelp() []key.Binding {
	return []key.Binding{keys.Confirm, keys.Cancel}
}

func (editKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{editKeys{}.ShortHelp()}
}
