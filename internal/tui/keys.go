package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the screen.
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Scan   key.Binding
	Stop   key.Binding
	About  key.Binding
	Back   key.Binding
	Allow  key.Binding
	Deny   key.Binding
	Help   key.Binding
	Quit   key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		Scan:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "scan")),
		Stop:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		About:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "about")),
		Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		Allow:  key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "allow")),
		Deny:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "deny")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Scan, k.Stop, k.About, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select},
		{k.Scan, k.Stop, k.About},
		{k.Back, k.Help, k.Quit},
	}
}

// applyMenu enables only the actions the session currently offers.
func (k *KeyMap) applyMenu(scan, stop, about bool) {
	k.Scan.SetEnabled(scan)
	k.Stop.SetEnabled(stop)
	k.About.SetEnabled(about)
}
