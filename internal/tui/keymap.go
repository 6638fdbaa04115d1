package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap binds every pager command spec.md's Command sum type can express
// to a key combination.
type KeyMap struct {
	Up             key.Binding
	Down           key.Binding
	PageUp         key.Binding
	PageDown       key.Binding
	Top            key.Binding
	Bottom         key.Binding
	SearchForward  key.Binding
	SearchBackward key.Binding
	NextMatch      key.Binding
	JumpToLine     key.Binding
	JumpToRatio    key.Binding
	Follow         key.Binding
	SaveMark       key.Binding
	LoadMark       key.Binding
	Cancel         key.Binding
	Help           key.Binding
	Quit           key.Binding
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.SearchForward, k.Follow, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Top, k.Bottom},
		{k.SearchForward, k.SearchBackward, k.NextMatch},
		{k.JumpToLine, k.JumpToRatio, k.SaveMark, k.LoadMark},
		{k.Follow, k.Cancel, k.Help, k.Quit},
	}
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "b"),
			key.WithHelp("pgup/b", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "f", " "),
			key.WithHelp("pgdn/f", "page down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		SearchForward: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		SearchBackward: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "search back"),
		),
		NextMatch: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "next match"),
		),
		JumpToLine: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "jump to line"),
		),
		JumpToRatio: key.NewBinding(
			key.WithKeys("%"),
			key.WithHelp("%", "jump to %"),
		),
		Follow: key.NewBinding(
			key.WithKeys("F"),
			key.WithHelp("F", "follow"),
		),
		SaveMark: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "save mark"),
		),
		LoadMark: key.NewBinding(
			key.WithKeys("'"),
			key.WithHelp("'", "load mark"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "cancel"),
		),
		Help: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
	}
}
