package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Complete key.Binding
	Up       key.Binding
	Down     key.Binding
	Goto     key.Binding
	Back     key.Binding
	Restart  key.Binding
	Exam     key.Binding
	Summary  key.Binding
	Close    key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Complete: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("enter", "done"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "browse up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "browse down"),
	),
	Goto: key.NewBinding(
		key.WithKeys("g"),
		key.WithHelp("g", "go to selected"),
	),
	Back: key.NewBinding(
		key.WithKeys("b", "backspace"),
		key.WithHelp("b", "back"),
	),
	Restart: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "restart"),
	),
	Exam: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "exam mode"),
	),
	Summary: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "summary"),
	),
	Close: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "close"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// keyBarText renders the key hints for the current view.
func keyBarText(summary, finished bool) string {
	hint := func(k, d string) string { return keyStyle.Render(k) + keyDescStyle.Render(":"+d) }
	if summary {
		return hint("esc", "close") + "  " + hint("q", "quit")
	}
	if finished {
		return hint("r", "restart") + "  " + hint("s", "summary") + "  " + hint("q", "quit")
	}
	return hint("enter", "done") + "  " +
		hint("↑↓", "browse") + "  " +
		hint("g", "go to") + "  " +
		hint("b", "back") + "  " +
		hint("r", "restart") + "  " +
		hint("e", "exam") + "  " +
		hint("s", "summary") + "  " +
		hint("q", "quit")
}
