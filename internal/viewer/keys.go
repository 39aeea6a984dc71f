package viewer

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	First key.Binding
	Prev  key.Binding
	Next  key.Binding
	Last  key.Binding
	Flip  key.Binding
	Quit  key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		First: key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("home/g", "first")),
		Prev:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "previous")),
		Next:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next")),
		Last:  key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("end/G", "last")),
		Flip:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "flip")),
		Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.First, k.Prev, k.Next, k.Last, k.Flip, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.First, k.Prev, k.Next, k.Last}, {k.Flip, k.Quit}}
}
