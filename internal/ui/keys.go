package ui

import (
	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Quit       key.Binding
	NextView   key.Binding
	PrevView   key.Binding
	Pause      key.Binding
	SeekBack   key.Binding
	SeekFwd    key.Binding
	VolUp      key.Binding
	VolDown    key.Binding
	NextTrack  key.Binding
	PrevTrack  key.Binding
	Shuffle    key.Binding
	Repeat     key.Binding
	Play       key.Binding
	DJ         key.Binding
	Back       key.Binding
	Toggle     key.Binding
	Preview    key.Binding
	SaveMix    key.Binding
	DiscardMix key.Binding
}

var keys = keyMap{
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	NextView:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "view")),
	PrevView:   key.NewBinding(key.WithKeys("shift+tab")),
	Pause:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause")),
	SeekBack:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/→", "seek")),
	SeekFwd:    key.NewBinding(key.WithKeys("right", "l")),
	VolUp:      key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "volume")),
	VolDown:    key.NewBinding(key.WithKeys("-")),
	NextTrack:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n/p", "track")),
	PrevTrack:  key.NewBinding(key.WithKeys("p")),
	Shuffle:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "shuffle")),
	Repeat:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "repeat")),
	Play:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
	DJ:         key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "ai dj")),
	Back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Toggle:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
	Preview:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "preview")),
	SaveMix:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
	DiscardMix: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "discard")),
}

// helpLine renders bindings as "key desc" pairs separated by two spaces.
func helpLine(bs ...key.Binding) string {
	s := ""
	for _, b := range bs {
		h := b.Help()
		if h.Key == "" {
			continue
		}
		if s != "" {
			s += "  "
		}
		s += h.Key + " " + h.Desc
	}
	return s
}

func playerHelp() string {
	return helpLine(keys.Pause, keys.SeekBack, keys.VolUp, keys.NextTrack, keys.Shuffle, keys.Repeat, keys.NextView, keys.DJ, keys.Quit)
}
