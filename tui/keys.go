package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Toggle key.Binding
	Season key.Binding
	Follow key.Binding
	Lock   key.Binding
	Root   key.Binding
	Mode   key.Binding
	Unlock key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func bind(help string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
}

func defaultKeys() keyMap {
	k := keyMap{
		Toggle: bind("start/stop", " ", "space"),
		Season: bind("season", "s"),
		Follow: bind("follow", "f"),
		Lock:   bind("lock", "l"),
		Root:   bind("root", "r"),
		Mode:   bind("mode", "m"),
		Unlock: bind("unlock", "u"),
		Help:   bind("help", "?"),
		Quit:   bind("quit", "q", "ctrl+c"),
	}
	k.Toggle.SetHelp("space", "start/stop")
	return k
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Follow, k.Lock, k.Unlock, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Quit, k.Help},
		{k.Season, k.Follow},
		{k.Lock, k.Root, k.Mode, k.Unlock},
	}
}
