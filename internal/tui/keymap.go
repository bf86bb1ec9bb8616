package tui

import "charm.land/bubbles/v2/key"

// keyMap represents key map data used by this package.
type keyMap struct {
	quit           key.Binding
	reload         key.Binding
	toggleHelp     key.Binding
	nextTab        key.Binding
	prevTab        key.Binding
	nextStatus     key.Binding
	prevStatus     key.Binding
	nextTag        key.Binding
	addTag         key.Binding
	removeTag      key.Binding
	apply          key.Binding
	discard        key.Binding
	addRef         key.Binding
	removeRef      key.Binding
	addProvenance  key.Binding
	dropProvenance key.Binding
	rename         key.Binding
	copyRef        key.Binding
	refDown        key.Binding
	refUp          key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:           key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:         key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		nextTab:        key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		prevTab:        key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous tab")),
		nextStatus:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "next status")),
		prevStatus:     key.NewBinding(key.WithKeys("S", "shift+s"), key.WithHelp("S", "previous status")),
		nextTag:        key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "next tag candidate")),
		addTag:         key.NewBinding(key.WithKeys("T", "shift+t"), key.WithHelp("T", "add tag")),
		removeTag:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "remove last tag")),
		apply:          key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
		discard:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "discard")),
		addRef:         key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add reference")),
		removeRef:      key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "remove reference")),
		addProvenance:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "add provenance")),
		dropProvenance: key.NewBinding(key.WithKeys("P", "shift+p"), key.WithHelp("P", "remove provenance")),
		rename:         key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "rename")),
		copyRef:        key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy reference")),
		refDown:        key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "next reference")),
		refUp:          key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "previous reference")),
	}
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.nextTab, k.nextStatus, k.nextTag, k.addTag, k.apply, k.discard, k.toggleHelp, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.nextTab, k.prevTab, k.nextStatus, k.prevStatus, k.nextTag, k.addTag, k.removeTag, k.apply, k.discard},
		{k.addRef, k.removeRef, k.refDown, k.refUp, k.copyRef},
		{k.addProvenance, k.dropProvenance, k.rename, k.reload, k.toggleHelp, k.quit},
	}
}
