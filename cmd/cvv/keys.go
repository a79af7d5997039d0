package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// --- Views ---

type viewID int

const (
	viewAgent viewID = iota
	viewMap
	viewHistory
	viewCount // sentinel
)

func (v viewID) String() string {
	switch v {
	case viewAgent:
		return "Agent"
	case viewMap:
		return "Map"
	case viewHistory:
		return "History"
	}
	return "?"
}

// parseViewFlag maps a --view flag string to a viewID.
func parseViewFlag(s string) (viewID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "agent", "a", "":
		return viewAgent, nil
	case "map", "m":
		return viewMap, nil
	case "history", "e":
		return viewHistory, nil
	default:
		return 0, fmt.Errorf("unknown view %q (valid: agent, map, history)", s)
	}
}

// --- Key bindings ---

type keyMap struct {
	Quit      key.Binding
	Tab       key.Binding
	Refresh   key.Binding
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
	Help      key.Binding
	Enter     key.Binding
	Esc       key.Binding
	Agent     key.Binding
	Back      key.Binding
	Forward   key.Binding
	NextPage  key.Binding
	PrevPage  key.Binding
	Filter    key.Binding
	From      key.Binding
	To        key.Binding
	ClearFilt key.Binding
}

var keys = keyMap{
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Tab:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
	Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/up", "up")),
	Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/down", "down")),
	Left:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("h/left", "left")),
	Right:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("l/right", "right")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "expand")),
	Esc:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear")),
	Agent:     key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "agent id")),
	Back:      key.NewBinding(key.WithKeys("["), key.WithHelp("[", "previous agent")),
	Forward:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next agent")),
	NextPage:  key.NewBinding(key.WithKeys("n", "pgdown"), key.WithHelp("n", "next page")),
	PrevPage:  key.NewBinding(key.WithKeys("p", "pgup"), key.WithHelp("p", "prev page")),
	Filter:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter action")),
	From:      key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "from time")),
	To:        key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "to time")),
	ClearFilt: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear filters")),
}

// viewKeys maps single keys to views for fast navigation.
var viewKeys = map[string]viewID{
	"a": viewAgent,
	"m": viewMap,
	"e": viewHistory,
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Agent, k.Refresh, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.Agent, k.Back, k.Forward, k.Refresh},
		{k.Up, k.Down, k.Left, k.Right, k.Enter, k.Esc},
		{k.NextPage, k.PrevPage, k.Filter, k.From, k.To, k.ClearFilt},
		{k.Help, k.Quit},
	}
}

// contextHelp returns help text appropriate for the current view.
func contextHelp(v viewID) string {
	switch v {
	case viewMap:
		return "hjkl/arrows: select tile | esc: clear | a/m/e: views | i: agent | ?: help | q: quit"
	case viewHistory:
		return "j/k: move | enter: expand | n/p: page | /,f,t: filter | x: clear | ?: help | q: quit"
	default:
		return "i: agent | [/]: back/forward | a/m/e: views | tab: next | r: refresh | ?: help | q: quit"
	}
}

// --- Input prompts ---

type inputKind int

const (
	inputNone inputKind = iota
	inputAgent
	inputAction
	inputFrom
	inputTo
)

func (k inputKind) prompt() string {
	switch k {
	case inputAgent:
		return "agent id: "
	case inputAction:
		return "action: "
	case inputFrom:
		return "from: "
	case inputTo:
		return "to: "
	}
	return ""
}

func (k inputKind) placeholder() string {
	switch k {
	case inputAgent:
		return "agt_..."
	case inputAction:
		return "gather, sleep, move..."
	case inputFrom, inputTo:
		return "2006-01-02T15:04"
	}
	return ""
}
