package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/daviddao/clawvival_viewer/internal/datasource"
	"github.com/daviddao/clawvival_viewer/internal/model"
	"github.com/daviddao/clawvival_viewer/internal/snapshot"
	"github.com/daviddao/clawvival_viewer/internal/urlstate"
)

// --- Messages ---

// pollMsg asks for a refresh of every feed.
type pollMsg struct{}

// agentChangedMsg carries a selection edit made outside the TUI.
type agentChangedMsg struct {
	agentID string
}

type tickMsg struct{}

type statusFetchedMsg struct {
	ticket datasource.Ticket
	resp   *model.StatusResponse
	err    error
}

type observeFetchedMsg struct {
	ticket datasource.Ticket
	resp   *model.ObserveResponse
	err    error
}

type replayFetchedMsg struct {
	ticket datasource.Ticket
	cursor int64
	resp   *model.ReplayResponse
	err    error
}

// --- Model ---

type uiModel struct {
	client   *datasource.Client
	store    urlstate.Store
	pageSize int

	status  *datasource.Feed[*model.StatusResponse]
	observe *datasource.Feed[*model.ObserveResponse]
	replay  *datasource.Feed[*model.ReplayResponse]
	pages   *datasource.ReplayPages

	ui   snapshot.UIState
	snap *snapshot.DataSnapshot

	activeView viewID
	width      int
	height     int
	cursor     int // selected row on the history page
	scrollPos  int

	input     textinput.Model
	inputMode inputKind

	spinner  spinner.Model
	help     help.Model
	showHelp bool

	refreshInterval time.Duration
	lastRefresh     time.Time
}

func newModel(c *datasource.Client, s urlstate.Store, pageSize, replayLimit int) uiModel {
	ti := textinput.New()
	ti.CharLimit = 128

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = dimStyle

	m := uiModel{
		client:   c,
		store:    s,
		pageSize: pageSize,
		status:   datasource.NewFeed[*model.StatusResponse](datasource.FeedStatus),
		observe:  datasource.NewFeed[*model.ObserveResponse](datasource.FeedObserve),
		replay:   datasource.NewFeed[*model.ReplayResponse](datasource.FeedReplay),
		pages:    datasource.NewReplayPages(replayLimit),
		ui:       snapshot.NewUIState(s.Get()),
		input:    ti,
		spinner:  sp,
		help:     help.New(),
	}
	m.snap = m.buildSnapshot()
	if m.ui.AgentID == "" {
		m.openInput(inputAgent)
	}
	return m
}

func (m uiModel) Init() tea.Cmd {
	return tea.Batch(
		tickEvery(),
		m.spinner.Tick,
		textinput.Blink,
		m.fetchAll(),
	)
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.inputMode != inputNone {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case pollMsg:
		return m, m.fetchAll()

	case agentChangedMsg:
		return m.switchAgent(msg.agentID)

	case statusFetchedMsg:
		if !m.status.Resolve(msg.ticket, msg.resp, msg.err) {
			logStale(msg.ticket)
			return m, nil
		}
		logFetchErr(msg.ticket, msg.err)
		m.lastRefresh = time.Now()
		return m.reconcile()

	case observeFetchedMsg:
		if !m.observe.Resolve(msg.ticket, msg.resp, msg.err) {
			logStale(msg.ticket)
			return m, nil
		}
		logFetchErr(msg.ticket, msg.err)
		m.lastRefresh = time.Now()
		return m.reconcile()

	case replayFetchedMsg:
		if !m.replay.Resolve(msg.ticket, msg.resp, msg.err) {
			logStale(msg.ticket)
			return m, nil
		}
		logFetchErr(msg.ticket, msg.err)
		if msg.err == nil && msg.resp != nil {
			m.pages.Put(msg.cursor, msg.resp.Events)
		}
		m.lastRefresh = time.Now()
		return m.reconcile()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		return m, tickEvery()
	}

	return m, nil
}

func (m uiModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Single-key view shortcuts first (always available).
	if v, ok := viewKeys[msg.String()]; ok {
		m.activeView = v
		m.scrollPos = 0
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Tab):
		m.activeView = (m.activeView + 1) % viewCount
		m.scrollPos = 0

	case key.Matches(msg, keys.Refresh):
		return m, m.fetchAll()

	case key.Matches(msg, keys.Agent):
		return m, m.openInput(inputAgent)

	case key.Matches(msg, keys.Back):
		if id, ok := m.store.Back(); ok {
			return m.switchAgent(id)
		}

	case key.Matches(msg, keys.Forward):
		if id, ok := m.store.Forward(); ok {
			return m.switchAgent(id)
		}

	case key.Matches(msg, keys.Up):
		switch m.activeView {
		case viewHistory:
			if m.cursor > 0 {
				m.cursor--
			}
		case viewMap:
			m = m.moveSelection(0, -1)
		default:
			if m.scrollPos > 0 {
				m.scrollPos--
			}
		}

	case key.Matches(msg, keys.Down):
		switch m.activeView {
		case viewHistory:
			if m.cursor < len(m.snap.Page.Items)-1 {
				m.cursor++
			}
		case viewMap:
			m = m.moveSelection(0, 1)
		default:
			m.scrollPos++
		}

	case key.Matches(msg, keys.Left):
		if m.activeView == viewMap {
			m = m.moveSelection(-1, 0)
		}

	case key.Matches(msg, keys.Right):
		if m.activeView == viewMap {
			m = m.moveSelection(1, 0)
		}

	case key.Matches(msg, keys.Enter):
		if m.activeView == viewHistory && m.cursor < len(m.snap.Page.Items) {
			m.ui = m.ui.ToggleExpanded(m.snap.Page.Items[m.cursor].ID)
			return m.reconcile()
		}

	case key.Matches(msg, keys.Esc):
		switch m.activeView {
		case viewMap:
			m.ui = m.ui.WithSelectedTile("")
			return m.reconcile()
		case viewHistory:
			if m.ui.ExpandedID != "" {
				m.ui = m.ui.ToggleExpanded(m.ui.ExpandedID)
				return m.reconcile()
			}
		}

	case key.Matches(msg, keys.NextPage):
		if ui, ok := m.snap.NextPage(); ok {
			m.ui = ui
			m.cursor = 0
			return m.reconcile()
		}

	case key.Matches(msg, keys.PrevPage):
		if ui, ok := m.snap.PrevPage(); ok {
			m.ui = ui
			m.cursor = 0
			return m.reconcile()
		}

	case key.Matches(msg, keys.Filter):
		m.activeView = viewHistory
		return m, m.openInput(inputAction)

	case key.Matches(msg, keys.From):
		m.activeView = viewHistory
		return m, m.openInput(inputFrom)

	case key.Matches(msg, keys.To):
		m.activeView = viewHistory
		return m, m.openInput(inputTo)

	case key.Matches(msg, keys.ClearFilt):
		if !m.ui.Filter.IsZero() {
			m.ui = m.ui.ClearFilters()
			m.cursor = 0
			return m.reconcile()
		}

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
	}

	return m, nil
}

// --- Input prompt ---

func (m *uiModel) openInput(kind inputKind) tea.Cmd {
	m.inputMode = kind
	m.input.Prompt = kind.prompt()
	m.input.Placeholder = kind.placeholder()
	switch kind {
	case inputAgent:
		m.input.SetValue(m.ui.AgentID)
	case inputAction:
		m.input.SetValue(m.ui.Filter.ActionType)
	case inputFrom:
		m.input.SetValue(m.ui.Filter.FromTime)
	case inputTo:
		m.input.SetValue(m.ui.Filter.ToTime)
	}
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *uiModel) closeInput() {
	m.inputMode = inputNone
	m.input.Blur()
	m.input.Reset()
}

func (m uiModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.closeInput()
		return m, nil
	case tea.KeyEnter:
		return m.commitInput()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m uiModel) commitInput() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	kind := m.inputMode
	m.closeInput()

	switch kind {
	case inputAgent:
		if value == "" || value == m.ui.AgentID {
			return m, nil
		}
		if err := m.store.Set(value); err != nil {
			log.Printf("save selection: %v", err)
		}
		return m.switchAgent(value)
	case inputAction:
		m.ui = m.ui.WithActionFilter(value)
	case inputFrom:
		m.ui = m.ui.WithFromTime(value)
	case inputTo:
		m.ui = m.ui.WithToTime(value)
	}
	m.cursor = 0
	return m.reconcile()
}

// --- State transitions ---

// switchAgent starts tracking id. Every feed is reset so results still in
// flight for the previous agent are dropped on arrival.
func (m uiModel) switchAgent(id string) (tea.Model, tea.Cmd) {
	id = strings.TrimSpace(id)
	if id == m.ui.AgentID {
		return m, nil
	}
	log.Printf("tracking agent %q (was %q)", id, m.ui.AgentID)
	m.ui = m.ui.WithAgent(id)
	m.status.Reset(id)
	m.observe.Reset(id)
	m.replay.Reset(id)
	m.pages.Reset()
	m.cursor = 0
	m.scrollPos = 0
	m.lastRefresh = time.Time{}

	var cmd tea.Cmd
	m, cmd = m.reconcile()
	return m, tea.Batch(cmd, m.fetchAll())
}

// moveSelection moves the selected map tile by (dx, dy), starting from the
// agent's tile when nothing is selected. The selection stays in the window.
func (m uiModel) moveSelection(dx, dy int) uiModel {
	vm := m.snap.Map
	if !vm.HasSnapshot() || len(vm.XRange) == 0 || len(vm.YRange) == 0 {
		return m
	}
	next := vm.Agent
	if p, ok := model.ParseKey(vm.EffectiveSelectedTileID); ok {
		next = model.Point{X: p.X + dx, Y: p.Y + dy}
	}
	next.X = min(max(next.X, vm.XRange[0]), vm.XRange[len(vm.XRange)-1])
	next.Y = min(max(next.Y, vm.YRange[0]), vm.YRange[len(vm.YRange)-1])
	m.ui = m.ui.WithSelectedTile(next.Key())
	m.snap = m.buildSnapshot()
	return m
}

func (m uiModel) buildSnapshot() *snapshot.DataSnapshot {
	st := m.status.State()
	ob := m.observe.State()
	rp := m.replay.State()
	return snapshot.Build(snapshot.Input{
		UI:             m.ui,
		Status:         st.Data,
		Observe:        ob.Data,
		Pages:          m.pages.Pages(),
		HasMore:        m.pages.HasMore(),
		ReplayInFlight: rp.InFlight,
		PageSize:       m.pageSize,
		StatusErr:      st.Err,
		ObserveErr:     ob.Err,
		ReplayErr:      rp.Err,
		RefreshedAt:    m.lastRefresh,
	})
}

// reconcile rebuilds the snapshot and requests exactly one more replay page
// when a poll refresh left a gap behind the newest page, or when the current
// page is short of items and older events exist.
func (m uiModel) reconcile() (uiModel, tea.Cmd) {
	m.snap = m.buildSnapshot()
	if n := len(m.snap.Page.Items); m.cursor >= n {
		m.cursor = max(0, n-1)
	}
	reason := "gap"
	cursor, ok := m.pages.Gap()
	if !ok {
		if !m.snap.Lookahead {
			return m, nil
		}
		reason = fmt.Sprintf("lookahead for page %d", m.ui.Page)
		if cursor, ok = m.pages.NextCursor(); !ok {
			return m, nil
		}
	}
	t, ok := m.replay.Begin(m.ui.AgentID)
	if !ok {
		return m, nil
	}
	log.Printf("replay %s: occurred_to=%d (request %s)", reason, cursor, t.ID)
	m.snap = m.buildSnapshot()
	return m, fetchReplayCmd(m.client, t, cursor, m.pages.Limit())
}

// --- Fetch commands ---

// fetchAll refreshes status, observe and the newest replay page. Feeds that
// already have a request in flight are skipped.
func (m uiModel) fetchAll() tea.Cmd {
	id := m.ui.AgentID
	if id == "" {
		return nil
	}
	var cmds []tea.Cmd
	if t, ok := m.status.Begin(id); ok {
		cmds = append(cmds, fetchStatusCmd(m.client, t))
	}
	if t, ok := m.observe.Begin(id); ok {
		cmds = append(cmds, fetchObserveCmd(m.client, t))
	}
	if t, ok := m.replay.Begin(id); ok {
		cmds = append(cmds, fetchReplayCmd(m.client, t, 0, m.pages.Limit()))
	}
	return tea.Batch(cmds...)
}

func ticketContext(t datasource.Ticket) context.Context {
	return datasource.WithRequestID(context.Background(), t.ID)
}

func fetchStatusCmd(c *datasource.Client, t datasource.Ticket) tea.Cmd {
	return func() tea.Msg {
		resp, err := c.FetchStatus(ticketContext(t), t.AgentID)
		return statusFetchedMsg{ticket: t, resp: resp, err: err}
	}
}

func fetchObserveCmd(c *datasource.Client, t datasource.Ticket) tea.Cmd {
	return func() tea.Msg {
		resp, err := c.FetchObserve(ticketContext(t), t.AgentID)
		return observeFetchedMsg{ticket: t, resp: resp, err: err}
	}
}

func fetchReplayCmd(c *datasource.Client, t datasource.Ticket, cursor int64, limit int) tea.Cmd {
	return func() tea.Msg {
		resp, err := c.FetchReplay(ticketContext(t), t.AgentID, datasource.ReplayOptions{Limit: limit, OccurredTo: cursor})
		return replayFetchedMsg{ticket: t, cursor: cursor, resp: resp, err: err}
	}
}

func logStale(t datasource.Ticket) {
	log.Printf("drop stale %s result for %q (request %s)", t.Feed, t.AgentID, t.ID)
}

func logFetchErr(t datasource.Ticket, err error) {
	if err != nil {
		log.Printf("%s %q: %v", t.Feed, t.AgentID, err)
	}
}
