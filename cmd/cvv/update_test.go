package main

import (
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/daviddao/clawvival_viewer/internal/datasource"
	"github.com/daviddao/clawvival_viewer/internal/model"
	"github.com/daviddao/clawvival_viewer/internal/urlstate"
)

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m uiModel, msg tea.Msg) (uiModel, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	next, ok := updated.(uiModel)
	if !ok {
		t.Fatalf("Update returned %T", updated)
	}
	return next, cmd
}

func TestUpdateTabCycles(t *testing.T) {
	m := testModel()

	for _, want := range []viewID{viewMap, viewHistory, viewAgent} {
		m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
		if m.activeView != want {
			t.Fatalf("after tab: view = %s, want %s", m.activeView, want)
		}
	}
}

func TestUpdateViewKeys(t *testing.T) {
	m := testModel()
	m.scrollPos = 3

	m, _ = press(t, m, runeKey("e"))
	if m.activeView != viewHistory {
		t.Errorf("e: view = %s", m.activeView)
	}
	if m.scrollPos != 0 {
		t.Error("switching views should reset scroll")
	}
	m, _ = press(t, m, runeKey("m"))
	if m.activeView != viewMap {
		t.Errorf("m: view = %s", m.activeView)
	}
	m, _ = press(t, m, runeKey("a"))
	if m.activeView != viewAgent {
		t.Errorf("a: view = %s", m.activeView)
	}
}

func TestUpdateQuit(t *testing.T) {
	m := testModel()
	_, cmd := press(t, m, runeKey("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestUpdateWindowSize(t *testing.T) {
	m := testModel()
	m, _ = press(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	if m.width != 100 || m.height != 30 || m.help.Width != 100 {
		t.Errorf("size = %dx%d help %d", m.width, m.height, m.help.Width)
	}
}

func TestUpdateHelpToggle(t *testing.T) {
	m := testModel()
	m, _ = press(t, m, runeKey("?"))
	if !m.showHelp {
		t.Error("? should show help")
	}
	m, _ = press(t, m, runeKey("?"))
	if m.showHelp {
		t.Error("? again should hide help")
	}
}

func TestUpdateHistoryCursorAndExpand(t *testing.T) {
	m := testModel()
	m.activeView = viewHistory

	m, _ = press(t, m, runeKey("k"))
	if m.cursor != 0 {
		t.Errorf("cursor moved above the first row: %d", m.cursor)
	}
	for i := 0; i < 5; i++ {
		m, _ = press(t, m, runeKey("j"))
	}
	if m.cursor != 2 {
		t.Errorf("cursor = %d, want clamped to 2", m.cursor)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	want := m.snap.Page.Items[2].ID
	if m.ui.ExpandedID != want {
		t.Fatalf("expanded = %q, want %q", m.ui.ExpandedID, want)
	}
	if m.snap.ExpandedItem == nil || m.snap.ExpandedItem.ID != want {
		t.Error("snapshot should carry the expanded item")
	}
	if !m.snap.Highlight.HasMovement || m.snap.Highlight.Arrow != "→" {
		t.Errorf("highlight = %+v, want movement east", m.snap.Highlight)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.ui.ExpandedID != "" || m.snap.ExpandedItem != nil {
		t.Error("esc should collapse the expanded item")
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.ui.ExpandedID != "" {
		t.Error("enter twice should collapse")
	}
}

func TestUpdateAgentViewScroll(t *testing.T) {
	m := testModel()
	m, _ = press(t, m, runeKey("j"))
	m, _ = press(t, m, runeKey("j"))
	if m.scrollPos != 2 {
		t.Errorf("scroll = %d, want 2", m.scrollPos)
	}
	m, _ = press(t, m, runeKey("k"))
	if m.scrollPos != 1 {
		t.Errorf("scroll = %d, want 1", m.scrollPos)
	}
}

func TestUpdateMapSelection(t *testing.T) {
	m := testModel()
	m.activeView = viewMap

	steps := []struct {
		key  string
		want string
	}{
		{"l", "0:0"}, // first move selects the agent's tile
		{"l", "1:0"},
		{"l", "1:0"}, // clamped to the window
		{"k", "1:-1"},
		{"h", "0:-1"},
		{"j", "0:0"},
		{"j", "0:1"},
		{"j", "0:1"},
	}
	for i, s := range steps {
		m, _ = press(t, m, runeKey(s.key))
		if got := m.snap.Map.EffectiveSelectedTileID; got != s.want {
			t.Fatalf("step %d (%s): selected = %q, want %q", i, s.key, got, s.want)
		}
	}
	if m.snap.Map.SelectedObjects == nil {
		t.Error("0:1 holds objects")
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.ui.SelectedTileID != "" || m.snap.Map.SelectedTile != nil {
		t.Error("esc should clear the selection")
	}
}

func TestUpdateMapKeysIgnoredElsewhere(t *testing.T) {
	m := testModel()
	m.activeView = viewHistory
	m, _ = press(t, m, runeKey("l"))
	if m.ui.SelectedTileID != "" {
		t.Error("l outside the map should not select a tile")
	}
}

func TestUpdateActionFilter(t *testing.T) {
	m := testModel()
	m.ui = m.ui.WithPage(3)

	m, _ = press(t, m, runeKey("/"))
	if m.inputMode != inputAction {
		t.Fatalf("input = %d, want action prompt", m.inputMode)
	}
	if m.activeView != viewHistory {
		t.Error("filtering should switch to history")
	}
	m, _ = press(t, m, runeKey("GA"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.inputMode != inputNone {
		t.Error("enter should close the prompt")
	}
	if m.ui.Filter.ActionType != "GA" {
		t.Errorf("action filter = %q", m.ui.Filter.ActionType)
	}
	if m.ui.Page != 1 {
		t.Errorf("page = %d, want reset to 1", m.ui.Page)
	}
	if m.snap.Page.Total != 2 {
		t.Errorf("filtered total = %d, want 2 gathers", m.snap.Page.Total)
	}

	m, _ = press(t, m, runeKey("x"))
	if !m.ui.Filter.IsZero() || m.snap.Page.Total != 3 {
		t.Error("x should clear the filters")
	}
}

func TestUpdateTimeFilterPrefill(t *testing.T) {
	m := testModel()
	m.ui = m.ui.WithFromTime("2026-02-18T10:00")

	m, _ = press(t, m, runeKey("f"))
	if m.inputMode != inputFrom {
		t.Fatalf("input = %d, want from prompt", m.inputMode)
	}
	if got := m.input.Value(); got != "2026-02-18T10:00" {
		t.Errorf("prompt value = %q, want the current bound", got)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.inputMode != inputNone {
		t.Error("esc should cancel")
	}
	if m.ui.Filter.FromTime != "2026-02-18T10:00" {
		t.Error("cancel must not change the filter")
	}

	m, _ = press(t, m, runeKey("t"))
	m.input.SetValue(t0.Add(-30 * time.Second).Format(time.RFC3339))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.ui.Filter.ToTime == "" {
		t.Fatal("to bound not set")
	}
	if m.snap.Page.Total != 2 {
		t.Errorf("total = %d, want the two older actions", m.snap.Page.Total)
	}
}

func TestUpdateKeysIgnoredWhileTyping(t *testing.T) {
	m := testModel()
	m, _ = press(t, m, runeKey("/"))
	m, _ = press(t, m, runeKey("q"))
	if m.inputMode != inputAction {
		t.Fatal("q inside the prompt should type, not quit")
	}
	if m.input.Value() != "q" {
		t.Errorf("value = %q", m.input.Value())
	}
}

func TestUpdateSwitchAgent(t *testing.T) {
	m := testModel()
	store := m.store

	m, _ = press(t, m, runeKey("i"))
	if m.inputMode != inputAgent {
		t.Fatal("i should open the agent prompt")
	}
	if m.input.Value() != "agt_1" {
		t.Errorf("prompt value = %q, want current agent", m.input.Value())
	}
	m.input.SetValue("agt_2")
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.ui.AgentID != "agt_2" {
		t.Fatalf("agent = %q", m.ui.AgentID)
	}
	if store.Get() != "agt_2" {
		t.Errorf("store = %q, want agt_2", store.Get())
	}
	if cmd == nil {
		t.Error("switching should fetch the new agent")
	}
	if m.snap.Agent != nil || m.pages.Len() != 0 || m.snap.SettledCount != 0 {
		t.Error("previous agent's data must be dropped")
	}
	if !m.status.InFlight() || !m.observe.InFlight() || !m.replay.InFlight() {
		t.Error("every feed should be refreshing")
	}

	m, _ = press(t, m, runeKey("["))
	if m.ui.AgentID != "agt_1" {
		t.Errorf("back: agent = %q, want agt_1", m.ui.AgentID)
	}
	m, _ = press(t, m, runeKey("]"))
	if m.ui.AgentID != "agt_2" {
		t.Errorf("forward: agent = %q, want agt_2", m.ui.AgentID)
	}
}

func TestUpdateSameAgentIsNoop(t *testing.T) {
	m := testModel()
	m, cmd := press(t, m, agentChangedMsg{agentID: "agt_1"})
	if cmd != nil {
		t.Error("re-selecting the tracked agent should not refetch")
	}
	if m.snap.Agent == nil {
		t.Error("data should be kept")
	}
}

func TestUpdateExternalAgentChange(t *testing.T) {
	m := testModel()
	m.ui = m.ui.WithActionFilter("gather").WithSelectedTile("1:0")

	m, _ = press(t, m, agentChangedMsg{agentID: "agt_3"})
	if m.ui.AgentID != "agt_3" {
		t.Fatalf("agent = %q", m.ui.AgentID)
	}
	if !m.ui.Filter.IsZero() || m.ui.SelectedTileID != "" {
		t.Error("switching agents clears filters and the selected tile")
	}
}

func TestUpdateDropsStaleResult(t *testing.T) {
	m := testModel()
	stale, ok := m.status.Begin("agt_1")
	if !ok {
		t.Fatal("Begin refused")
	}

	m, _ = press(t, m, agentChangedMsg{agentID: "agt_2"})
	m, _ = press(t, m, statusFetchedMsg{ticket: stale, resp: testStatus()})

	if m.snap.Agent != nil {
		t.Errorf("stale agt_1 status leaked into agt_2: %+v", m.snap.Agent)
	}
	if !m.status.InFlight() {
		t.Error("the agt_2 request should still be outstanding")
	}
}

func TestUpdateFetchErrorKeepsData(t *testing.T) {
	m := testModel()
	tk, _ := m.observe.Begin("agt_1")
	m, _ = press(t, m, observeFetchedMsg{ticket: tk, err: &datasource.RequestError{StatusCode: 500}})

	if !m.snap.Map.HasSnapshot() {
		t.Error("a failed refresh should keep the last map")
	}
	if m.snap.Err() == nil {
		t.Error("the error should surface")
	}

	tk, _ = m.observe.Begin("agt_1")
	m, _ = press(t, m, observeFetchedMsg{ticket: tk, resp: testObserve()})
	if m.snap.Err() != nil {
		t.Error("a good result clears the error")
	}
}

func TestUpdatePaging(t *testing.T) {
	var events []model.DomainEvent
	for i := 0; i < 45; i++ {
		events = append(events, settled(t0, i, fmt.Sprintf("act%02d", i)))
	}
	m := newModel(datasource.New("http://127.0.0.1:1"), urlstate.NewMemoryStore("agt_1"), 20, 200)
	m.pages.Put(0, events)
	m.snap = m.buildSnapshot()
	m.activeView = viewHistory
	m.width, m.height = 80, 30

	if m.snap.Page.PageCount != 3 {
		t.Fatalf("page count = %d, want 3", m.snap.Page.PageCount)
	}
	m.cursor = 4

	m, cmd := press(t, m, runeKey("n"))
	if m.snap.Page.CurrentPage != 2 || m.cursor != 0 {
		t.Errorf("after n: page %d cursor %d", m.snap.Page.CurrentPage, m.cursor)
	}
	if cmd != nil {
		t.Error("all events are local; no fetch expected")
	}
	if got := m.snap.Page.Items[0].ActionType; got != "act20" {
		t.Errorf("first item on page 2 = %q", got)
	}

	m, _ = press(t, m, runeKey("n"))
	m, _ = press(t, m, runeKey("n"))
	if m.snap.Page.CurrentPage != 3 {
		t.Errorf("page = %d, want to stop at 3", m.snap.Page.CurrentPage)
	}
	if len(m.snap.Page.Items) != 5 {
		t.Errorf("last page has %d items, want 5", len(m.snap.Page.Items))
	}

	m, _ = press(t, m, runeKey("p"))
	if m.snap.Page.CurrentPage != 2 {
		t.Errorf("after p: page %d", m.snap.Page.CurrentPage)
	}
	if !strings.Contains(m.View(), "page 2 / 3") {
		t.Error("indicator should follow the page")
	}
}

func TestUpdateReplayLookahead(t *testing.T) {
	var events []model.DomainEvent
	for i := 0; i < 8; i++ {
		intent := "rest"
		if i == 0 || i >= 6 {
			intent = "gather"
		}
		events = append(events, settled(t0, i, intent))
	}
	srv := fakeAPI(t, events)

	m := newModel(datasource.New(srv.URL), urlstate.NewMemoryStore("agt_1"), 20, 5)
	tk, ok := m.replay.Begin("agt_1")
	if !ok {
		t.Fatal("Begin refused")
	}

	m, cmd := press(t, m, fetchReplayCmd(m.client, tk, 0, 5)())
	if m.pages.Len() != 1 || m.snap.SettledCount != 5 {
		t.Fatalf("after first page: %d pages, %d actions", m.pages.Len(), m.snap.SettledCount)
	}
	if cmd == nil {
		t.Fatal("a short page with older events should trigger one lookahead")
	}
	if !m.replay.InFlight() || !m.snap.ReplayInFlight {
		t.Error("lookahead should mark the replay feed busy")
	}

	msg := cmd()
	r, ok := msg.(replayFetchedMsg)
	if !ok {
		t.Fatalf("lookahead produced %T", msg)
	}
	if want := t0.Add(-4*time.Minute).Unix() - 1; r.cursor != want {
		t.Errorf("cursor = %d, want %d", r.cursor, want)
	}
	if r.err != nil {
		t.Fatalf("fetch: %v", r.err)
	}

	m, cmd = press(t, m, msg)
	if m.pages.Len() != 2 || m.snap.SettledCount != 8 {
		t.Errorf("after lookahead: %d pages, %d actions", m.pages.Len(), m.snap.SettledCount)
	}
	if cmd != nil {
		t.Error("the short second page is the last one")
	}
	if m.snap.HasMore {
		t.Error("no older events should remain")
	}
}

func TestUpdateLookaheadWaitsForInFlight(t *testing.T) {
	m := newModel(datasource.New("http://127.0.0.1:1"), urlstate.NewMemoryStore("agt_1"), 20, 3)
	first, _ := m.replay.Begin("agt_1")
	events := []model.DomainEvent{settled(t0, 0, "a"), settled(t0, 1, "b"), settled(t0, 2, "c")}

	m, cmd := press(t, m, replayFetchedMsg{ticket: first, resp: &model.ReplayResponse{Events: events}})
	if cmd == nil {
		t.Fatal("expected a lookahead")
	}
	// The lookahead is still outstanding.
	_, again := m.reconcile()
	if again != nil {
		t.Error("no second lookahead while one is in flight")
	}
}

func TestUpdateNewestRefreshFetchesGap(t *testing.T) {
	m := newModel(datasource.New("http://127.0.0.1:1"), urlstate.NewMemoryStore("agt_1"), 2, 2)
	m.pages.Put(0, []model.DomainEvent{settled(t0, 2, "rest"), settled(t0, 3, "rest")})
	older, _ := m.pages.NextCursor()
	m.pages.Put(older, []model.DomainEvent{settled(t0, 4, "rest"), settled(t0, 5, "rest")})

	// The poll returns two newer actions and nothing from the page it
	// replaces. The first history page is full, so no lookahead is due.
	tk, _ := m.replay.Begin("agt_1")
	fresh := []model.DomainEvent{settled(t0, 0, "gather"), settled(t0, 1, "gather")}
	m, cmd := press(t, m, replayFetchedMsg{ticket: tk, resp: &model.ReplayResponse{Events: fresh}})

	if m.snap.SettledCount != 6 {
		t.Errorf("settled = %d, want the refreshed and the displaced actions", m.snap.SettledCount)
	}
	gap, ok := m.pages.Gap()
	if !ok || gap != t0.Add(-time.Minute).Unix()-1 {
		t.Errorf("gap = %d %v", gap, ok)
	}
	if cmd == nil || !m.replay.InFlight() {
		t.Error("a gap behind the newest page should be fetched")
	}
}

func TestUpdatePollSkipsBusyFeeds(t *testing.T) {
	m := testModel()
	m.replay.Begin("agt_1")

	_, cmd := press(t, m, pollMsg{})
	if cmd == nil {
		t.Fatal("poll should fetch status and observe")
	}
	if !m.status.InFlight() || !m.observe.InFlight() {
		t.Error("status and observe should be refreshing")
	}
}

func TestUpdatePollWithoutAgent(t *testing.T) {
	m := newModel(datasource.New("http://127.0.0.1:1"), urlstate.NewMemoryStore(""), 20, 200)
	m.closeInput()
	_, cmd := press(t, m, pollMsg{})
	if cmd != nil {
		t.Error("nothing to fetch without an agent")
	}
}
