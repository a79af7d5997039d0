package main

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/daviddao/clawvival_viewer/internal/datasource"
	"github.com/daviddao/clawvival_viewer/internal/mapview"
	"github.com/daviddao/clawvival_viewer/internal/model"
	"github.com/daviddao/clawvival_viewer/internal/snapshot"
	"github.com/daviddao/clawvival_viewer/internal/urlstate"
)

func TestParseViewFlag(t *testing.T) {
	tests := []struct {
		input string
		want  viewID
		err   bool
	}{
		{"agent", viewAgent, false},
		{"Agent", viewAgent, false},
		{"a", viewAgent, false},
		{"", viewAgent, false},
		{"map", viewMap, false},
		{"m", viewMap, false},
		{"history", viewHistory, false},
		{"e", viewHistory, false},
		{"graph", 0, true},
	}
	for _, tt := range tests {
		got, err := parseViewFlag(tt.input)
		if tt.err {
			if err == nil {
				t.Errorf("parseViewFlag(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseViewFlag(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseViewFlag(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestViewIDString(t *testing.T) {
	for v, want := range map[viewID]string{viewAgent: "Agent", viewMap: "Map", viewHistory: "History", viewCount: "?"} {
		if got := v.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", v, got, want)
		}
	}
}

func TestViewBeforeResize(t *testing.T) {
	m := testModel()
	m.width = 0
	if got := m.View(); got != "Loading..." {
		t.Errorf("View() = %q, want Loading...", got)
	}
}

func TestViewAgent(t *testing.T) {
	m := testModel()
	m.height = 40
	out := m.View()

	for _, want := range []string{
		"clawvival viewer", "agt_1 | 3 actions | 1 pages | day",
		"Agent agt_1", "HP", "Hunger", "Energy",
		"(0, 0)  safe zone", "world 12,345s", "next phase in 4m0s",
		"gather 3s", "Inventory 3/10", "stone", "wood",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("agent view missing %q", want)
		}
	}
	if strings.Contains(out, "DEAD") {
		t.Error("live agent rendered as dead")
	}
}

func TestViewAgentDead(t *testing.T) {
	m := testModel()
	st := testStatus()
	st.AgentState.Dead = true
	st.AgentState.DeathCause = "starvation"
	tk, _ := m.status.Begin("agt_1")
	m.status.Resolve(tk, st, nil)
	m.snap = m.buildSnapshot()

	if out := m.renderAgent(); !strings.Contains(out, "DEAD (starvation)") {
		t.Errorf("dead badge missing:\n%s", out)
	}
}

func TestViewNoAgent(t *testing.T) {
	m := newModel(datasource.New("http://127.0.0.1:1"), urlstate.NewMemoryStore(""), 20, 200)
	m.width, m.height = 80, 24

	if m.inputMode != inputAgent {
		t.Error("starting without an agent should open the agent prompt")
	}
	out := m.View()
	if !strings.Contains(out, "No agent selected") {
		t.Error("empty state missing")
	}
	if !strings.Contains(out, "agent id:") {
		t.Error("prompt should replace the status bar")
	}
}

func TestViewMap(t *testing.T) {
	m := testModel()
	m.activeView = viewMap
	m.height = 40
	out := m.View()

	for _, want := range []string{"Map", "center (0, 0)", "operable 2", "threat 2", "A", "safe d<=6", "wild >35"} {
		if !strings.Contains(out, want) {
			t.Errorf("map view missing %q", want)
		}
	}
	if strings.Contains(out, "Terrain") {
		t.Error("no tile selected, detail box should be hidden")
	}
}

func TestViewMapTileDetail(t *testing.T) {
	m := testModel()
	m.activeView = viewMap
	m.height = 40
	m.ui = m.ui.WithSelectedTile("1:0")
	m.snap = m.buildSnapshot()

	out := m.View()
	for _, want := range []string{"Tile 1:0", "Coord", "(1, 0)", "Distance", "Terrain", "grass", "tree (ready)", "Object"} {
		if !strings.Contains(out, want) {
			t.Errorf("tile detail missing %q", want)
		}
	}

	m.ui = m.ui.WithSelectedTile("0:1")
	m.snap = m.buildSnapshot()
	if out := renderTileBox(m.snap.Map); !strings.Contains(out, "bed, box") {
		t.Errorf("objects should be joined:\n%s", out)
	}
}

func TestViewHistory(t *testing.T) {
	m := testModel()
	m.activeView = viewHistory
	out := m.View()

	for _, want := range []string{"History", "page 1 / 1", "(3 of 3 actions)", "gather", "move", "+300s", "hp -1 / hu -2 / en 0", "action: -"} {
		if !strings.Contains(out, want) {
			t.Errorf("history view missing %q", want)
		}
	}
	if strings.Contains(out, "world_phase_changed") {
		t.Error("non-settled events must not be listed")
	}
}

func TestViewHistoryMorePagesIndicator(t *testing.T) {
	m := testModel()
	m.pages = datasource.NewReplayPages(len(testEvents()))
	m.pages.Put(0, testEvents())
	m.snap = m.buildSnapshot()

	if got := pageLabel(m.snap); got != "page 1 / 1+" {
		t.Errorf("pageLabel = %q, want page 1 / 1+", got)
	}
}

func TestViewHistoryExpanded(t *testing.T) {
	m := testModel()
	m.activeView = viewHistory
	m.height = 60
	m.ui = m.ui.ToggleExpanded(m.snap.Page.Items[0].ID)
	m.snap = m.buildSnapshot()

	out := m.View()
	for _, want := range []string{"State changes", "hp: 80 -> 79", "x: 0 -> 1", "wood +2", "(0, 0) -> (1, 0) →"} {
		if !strings.Contains(out, want) {
			t.Errorf("expanded item missing %q", want)
		}
	}
}

func TestViewHistoryFilterBar(t *testing.T) {
	m := testModel()
	m.activeView = viewHistory
	m.ui = m.ui.WithActionFilter("zzz").WithFromTime("yesterday")
	m.snap = m.buildSnapshot()

	out := m.View()
	if !strings.Contains(out, "No actions match the filters") {
		t.Error("empty filtered state missing")
	}
	if !strings.Contains(out, "from: yesterday (ignored)") {
		t.Error("an unparsable bound should be flagged")
	}
}

func TestViewStatusBarShowsError(t *testing.T) {
	m := testModel()
	tk, _ := m.status.Begin("agt_1")
	m.status.Resolve(tk, nil, &datasource.RequestError{StatusCode: 404, Message: "agent not found"})
	m.snap = m.buildSnapshot()

	out := m.View()
	if !strings.Contains(out, "API 404: agent not found") {
		t.Error("feed error should reach the status bar")
	}
	// The last good data is kept.
	if !strings.Contains(out, "Agent agt_1") {
		t.Error("agent should still render after a failed refresh")
	}
}

func TestViewHelpToggle(t *testing.T) {
	m := testModel()
	m.showHelp = true
	if out := m.View(); !strings.Contains(out, "quit") {
		t.Error("help view should list bindings")
	}
}

func TestViewSplitPaneWide(t *testing.T) {
	m := testModel()
	m.width = 140
	m.height = 40
	m.help.Width = 140

	out := m.View()
	if !strings.Contains(out, "│") {
		t.Error("wide agent view should split")
	}
	if !strings.Contains(out, "Agent agt_1") || !strings.Contains(out, "center (0, 0)") {
		t.Error("both panes should render")
	}
	for i, line := range strings.Split(out, "\n") {
		if w := lipgloss.Width(line); w > 140 {
			t.Errorf("line %d is %d wide", i, w)
		}
	}
}

func TestViewLinesFitWidth(t *testing.T) {
	m := testModel()
	for v := viewID(0); v < viewCount; v++ {
		m.activeView = v
		for i, line := range strings.Split(m.View(), "\n") {
			if w := lipgloss.Width(line); w > m.width {
				t.Errorf("%s line %d is %d wide", v, i, w)
			}
		}
	}
}

func TestVitalClass(t *testing.T) {
	tests := []struct {
		v    int
		want vitalLevel
	}{
		{0, vitalCrit},
		{20, vitalCrit},
		{21, vitalWarn},
		{50, vitalWarn},
		{51, vitalGood},
		{100, vitalGood},
	}
	for _, tt := range tests {
		if got := vitalClass(tt.v); got != tt.want {
			t.Errorf("vitalClass(%d) = %d, want %d", tt.v, got, tt.want)
		}
	}
}

func TestCellGlyph(t *testing.T) {
	vm := mapview.Build(testObserve(), "")
	tests := []struct {
		p    model.Point
		want string
	}{
		{model.Point{X: 0, Y: 0}, "A"},
		{model.Point{X: 1, Y: 0}, "t"},
		{model.Point{X: -1, Y: 0}, "s*"},
		{model.Point{X: 0, Y: 1}, "B+"},
		{model.Point{X: -1, Y: -1}, "#"},
		{model.Point{X: 1, Y: 1}, "·"},
		{model.Point{X: 5, Y: 5}, " "},
	}
	for _, tt := range tests {
		if got := cellGlyph(vm, tt.p, snapshot.Highlight{}); got != tt.want {
			t.Errorf("cellGlyph(%v) = %q, want %q", tt.p, got, tt.want)
		}
	}

	before, after := model.Point{X: 1, Y: 1}, model.Point{X: 1, Y: 0}
	hl := snapshot.Highlight{Before: &before, After: &after, HasMovement: true, Arrow: "↑"}
	if got := cellGlyph(vm, before, hl); got != "↑" {
		t.Errorf("moved-from tile = %q, want arrow", got)
	}
	if got := cellGlyph(vm, after, hl); got != "●" {
		t.Errorf("moved-to tile = %q, want ●", got)
	}
}

func TestRenderMapGridPlain(t *testing.T) {
	vm := mapview.Build(testObserve(), "1:1")
	out := renderMapGrid(vm, snapshot.Highlight{}, true)
	lines := strings.Split(out, "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header + 3 rows:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "-1  0  1") {
		t.Errorf("x axis = %q", lines[0])
	}
	if !strings.Contains(lines[3], "[.]") {
		t.Errorf("selected tile should be bracketed: %q", lines[3])
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("plain grid must not contain escape codes")
	}
}

func TestPlaceDetail(t *testing.T) {
	tests := []struct {
		corner  string
		boxLeft bool
	}{
		{mapview.CornerTopLeft, true},
		{mapview.CornerBottomLeft, true},
		{mapview.CornerTopRight, false},
		{mapview.CornerBottomRight, false},
	}
	for _, tt := range tests {
		out := placeDetail("GRID", "BOX", tt.corner)
		gotLeft := strings.Index(out, "BOX") < strings.Index(out, "GRID")
		if gotLeft != tt.boxLeft {
			t.Errorf("%s: box left = %v, want %v (%q)", tt.corner, gotLeft, tt.boxLeft, out)
		}
	}
	if placeDetail("GRID", "", mapview.CornerTopLeft) != "GRID" {
		t.Error("no box should leave the grid alone")
	}
}

func TestRenderSplitPane(t *testing.T) {
	out := renderSplitPane("left1\nleft2", "right1", 10, 10, 5)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "left1     ") {
		t.Errorf("left pane not padded: %q", lines[0])
	}
	if !strings.Contains(lines[0], "right1") {
		t.Errorf("right pane missing: %q", lines[0])
	}
}

func TestPadOrTruncate(t *testing.T) {
	if got := padOrTruncate("abc", 5); got != "abc  " {
		t.Errorf("pad = %q", got)
	}
	if got := padOrTruncate("abcdefgh", 4); got != "abcd" {
		t.Errorf("truncate = %q", got)
	}
}

func TestTruncateLines(t *testing.T) {
	got := truncateLines("short\n"+strings.Repeat("x", 100), 10)
	for _, line := range strings.Split(got, "\n") {
		if lipgloss.Width(line) > 10 {
			t.Errorf("line %q exceeds width", line)
		}
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("the quick brown fox jumps", 10)
	for _, l := range lines {
		if len(l) > 10 {
			t.Errorf("line %q exceeds width", l)
		}
	}
	if strings.Join(lines, " ") != "the quick brown fox jumps" {
		t.Errorf("wrap lost words: %q", lines)
	}
	if got := wrapText(strings.Repeat("a", 25), 10); len(got) != 3 {
		t.Errorf("hard split = %q", got)
	}
}

func TestShortDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "now"},
		{42 * time.Second, "42s"},
		{4 * time.Minute, "4m0s"},
		{90 * time.Minute, "1h30m"},
	}
	for _, tt := range tests {
		if got := shortDuration(tt.d); got != tt.want {
			t.Errorf("shortDuration(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatOccurred(t *testing.T) {
	if got := formatOccurred("garbage"); !strings.HasPrefix(got, "garbage") {
		t.Errorf("unparsable timestamp = %q", got)
	}
	want := t0.Local().Format("01-02 15:04:05")
	if got := formatOccurred(t0.Format(time.RFC3339)); got != want {
		t.Errorf("formatOccurred = %q, want %q", got, want)
	}
}
