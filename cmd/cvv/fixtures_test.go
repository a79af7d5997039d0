package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/daviddao/clawvival_viewer/internal/config"
	"github.com/daviddao/clawvival_viewer/internal/datasource"
	"github.com/daviddao/clawvival_viewer/internal/model"
	"github.com/daviddao/clawvival_viewer/internal/urlstate"
)

var t0 = time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)

// settled builds an action_settled event i minutes before start.
func settled(start time.Time, i int, intent string) model.DomainEvent {
	return model.DomainEvent{
		Type:       model.EventActionSettled,
		OccurredAt: start.Add(-time.Duration(i) * time.Minute).Format(time.RFC3339),
		Payload: map[string]any{
			"decision":                  map[string]any{"intent": intent},
			"result_code":               "OK",
			"world_time_before_seconds": float64(1000 - i*60),
			"world_time_after_seconds":  float64(1300 - i*60),
			"state_before":              map[string]any{"x": 0.0, "y": 0.0, "hp": 80.0},
			"state_after":               map[string]any{"x": 1.0, "y": 0.0, "hp": 79.0},
			"result": map[string]any{
				"vitals_delta":    map[string]any{"hp": -1.0, "hunger": -2.0},
				"inventory_delta": map[string]any{"wood": 2.0},
			},
		},
	}
}

// testEvents returns three settled actions plus one event of another type,
// newest first.
func testEvents() []model.DomainEvent {
	return []model.DomainEvent{
		settled(t0, 0, "gather"),
		{Type: "world_phase_changed", OccurredAt: t0.Add(-30 * time.Second).Format(time.RFC3339)},
		settled(t0, 1, "move"),
		settled(t0, 2, "gather"),
	}
}

func testAgent() model.AgentState {
	return model.AgentState{
		AgentID:           "agt_1",
		Vitals:            model.Vitals{HP: 72, Hunger: 40, Energy: 15},
		Position:          model.Point{X: 0, Y: 0},
		Inventory:         map[string]int{"wood": 2, "stone": 1},
		InventoryCapacity: 10,
		InventoryUsed:     3,
		ActionCooldowns:   map[string]int{"gather": 3},
		UpdatedAt:         t0.Format(time.RFC3339),
	}
}

func testStatus() *model.StatusResponse {
	return &model.StatusResponse{
		AgentState:         testAgent(),
		WorldTimeSeconds:   12345,
		TimeOfDay:          model.TimeOfDayDay,
		NextPhaseInSeconds: 240,
	}
}

// testObserve is a 3x3 window around the origin with a tree east of the
// agent and two objects to the south.
func testObserve() *model.ObserveResponse {
	obs := &model.ObserveResponse{
		AgentState:       testAgent(),
		TimeOfDay:        model.TimeOfDayDay,
		LocalThreatLevel: 2,
		View:             model.View{Width: 3, Height: 3, Center: model.Point{}, Radius: 1},
		Resources: []model.Resource{
			{ID: "r1", Type: "tree", Pos: model.Point{X: 1, Y: 0}},
			{ID: "r2", Type: "stone", Pos: model.Point{X: -1, Y: 0}, IsDepleted: true},
		},
		Objects: []model.Object{
			{ID: "o1", Type: "bed", Pos: model.Point{X: 0, Y: 1}},
			{ID: "o2", Type: "box", Pos: model.Point{X: 0, Y: 1}},
		},
	}
	for y := -1; y <= 1; y++ {
		for x := -1; x <= 1; x++ {
			obs.Tiles = append(obs.Tiles, model.Tile{
				Pos:         model.Point{X: x, Y: y},
				TerrainType: "grass",
				IsWalkable:  !(x == -1 && y == -1),
				IsVisible:   true,
				IsLit:       true,
			})
		}
	}
	return obs
}

// testModel creates a uiModel with every feed loaded. The client points at
// an unroutable address; render and update tests never run its commands.
func testModel() uiModel {
	m := newModel(datasource.New("http://127.0.0.1:1"), urlstate.NewMemoryStore("agt_1"), 20, 200)

	st, _ := m.status.Begin("agt_1")
	m.status.Resolve(st, testStatus(), nil)
	ob, _ := m.observe.Begin("agt_1")
	m.observe.Resolve(ob, testObserve(), nil)
	rp, _ := m.replay.Begin("agt_1")
	m.replay.Resolve(rp, &model.ReplayResponse{Events: testEvents()}, nil)
	m.pages.Put(0, testEvents())

	m.lastRefresh = time.Now()
	m.snap = m.buildSnapshot()
	m.width = 80
	m.height = 24
	m.help.Width = 80
	return m
}

// fakeAPI serves status, observe and a paged replay log. Replay pages hold
// limit events; a request with occurred_to returns events strictly older.
func fakeAPI(t *testing.T, events []model.DomainEvent) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(v); err != nil {
			t.Errorf("encode: %v", err)
		}
	}
	mux.HandleFunc("/api/agent/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, testStatus())
	})
	mux.HandleFunc("/api/agent/observe", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, testObserve())
	})
	mux.HandleFunc("/api/agent/replay", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var before int64
		if s := r.URL.Query().Get("occurred_to"); s != "" {
			before, _ = strconv.ParseInt(s, 10, 64)
		}
		page := []model.DomainEvent{}
		for _, e := range events {
			ts, _ := time.Parse(time.RFC3339, e.OccurredAt)
			if before > 0 && ts.Unix() > before {
				continue
			}
			if len(page) == limit {
				break
			}
			page = append(page, e)
		}
		writeJSON(w, model.ReplayResponse{Events: page})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// withConfig swaps the package config for the duration of a test.
func withConfig(t *testing.T, mutate func(*config.Config)) {
	t.Helper()
	saved := cfg
	c := config.Default()
	mutate(&c)
	cfg = c
	t.Cleanup(func() { cfg = saved })
}
