package main

import (
	"encoding/json"
	"os"

	"github.com/daviddao/clawvival_viewer/internal/history"
	"github.com/daviddao/clawvival_viewer/internal/model"
	"github.com/daviddao/clawvival_viewer/internal/snapshot"
)

// jsonOutput is the structure for --json mode.
type jsonOutput struct {
	AgentID string            `json:"agent_id"`
	Agent   *model.AgentState `json:"agent"`
	World   jsonWorld         `json:"world"`
	History jsonHistory       `json:"history"`
	Map     jsonMap           `json:"map"`
	Stats   jsonStats         `json:"stats"`
}

type jsonWorld struct {
	WorldTimeSeconds   int64  `json:"world_time_seconds"`
	TimeOfDay          string `json:"time_of_day"`
	NextPhaseInSeconds int64  `json:"next_phase_in_seconds"`
}

type jsonHistory struct {
	Page      int                         `json:"page"`
	PageCount int                         `json:"page_count"`
	PageSize  int                         `json:"page_size"`
	Total     int                         `json:"total"`
	HasMore   bool                        `json:"has_more"`
	Filter    *jsonFilter                 `json:"filter,omitempty"`
	Items     []history.ActionHistoryItem `json:"items"`
}

type jsonFilter struct {
	ActionType string `json:"action_type,omitempty"`
	FromTime   string `json:"from_time,omitempty"`
	ToTime     string `json:"to_time,omitempty"`
}

type jsonMap struct {
	Center         *model.Point `json:"center"`
	Radius         int          `json:"radius"`
	TimeOfDay      string       `json:"time_of_day,omitempty"`
	OperableRadius int          `json:"operable_radius"`
	ThreatLevel    int          `json:"threat_level"`
	Tiles          int          `json:"tiles"`
	Resources      int          `json:"resources"`
	Objects        int          `json:"objects"`
	SelectedTile   []tileField  `json:"selected_tile,omitempty"`
}

type jsonStats struct {
	RawEvents      int `json:"raw_events"`
	ReplayPages    int `json:"replay_pages"`
	SettledActions int `json:"settled_actions"`
}

// buildJSONOutput converts a snapshot into the JSON output structure.
func buildJSONOutput(snap *snapshot.DataSnapshot) jsonOutput {
	return jsonOutput{
		AgentID: snap.UI.AgentID,
		Agent:   snap.Agent,
		World: jsonWorld{
			WorldTimeSeconds:   snap.WorldTimeSeconds,
			TimeOfDay:          snap.TimeOfDay,
			NextPhaseInSeconds: snap.NextPhaseInSeconds,
		},
		History: buildJSONHistory(snap),
		Map:     buildJSONMap(snap),
		Stats: jsonStats{
			RawEvents:      snap.RawEvents,
			ReplayPages:    snap.ReplayPages,
			SettledActions: snap.SettledCount,
		},
	}
}

func buildJSONHistory(snap *snapshot.DataSnapshot) jsonHistory {
	h := jsonHistory{
		Page:      snap.Page.CurrentPage,
		PageCount: snap.Page.PageCount,
		PageSize:  snap.Page.PageSize,
		Total:     snap.Page.Total,
		HasMore:   snap.HasMore,
		Items:     snap.Page.Items,
	}
	if h.Items == nil {
		h.Items = []history.ActionHistoryItem{}
	}
	if f := snap.UI.Filter; !f.IsZero() {
		h.Filter = &jsonFilter{ActionType: f.ActionType, FromTime: f.FromTime, ToTime: f.ToTime}
	}
	return h
}

func buildJSONMap(snap *snapshot.DataSnapshot) jsonMap {
	vm := snap.Map
	objects := 0
	for _, objs := range vm.Objects {
		objects += len(objs)
	}
	return jsonMap{
		Center:         vm.Center,
		Radius:         max(len(vm.XRange)-1, 0) / 2,
		TimeOfDay:      vm.TimeOfDay,
		OperableRadius: vm.OperableRadius,
		ThreatLevel:    vm.ThreatLevel,
		Tiles:          len(vm.Tiles),
		Resources:      len(vm.Resources),
		Objects:        objects,
		SelectedTile:   tileDetail(vm),
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
