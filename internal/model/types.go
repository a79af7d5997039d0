// Package model defines the wire types read from the Clawvival agent API.
//
// The console is read-only: it polls three endpoints (status, observe and
// replay) and never writes back. Every type here decodes permissively.
// Unknown fields are ignored and missing fields stay zero-valued, so a
// slightly drifted backend still renders.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Point is an integer grid coordinate. Equality is structural.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Key returns the canonical "x:y" index key for p.
func (p Point) Key() string {
	return fmt.Sprintf("%d:%d", p.X, p.Y)
}

// ParseKey is the inverse of Point.Key.
func ParseKey(key string) (Point, bool) {
	xs, ys, ok := strings.Cut(key, ":")
	if !ok {
		return Point{}, false
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return Point{}, false
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return Point{}, false
	}
	return Point{X: x, Y: y}, true
}

// Vitals are the three survival meters, nominally 0..100.
type Vitals struct {
	HP     int `json:"hp"`
	Hunger int `json:"hunger"`
	Energy int `json:"energy"`
}

// OngoingAction describes a long-running action the agent is locked into.
type OngoingAction struct {
	Type    string `json:"type"`
	Minutes int    `json:"minutes"`
	EndAt   string `json:"end_at"`
}

// AgentState is the agent aggregate as returned by every endpoint.
type AgentState struct {
	AgentID           string         `json:"agent_id"`
	SessionID         string         `json:"session_id,omitempty"`
	Vitals            Vitals         `json:"vitals"`
	Position          Point          `json:"position"`
	CurrentZone       string         `json:"current_zone,omitempty"`
	Inventory         map[string]int `json:"inventory"`
	InventoryCapacity int            `json:"inventory_capacity"`
	InventoryUsed     int            `json:"inventory_used"`
	ActionCooldowns   map[string]int `json:"action_cooldowns,omitempty"`
	StatusEffects     []string       `json:"status_effects,omitempty"`
	Dead              bool           `json:"dead"`
	DeathCause        string         `json:"death_cause"`
	OngoingAction     *OngoingAction `json:"ongoing_action,omitempty"`
	UpdatedAt         string         `json:"updated_at"`
}

// Tile is one observed map cell.
type Tile struct {
	Pos         Point  `json:"pos"`
	TerrainType string `json:"terrain_type"`
	IsWalkable  bool   `json:"is_walkable"`
	IsLit       bool   `json:"is_lit"`
	IsVisible   bool   `json:"is_visible"`
}

// Resource is a harvestable node. At most one per coordinate.
type Resource struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Pos        Point  `json:"pos"`
	IsDepleted bool   `json:"is_depleted"`
}

// Object is a placed world object (bed, box, farm plot...). Several objects
// may share a coordinate.
type Object struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Pos  Point  `json:"pos"`
}

// View is the square window the observe snapshot covers.
type View struct {
	Width  int   `json:"width"`
	Height int   `json:"height"`
	Center Point `json:"center"`
	Radius int   `json:"radius"`
}

// StatusResponse is the body of POST /api/agent/status.
type StatusResponse struct {
	AgentState         AgentState `json:"agent_state"`
	WorldTimeSeconds   int64      `json:"world_time_seconds"`
	TimeOfDay          string     `json:"time_of_day"`
	NextPhaseInSeconds int64      `json:"next_phase_in_seconds"`
}

// ObserveResponse is the body of POST /api/agent/observe: the status fields
// plus the spatial snapshot around the agent.
type ObserveResponse struct {
	AgentState         AgentState `json:"agent_state"`
	WorldTimeSeconds   int64      `json:"world_time_seconds"`
	TimeOfDay          string     `json:"time_of_day"`
	NextPhaseInSeconds int64      `json:"next_phase_in_seconds"`
	LocalThreatLevel   int        `json:"local_threat_level"`
	View               View       `json:"view"`
	Tiles              []Tile     `json:"tiles"`
	Resources          []Resource `json:"resources"`
	Objects            []Object   `json:"objects"`
}

// DomainEvent is one immutable entry of the agent's event log.
//
// OccurredAt is kept as the raw wire string: dedup keys are built from it and
// must be byte-exact across overlapping pages.
type DomainEvent struct {
	Type       string         `json:"type"`
	OccurredAt string         `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// ReplayResponse is the body of GET /api/agent/replay. Events are most
// recent first.
type ReplayResponse struct {
	Events      []DomainEvent `json:"events"`
	LatestState AgentState    `json:"latest_state"`
}

// Event types the console cares about.
const (
	EventActionSettled = "action_settled"
)

// Times of day reported by the world clock.
const (
	TimeOfDayDay   = "day"
	TimeOfDayNight = "night"
)
