// Package mapview derives everything the map panel draws from one observe
// snapshot: coordinate indexes, the visible window, zone bands, the
// operable radius and the selected tile.
package mapview

import (
	"github.com/daviddao/clawvival_viewer/internal/model"
)

// Zone is a fixed geography band measured from the world origin.
type Zone string

const (
	ZoneSafe   Zone = "safe"
	ZoneForest Zone = "forest"
	ZoneQuarry Zone = "quarry"
	ZoneWild   Zone = "wild"
)

// Highlight marks a tile touched by the expanded history item.
type Highlight int

const (
	HighlightNone Highlight = iota
	HighlightBefore
	HighlightAfter
)

func (h Highlight) String() string {
	switch h {
	case HighlightBefore:
		return "before"
	case HighlightAfter:
		return "after"
	default:
		return ""
	}
}

// Corner values returned by TileDetailCorner.
const (
	CornerBottomRight = "bottom-right"
	CornerBottomLeft  = "bottom-left"
	CornerTopRight    = "top-right"
	CornerTopLeft     = "top-left"
)

// ViewModel is the derived, read-only state of the map panel.
type ViewModel struct {
	Tiles     map[string]model.Tile
	Resources map[string]model.Resource
	Objects   map[string][]model.Object

	XRange []int
	YRange []int

	Center         *model.Point
	Agent          model.Point
	TimeOfDay      string
	OperableRadius int
	ThreatLevel    int

	EffectiveSelectedTileID string
	SelectedTile            *model.Tile
	SelectedResource        *model.Resource
	SelectedObjects         []model.Object
	DetailCorner            string
}

// HasSnapshot reports whether an observe snapshot has been loaded.
func (vm ViewModel) HasSnapshot() bool {
	return vm.Center != nil
}

// Build indexes obs and resolves selectedTileID against it. A nil snapshot
// produces an empty model with the default detail corner.
func Build(obs *model.ObserveResponse, selectedTileID string) ViewModel {
	vm := ViewModel{
		Tiles:          map[string]model.Tile{},
		Resources:      map[string]model.Resource{},
		Objects:        map[string][]model.Object{},
		OperableRadius: OperableRadius(""),
		DetailCorner:   CornerBottomRight,
	}
	if obs == nil {
		return vm
	}

	for _, t := range obs.Tiles {
		vm.Tiles[t.Pos.Key()] = t
	}
	for _, r := range obs.Resources {
		vm.Resources[r.Pos.Key()] = r
	}
	for _, o := range obs.Objects {
		k := o.Pos.Key()
		vm.Objects[k] = append(vm.Objects[k], o)
	}

	center := obs.View.Center
	vm.Center = &center
	vm.XRange = window(center.X, obs.View.Radius)
	vm.YRange = window(center.Y, obs.View.Radius)
	vm.Agent = obs.AgentState.Position
	vm.TimeOfDay = obs.TimeOfDay
	vm.OperableRadius = OperableRadius(obs.TimeOfDay)
	vm.ThreatLevel = obs.LocalThreatLevel

	// A selection that no longer exists after a re-center is dropped.
	if tile, ok := vm.Tiles[selectedTileID]; ok {
		vm.EffectiveSelectedTileID = selectedTileID
		vm.SelectedTile = &tile
		if r, ok := vm.Resources[selectedTileID]; ok {
			vm.SelectedResource = &r
		}
		vm.SelectedObjects = vm.Objects[selectedTileID]
		pos := tile.Pos
		vm.DetailCorner = TileDetailCorner(&pos, vm.Center)
	}
	return vm
}

func window(center, radius int) []int {
	if radius < 0 {
		return []int{}
	}
	out := make([]int, 0, 2*radius+1)
	for v := center - radius; v <= center+radius; v++ {
		out = append(out, v)
	}
	return out
}

// IsOperable reports whether the tile at p lies within the operable radius
// of the agent.
func (vm ViewModel) IsOperable(p model.Point) bool {
	return IsOperable(p, vm.Agent, vm.OperableRadius)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Manhattan is the grid distance between a and b.
func Manhattan(a, b model.Point) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// DistanceFromOrigin is the Manhattan distance from (0,0).
func DistanceFromOrigin(p model.Point) int {
	return Manhattan(p, model.Point{})
}

// ZoneByDistance classifies p by its distance from the world origin,
// independent of where the agent stands.
func ZoneByDistance(p model.Point) Zone {
	switch d := DistanceFromOrigin(p); {
	case d <= 6:
		return ZoneSafe
	case d <= 20:
		return ZoneForest
	case d <= 35:
		return ZoneQuarry
	default:
		return ZoneWild
	}
}

// OperableRadius is 1 at night and 2 otherwise.
func OperableRadius(timeOfDay string) int {
	if timeOfDay == model.TimeOfDayNight {
		return 1
	}
	return 2
}

// IsOperable reports whether tile is within radius of the agent.
func IsOperable(tile, agent model.Point, radius int) bool {
	return Manhattan(tile, agent) <= radius
}

// TileDetailCorner picks the screen corner diagonally opposite the selected
// tile's quadrant, so the detail box never covers the selection.
func TileDetailCorner(selected, center *model.Point) string {
	if selected == nil || center == nil {
		return CornerBottomRight
	}
	vertical := "top"
	if selected.Y <= center.Y {
		vertical = "bottom"
	}
	horizontal := "left"
	if selected.X <= center.X {
		horizontal = "right"
	}
	return vertical + "-" + horizontal
}

// DirectionArrow is the 8-way arrow from one point to another. Screen y grows
// downward, so a negative dy points up. Equal points give a neutral dot.
func DirectionArrow(from, to model.Point) string {
	dx, dy := to.X-from.X, to.Y-from.Y
	switch {
	case dx == 0 && dy < 0:
		return "↑"
	case dx == 0 && dy > 0:
		return "↓"
	case dx < 0 && dy == 0:
		return "←"
	case dx > 0 && dy == 0:
		return "→"
	case dx > 0 && dy < 0:
		return "↗"
	case dx < 0 && dy < 0:
		return "↖"
	case dx > 0 && dy > 0:
		return "↘"
	case dx < 0 && dy > 0:
		return "↙"
	}
	return "•"
}

// Movement reports whether before and after differ and, if so, the arrow
// between them. Either point missing means no movement.
func Movement(before, after *model.Point) (bool, string) {
	if before == nil || after == nil || *before == *after {
		return false, ""
	}
	return true, DirectionArrow(*before, *after)
}

// HighlightOf classifies tile against a before/after pair. After wins when
// both coincide.
func HighlightOf(tile model.Point, before, after *model.Point) Highlight {
	if after != nil && *after == tile {
		return HighlightAfter
	}
	if before != nil && *before == tile {
		return HighlightBefore
	}
	return HighlightNone
}

// MarkerSymbol is the glyph drawn on a tile: "A" for the agent, the movement
// arrow on the tile moved from, "●" on the tile moved to, and "+"/"-" for
// before/after highlights without movement.
func MarkerSymbol(tile, agent model.Point, before, after *model.Point, hasMovement bool, arrow string) string {
	if tile == agent {
		return "A"
	}
	isBefore := before != nil && *before == tile
	isAfter := after != nil && *after == tile
	switch {
	case isBefore && hasMovement:
		return arrow
	case isAfter && hasMovement:
		return "●"
	case isAfter:
		return "+"
	case isBefore:
		return "-"
	}
	return ""
}
