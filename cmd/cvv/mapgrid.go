package main

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/daviddao/clawvival_viewer/internal/mapview"
	"github.com/daviddao/clawvival_viewer/internal/model"
	"github.com/daviddao/clawvival_viewer/internal/snapshot"
)

// cellGlyph is the character drawn for the tile at p: a marker first, then
// objects, then resources, then terrain.
func cellGlyph(vm mapview.ViewModel, p model.Point, hl snapshot.Highlight) string {
	if s := mapview.MarkerSymbol(p, vm.Agent, hl.Before, hl.After, hl.HasMovement, hl.Arrow); s != "" {
		return s
	}
	k := p.Key()
	if objs := vm.Objects[k]; len(objs) > 0 {
		g := initial(objs[0].Type, true)
		if len(objs) > 1 {
			g += "+"
		}
		return g
	}
	if r, ok := vm.Resources[k]; ok {
		g := initial(r.Type, false)
		if r.IsDepleted {
			g += "*"
		}
		return g
	}
	t, ok := vm.Tiles[k]
	switch {
	case !ok:
		return " "
	case !t.IsWalkable:
		return "#"
	}
	return "·"
}

func initial(s string, upper bool) string {
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return "?"
	}
	if upper {
		return string(unicode.ToUpper(r))
	}
	return string(unicode.ToLower(r))
}

// renderMapGrid draws the observed window with x labels on top and y labels
// on the left. Rows run top to bottom in increasing y. plain drops colors and
// brackets the selected tile instead.
func renderMapGrid(vm mapview.ViewModel, hl snapshot.Highlight, plain bool) string {
	var b strings.Builder

	b.WriteString("    ")
	for _, x := range vm.XRange {
		fmt.Fprintf(&b, "%3d", x)
	}
	if !plain {
		return dimStyle.Render(b.String()) + "\n" + renderStyledRows(vm, hl)
	}
	b.WriteRune('\n')

	for _, y := range vm.YRange {
		fmt.Fprintf(&b, "%4d", y)
		for _, x := range vm.XRange {
			p := model.Point{X: x, Y: y}
			g := cellGlyph(vm, p, hl)
			if g == "·" {
				g = "."
			}
			if p.Key() == vm.EffectiveSelectedTileID {
				b.WriteString(lipgloss.PlaceHorizontal(3, lipgloss.Center, "["+g+"]"))
				continue
			}
			b.WriteString(lipgloss.PlaceHorizontal(3, lipgloss.Center, g))
		}
		b.WriteRune('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderStyledRows(vm mapview.ViewModel, hl snapshot.Highlight) string {
	rows := make([]string, 0, len(vm.YRange))
	for _, y := range vm.YRange {
		var b strings.Builder
		b.WriteString(cellAxisStyle.Render(fmt.Sprint(y)))
		for _, x := range vm.XRange {
			p := model.Point{X: x, Y: y}
			b.WriteString(cellStyle(vm, p, hl).Render(cellGlyph(vm, p, hl)))
		}
		rows = append(rows, b.String())
	}
	return strings.Join(rows, "\n")
}

func cellStyle(vm mapview.ViewModel, p model.Point, hl snapshot.Highlight) lipgloss.Style {
	k := p.Key()
	t, ok := vm.Tiles[k]
	if !ok {
		return cellMissing
	}
	st := zoneStyle(mapview.ZoneByDistance(p))
	if !t.IsVisible && !t.IsLit {
		st = st.Faint(true)
	}
	if vm.IsOperable(p) {
		st = st.Underline(true).UnderlineSpaces(false)
	}
	switch mapview.HighlightOf(p, hl.Before, hl.After) {
	case mapview.HighlightAfter:
		st = st.Foreground(afterColor).Bold(true)
	case mapview.HighlightBefore:
		st = st.Foreground(beforeColor).Bold(true)
	}
	if p == vm.Agent {
		st = st.Foreground(agentColor).Bold(true)
	}
	if k == vm.EffectiveSelectedTileID {
		st = st.Background(selectColor).Foreground(lipgloss.Color("#1E1E2E"))
	}
	return st
}

// mapLegend explains the glyphs and zone colors.
func mapLegend(plain bool) string {
	glyphs := "A agent  ● moved to  arrow moved from  r resource (* depleted)  O object  # blocked"
	if plain {
		return glyphs + "\nzones: safe (d<=6)  forest (7-20)  quarry (21-35)  wild (>35)"
	}
	zones := []struct {
		z     mapview.Zone
		label string
	}{
		{mapview.ZoneSafe, "safe d<=6"},
		{mapview.ZoneForest, "forest 7-20"},
		{mapview.ZoneQuarry, "quarry 21-35"},
		{mapview.ZoneWild, "wild >35"},
	}
	parts := make([]string, len(zones))
	for i, z := range zones {
		parts[i] = zoneStyle(z.z).Width(0).Padding(0, 1).Render(z.label)
	}
	underline := lipgloss.NewStyle().Foreground(operableColor).Underline(true).Render("operable")
	return dimStyle.Render(glyphs) + "\n" + strings.Join(parts, " ") + "  " + underline
}

// tileField is one row of the tile detail box.
type tileField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// tileDetail lists the selected tile's properties. It returns nil when no
// tile is selected.
func tileDetail(vm mapview.ViewModel) []tileField {
	t := vm.SelectedTile
	if t == nil {
		return nil
	}
	resource := "-"
	if r := vm.SelectedResource; r != nil {
		state := "ready"
		if r.IsDepleted {
			state = "depleted"
		}
		resource = fmt.Sprintf("%s (%s)", r.Type, state)
	}
	object := "-"
	if len(vm.SelectedObjects) > 0 {
		types := make([]string, len(vm.SelectedObjects))
		for i, o := range vm.SelectedObjects {
			types[i] = o.Type
		}
		object = strings.Join(types, ", ")
	}
	return []tileField{
		{"Coord", fmt.Sprintf("(%d, %d)", t.Pos.X, t.Pos.Y)},
		{"Distance", fmt.Sprint(mapview.DistanceFromOrigin(t.Pos))},
		{"Zone", string(mapview.ZoneByDistance(t.Pos))},
		{"Terrain", t.TerrainType},
		{"Walkable", yesNo(t.IsWalkable)},
		{"Visible", yesNo(t.IsVisible)},
		{"Lit", yesNo(t.IsLit)},
		{"Resource", resource},
		{"Object", object},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func renderTileBox(vm mapview.ViewModel) string {
	fields := tileDetail(vm)
	if fields == nil {
		return ""
	}
	lines := []string{detailHeaderStyle.Render("Tile " + vm.EffectiveSelectedTileID)}
	for _, f := range fields {
		lines = append(lines, labelStyle.Render(f.Label)+f.Value)
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// placeDetail joins the map grid and the tile box so the box sits in the
// corner opposite the selection.
func placeDetail(grid, box, corner string) string {
	if box == "" {
		return grid
	}
	switch corner {
	case mapview.CornerTopLeft:
		return lipgloss.JoinHorizontal(lipgloss.Top, box, " ", grid)
	case mapview.CornerTopRight:
		return lipgloss.JoinHorizontal(lipgloss.Top, grid, " ", box)
	case mapview.CornerBottomLeft:
		return lipgloss.JoinHorizontal(lipgloss.Bottom, box, " ", grid)
	default:
		return lipgloss.JoinHorizontal(lipgloss.Bottom, grid, " ", box)
	}
}
