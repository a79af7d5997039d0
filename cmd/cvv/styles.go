package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/daviddao/clawvival_viewer/internal/mapview"
)

// --- Styles ---

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F5A97F")).
			Background(lipgloss.Color("#1E1E2E")).
			Padding(0, 1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1E1E2E")).
			Background(lipgloss.Color("#F5A97F")).
			Padding(0, 1)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#6C7086")).
				Background(lipgloss.Color("#313244")).
				Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#89B4FA"))

	goodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6E3A1"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F9E2AF"))

	badStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C7086"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94E2D5")).
			Width(10)

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#CDD6F4"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CDD6F4")).
			Background(lipgloss.Color("#1E1E2E"))

	errorBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1E1E2E")).
			Background(lipgloss.Color("#F38BA8"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#585B70")).
			Padding(0, 1)

	detailHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#CBA6F7"))
)

// Vital thresholds.
const (
	vitalCritical = 20
	vitalWarning  = 50
)

type vitalLevel int

const (
	vitalGood vitalLevel = iota
	vitalWarn
	vitalCrit
)

func vitalClass(v int) vitalLevel {
	switch {
	case v <= vitalCritical:
		return vitalCrit
	case v <= vitalWarning:
		return vitalWarn
	}
	return vitalGood
}

func (l vitalLevel) color() string {
	switch l {
	case vitalCrit:
		return "#F38BA8"
	case vitalWarn:
		return "#F9E2AF"
	}
	return "#A6E3A1"
}

// --- Map cell styles ---

var zoneColors = map[mapview.Zone]string{
	mapview.ZoneSafe:   "#1E3A5F",
	mapview.ZoneForest: "#1F3D2C",
	mapview.ZoneQuarry: "#3D3531",
	mapview.ZoneWild:   "#4A2330",
}

var (
	cellBase      = lipgloss.NewStyle().Width(3).Align(lipgloss.Center).Foreground(lipgloss.Color("#CDD6F4"))
	cellMissing   = lipgloss.NewStyle().Width(3).Align(lipgloss.Center).Foreground(lipgloss.Color("#45475A"))
	cellAxisStyle = lipgloss.NewStyle().Width(4).Align(lipgloss.Right).Foreground(lipgloss.Color("#6C7086"))
	agentColor    = lipgloss.Color("#FF6E4A")
	beforeColor   = lipgloss.Color("#FAB387")
	afterColor    = lipgloss.Color("#A6E3A1")
	selectColor   = lipgloss.Color("#F9E2AF")
	operableColor = lipgloss.Color("#94E2D5")
)

func zoneStyle(z mapview.Zone) lipgloss.Style {
	return cellBase.Background(lipgloss.Color(zoneColors[z]))
}

// resultStyle colors a result code badge.
func resultStyle(code string) lipgloss.Style {
	switch code {
	case "OK", "ok":
		return goodStyle
	case "FAILED", "failed":
		return badStyle
	}
	return warnStyle
}
