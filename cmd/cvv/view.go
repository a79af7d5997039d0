package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/daviddao/clawvival_viewer/internal/history"
	"github.com/daviddao/clawvival_viewer/internal/mapview"
	"github.com/daviddao/clawvival_viewer/internal/model"
	"github.com/daviddao/clawvival_viewer/internal/snapshot"
)

// splitWidth is the terminal width from which the Agent view also shows the
// map and the History view shows the expanded item beside the list.
const splitWidth = 120

// --- View rendering ---

func (m uiModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	// Title bar.
	b.WriteString(m.renderTitleBar())
	b.WriteRune('\n')

	// Tab bar.
	b.WriteString(m.renderTabBar())
	b.WriteRune('\n')
	b.WriteRune('\n')

	// Content area.
	contentHeight := m.height - 5 // title + tabs + status + padding
	if m.showHelp {
		contentHeight -= 3
	}

	var content string
	switch {
	case m.activeView == viewAgent && m.width >= splitWidth && m.snap.Map.HasSnapshot():
		leftWidth := m.width/2 - 1
		rightWidth := m.width - leftWidth - 3 // 3 for separator
		content = renderSplitPane(m.renderAgent(), m.renderMap(), leftWidth, rightWidth, contentHeight)

	case m.activeView == viewHistory && m.width >= splitWidth && m.snap.ExpandedItem != nil:
		leftWidth := m.width/2 - 1
		rightWidth := m.width - leftWidth - 3
		right := renderItemDetail(*m.snap.ExpandedItem, rightWidth)
		content = renderSplitPane(m.renderHistory(false), right, leftWidth, rightWidth, contentHeight)

	default:
		switch m.activeView {
		case viewAgent:
			content = m.renderAgent()
		case viewMap:
			content = m.renderMap()
		case viewHistory:
			content = m.renderHistory(true)
		}

		// Apply scroll using a local variable; View has a value receiver.
		lines := strings.Split(content, "\n")
		scrollPos := m.scrollPos
		if scrollPos >= len(lines) {
			scrollPos = max(0, len(lines)-1)
		}
		if scrollPos > 0 {
			lines = lines[scrollPos:]
		}
		if len(lines) > contentHeight {
			lines = lines[:max(contentHeight, 0)]
		}
		content = strings.Join(lines, "\n")
	}

	content = truncateLines(content, m.width)
	b.WriteString(content)

	// Pad to fill screen.
	rendered := strings.Count(b.String(), "\n")
	for rendered < m.height-2 {
		b.WriteRune('\n')
		rendered++
	}

	// Prompt / help / status bar.
	switch {
	case m.inputMode != inputNone:
		b.WriteString(m.input.View())
	case m.showHelp:
		b.WriteString(m.help.View(keys))
	default:
		b.WriteString(m.renderStatusBar())
	}

	return b.String()
}

func (m uiModel) renderTitleBar() string {
	title := titleStyle.Render("clawvival viewer")
	agent := m.ui.AgentID
	if agent == "" {
		agent = "no agent"
	}
	parts := []string{agent, fmt.Sprintf("%d actions", m.snap.SettledCount), fmt.Sprintf("%d pages", m.snap.ReplayPages)}
	if m.snap.TimeOfDay != "" {
		parts = append(parts, m.snap.TimeOfDay)
	}
	stats := dimStyle.Render(strings.Join(parts, " | "))
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(title)-lipgloss.Width(stats)-2))
	return title + gap + stats
}

func (m uiModel) renderTabBar() string {
	var tabs []string
	for i := viewID(0); i < viewCount; i++ {
		if i == m.activeView {
			tabs = append(tabs, tabActiveStyle.Render(i.String()))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(i.String()))
		}
	}
	return strings.Join(tabs, " ")
}

func (m uiModel) busy() bool {
	return m.status.InFlight() || m.observe.InFlight() || m.replay.InFlight()
}

func (m uiModel) renderStatusBar() string {
	if err := m.snap.Err(); err != nil {
		line := " " + err.Error()
		gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(line)))
		return errorBarStyle.Render(line + gap)
	}
	left := fmt.Sprintf(" %s", contextHelp(m.activeView))
	right := "waiting for data "
	if !m.lastRefresh.IsZero() {
		right = fmt.Sprintf("refreshed %s ", humanize.Time(m.lastRefresh))
	}
	if m.refreshInterval > 0 {
		right += dimStyle.Render("every "+m.refreshInterval.String()) + " "
	}
	if m.busy() {
		right = m.spinner.View() + " " + right
	}
	// Narrow terminals lose the end of the help, never the refresh state.
	left = padOrTruncate(left, max(0, m.width-lipgloss.Width(right)))
	return statusBarStyle.Render(left + right)
}

// --- Agent view ---

func (m uiModel) renderAgent() string {
	if m.ui.AgentID == "" {
		return dimStyle.Render("No agent selected. Press i to enter an agent id.")
	}
	a := m.snap.Agent
	if a == nil {
		if err := m.snap.Err(); err != nil {
			return badStyle.Render(err.Error())
		}
		return m.spinner.View() + " " + dimStyle.Render("Loading agent "+m.ui.AgentID+"...")
	}

	var b strings.Builder
	header := headerStyle.Render("Agent " + a.AgentID)
	if a.Dead {
		cause := a.DeathCause
		if cause == "" {
			cause = "unknown"
		}
		header += "  " + badStyle.Render("DEAD ("+cause+")")
	}
	b.WriteString(header)
	b.WriteString("\n\n")

	b.WriteString(renderVital("HP", a.Vitals.HP))
	b.WriteString(renderVital("Hunger", a.Vitals.Hunger))
	b.WriteString(renderVital("Energy", a.Vitals.Energy))
	b.WriteRune('\n')

	zone := a.CurrentZone
	if zone == "" {
		zone = string(mapview.ZoneByDistance(a.Position))
	}
	b.WriteString(labelStyle.Render("Position") + fmt.Sprintf("(%d, %d)  %s zone\n", a.Position.X, a.Position.Y, zone))

	clock := fmt.Sprintf("%s  world %ss", orDash(m.snap.TimeOfDay), humanize.Comma(m.snap.WorldTimeSeconds))
	if m.snap.NextPhaseInSeconds > 0 {
		clock += "  next phase in " + shortDuration(time.Duration(m.snap.NextPhaseInSeconds)*time.Second)
	}
	b.WriteString(labelStyle.Render("Time") + clock + "\n")
	if m.snap.Map.HasSnapshot() {
		b.WriteString(labelStyle.Render("Threat") + fmt.Sprintf("%d  operable radius %d\n", m.snap.Map.ThreatLevel, m.snap.Map.OperableRadius))
	}
	if oa := a.OngoingAction; oa != nil {
		line := fmt.Sprintf("%s for %dm", oa.Type, oa.Minutes)
		if end, err := time.Parse(time.RFC3339, oa.EndAt); err == nil {
			line += ", ends " + end.Local().Format("15:04")
		}
		b.WriteString(labelStyle.Render("Action") + warnStyle.Render(line) + "\n")
	}
	if len(a.StatusEffects) > 0 {
		b.WriteString(labelStyle.Render("Effects") + strings.Join(a.StatusEffects, ", ") + "\n")
	}
	if cd := formatCounts(a.ActionCooldowns, "s"); cd != "" {
		b.WriteString(labelStyle.Render("Cooldowns") + cd + "\n")
	}
	if a.SessionID != "" {
		b.WriteString(labelStyle.Render("Session") + dimStyle.Render(a.SessionID) + "\n")
	}
	if ts, err := time.Parse(time.RFC3339Nano, a.UpdatedAt); err == nil {
		b.WriteString(labelStyle.Render("Updated") + humanize.Time(ts) + "\n")
	}

	b.WriteRune('\n')
	b.WriteString(headerStyle.Render(fmt.Sprintf("Inventory %d/%d", a.InventoryUsed, a.InventoryCapacity)))
	b.WriteRune('\n')
	if len(a.Inventory) == 0 {
		b.WriteString(dimStyle.Render("  (empty)"))
		b.WriteRune('\n')
	}
	for _, k := range sortedKeys(a.Inventory) {
		fmt.Fprintf(&b, "  %-14s %s\n", k, humanize.Comma(int64(a.Inventory[k])))
	}
	return b.String()
}

// renderVital draws one vital as a colored bar.
func renderVital(label string, v int) string {
	level := vitalClass(v)
	bar := progress.New(
		progress.WithSolidFill(level.color()),
		progress.WithoutPercentage(),
		progress.WithWidth(24),
	)
	pct := min(max(float64(v)/100, 0), 1)
	value := lipgloss.NewStyle().Foreground(lipgloss.Color(level.color())).Render(fmt.Sprintf("%3d", v))
	return labelStyle.Render(label) + bar.ViewAs(pct) + " " + value + "\n"
}

func formatCounts(m map[string]int, unit string) string {
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		if m[k] > 0 {
			parts = append(parts, fmt.Sprintf("%s %d%s", k, m[k], unit))
		}
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// --- Map view ---

func (m uiModel) renderMap() string {
	vm := m.snap.Map
	if !vm.HasSnapshot() {
		if m.ui.AgentID == "" {
			return dimStyle.Render("No agent selected.")
		}
		return m.spinner.View() + " " + dimStyle.Render("Waiting for an observe snapshot...")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("Map"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  center (%d, %d)  %s  operable %d  threat %d",
		vm.Center.X, vm.Center.Y, orDash(vm.TimeOfDay), vm.OperableRadius, vm.ThreatLevel)))
	b.WriteString("\n\n")

	grid := renderMapGrid(vm, m.snap.Highlight, false)
	b.WriteString(placeDetail(grid, renderTileBox(vm), vm.DetailCorner))
	b.WriteString("\n\n")
	if h := m.snap.Highlight; h.HasMovement {
		b.WriteString(detailHeaderStyle.Render("Expanded action moved "+h.Arrow) +
			dimStyle.Render(fmt.Sprintf("  (%d, %d) to (%d, %d)", h.Before.X, h.Before.Y, h.After.X, h.After.Y)))
		b.WriteString("\n")
	}
	b.WriteString(mapLegend(false))
	return b.String()
}

// --- History view ---

func (m uiModel) renderHistory(inlineDetail bool) string {
	if m.ui.AgentID == "" {
		return dimStyle.Render("No agent selected.")
	}
	s := m.snap
	var b strings.Builder

	b.WriteString(headerStyle.Render("History"))
	b.WriteString("  " + pageIndicator(s))
	if s.ReplayInFlight {
		b.WriteString("  " + m.spinner.View() + dimStyle.Render(" loading older events"))
	}
	b.WriteRune('\n')
	b.WriteString(renderFilterBar(s.UI.Filter))
	b.WriteString("\n\n")

	if len(s.Page.Items) == 0 {
		switch {
		case s.ReplayPages == 0:
			b.WriteString(dimStyle.Render("  Loading history..."))
		case !s.UI.Filter.IsZero():
			b.WriteString(dimStyle.Render("  No actions match the filters. Press x to clear them."))
		default:
			b.WriteString(dimStyle.Render("  No settled actions yet."))
		}
		b.WriteRune('\n')
		return b.String()
	}

	for i, item := range s.Page.Items {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		row := prefix + renderHistoryRow(item)
		if i == m.cursor {
			row = selectedRowStyle.Render(row)
		}
		b.WriteString(row)
		b.WriteRune('\n')
		if inlineDetail && s.ExpandedItem != nil && item.ID == s.ExpandedItem.ID {
			for _, line := range strings.Split(renderItemDetail(item, m.width-4), "\n") {
				b.WriteString("    " + line + "\n")
			}
		}
	}
	return b.String()
}

// pageIndicator shows "current / count", with a trailing "+" while older
// events remain on the server.
func pageIndicator(s *snapshot.DataSnapshot) string {
	return dimStyle.Render(fmt.Sprintf("%s  (%d of %d actions)", pageLabel(s), s.Page.Total, s.SettledCount))
}

func pageLabel(s *snapshot.DataSnapshot) string {
	label := fmt.Sprintf("page %d / %d", s.Page.CurrentPage, s.Page.PageCount)
	if s.HasMore {
		label += "+"
	}
	return label
}

func renderFilterBar(c history.Criteria) string {
	field := func(name, value string, isTime bool) string {
		if strings.TrimSpace(value) == "" {
			return dimStyle.Render(name + ": -")
		}
		if isTime {
			if _, ok := history.ParseBound(value, c.Location); !ok {
				return warnStyle.Render(name + ": " + value + " (ignored)")
			}
		}
		return name + ": " + goodStyle.Render(value)
	}
	return strings.Join([]string{
		field("action", c.ActionType, false),
		field("from", c.FromTime, true),
		field("to", c.ToTime, true),
	}, "   ")
}

// renderHistoryRow is one compact history line.
func renderHistoryRow(item history.ActionHistoryItem) string {
	d := history.VitalsDelta(item)
	return fmt.Sprintf("%s  %-18s %s %8s  %s",
		formatOccurred(item.OccurredAt),
		truncate(item.ActionType, 18),
		resultStyle(item.ResultCode).Render(fmt.Sprintf("%-7s", item.ResultCode)),
		history.WorldTimeDeltaLabel(item.WorldTimeBeforeSeconds, item.WorldTimeAfterSeconds),
		vitalsDeltaLabel(d),
	)
}

func vitalsDeltaLabel(d model.Vitals) string {
	return fmt.Sprintf("hp %s / hu %s / en %s", history.SignNum(d.HP), history.SignNum(d.Hunger), history.SignNum(d.Energy))
}

// formatOccurred renders an RFC 3339 timestamp in local time, or the raw
// string when it does not parse.
func formatOccurred(s string) string {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Sprintf("%-14s", truncate(s, 11))
	}
	return t.Local().Format("01-02 15:04:05")
}

// renderItemDetail is the expanded view of one history item.
func renderItemDetail(item history.ActionHistoryItem, width int) string {
	var b strings.Builder
	b.WriteString(detailHeaderStyle.Render(item.ActionType))
	b.WriteString("  " + resultStyle(item.ResultCode).Render(item.ResultCode))
	b.WriteRune('\n')

	b.WriteString(labelStyle.Render("At") + item.OccurredAt + "\n")
	b.WriteString(labelStyle.Render("World") + fmt.Sprintf("%s -> %s (%s)\n",
		formatSeconds(item.WorldTimeBeforeSeconds), formatSeconds(item.WorldTimeAfterSeconds),
		history.WorldTimeDeltaLabel(item.WorldTimeBeforeSeconds, item.WorldTimeAfterSeconds)))
	b.WriteString(labelStyle.Render("Vitals") + vitalsDeltaLabel(history.VitalsDelta(item)) + "\n")
	b.WriteString(labelStyle.Render("Inventory") + history.InventoryDeltaSummary(item) + "\n")

	before, after := history.ExtractPositions(&item)
	if before != nil || after != nil {
		pos := fmt.Sprintf("%s -> %s", pointLabel(before), pointLabel(after))
		if moved, arrow := mapview.Movement(before, after); moved {
			pos += " " + arrow
		}
		b.WriteString(labelStyle.Render("Position") + pos + "\n")
	}

	diff := history.FlatDiff(item.StateBefore, item.StateAfter)
	if len(diff) > 0 {
		b.WriteString(headerStyle.Render("State changes"))
		b.WriteRune('\n')
		for _, d := range diff {
			line := fmt.Sprintf("%s: %s -> %s", d.Key, history.CanonicalJSON(d.Before), history.CanonicalJSON(d.After))
			for _, w := range wrapText(line, max(width-2, 20)) {
				b.WriteString("  " + w + "\n")
			}
		}
	}
	if len(item.Result) > 0 {
		b.WriteString(headerStyle.Render("Result"))
		b.WriteRune('\n')
		for _, w := range wrapText(history.CanonicalJSON(item.Result), max(width-2, 20)) {
			b.WriteString("  " + dimStyle.Render(w) + "\n")
		}
	}
	b.WriteString(dimStyle.Render("id " + item.ID))
	return b.String()
}

func pointLabel(p *model.Point) string {
	if p == nil {
		return "?"
	}
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

func formatSeconds(f float64) string {
	return humanize.Comma(int64(f)) + "s"
}

// --- Split pane rendering ---

// renderSplitPane renders two content strings side by side with a vertical
// separator. Each line is padded or truncated to its pane width.
func renderSplitPane(left, right string, leftWidth, rightWidth, maxHeight int) string {
	leftLines := strings.Split(left, "\n")
	rightLines := strings.Split(right, "\n")

	// Pad to equal height.
	maxLines := max(len(leftLines), len(rightLines))
	if maxLines > maxHeight {
		maxLines = maxHeight
	}
	for len(leftLines) < maxLines {
		leftLines = append(leftLines, "")
	}
	for len(rightLines) < maxLines {
		rightLines = append(rightLines, "")
	}

	sep := dimStyle.Render("│")
	var b strings.Builder
	for i := 0; i < maxLines; i++ {
		b.WriteString(padOrTruncate(leftLines[i], leftWidth))
		b.WriteString(" ")
		b.WriteString(sep)
		b.WriteString(" ")
		b.WriteString(padOrTruncate(rightLines[i], rightWidth))
		b.WriteRune('\n')
	}
	return b.String()
}

// padOrTruncate pads or truncates a styled line to the target visible width.
func padOrTruncate(s string, width int) string {
	w := lipgloss.Width(s)
	if w > width {
		return ansi.Truncate(s, width, "")
	}
	return s + strings.Repeat(" ", width-w)
}

// --- Helpers ---

// truncateLines truncates each line in content to at most width visible
// characters, preserving ANSI escape codes.
func truncateLines(content string, width int) string {
	if width <= 0 {
		return content
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if lipgloss.Width(line) > width {
			lines[i] = ansi.Truncate(line, width, "")
		}
	}
	return strings.Join(lines, "\n")
}

// wrapText breaks s into lines of at most width characters, splitting on word
// boundaries where possible. If a single word exceeds width it is hard-split.
func wrapText(s string, width int) []string {
	if width <= 0 {
		width = 80
	}
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		lines = append(lines, wrapParagraph(para, width)...)
	}
	return lines
}

func wrapParagraph(s string, width int) []string {
	if len(s) <= width {
		return []string{s}
	}
	var lines []string
	for len(s) > 0 {
		if len(s) <= width {
			lines = append(lines, s)
			break
		}
		cut := strings.LastIndexByte(s[:width+1], ' ')
		if cut <= 0 {
			lines = append(lines, s[:width])
			s = s[width:]
			continue
		}
		lines = append(lines, s[:cut])
		s = s[cut+1:]
	}
	return lines
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func shortDuration(d time.Duration) string {
	if d < 0 {
		return "now"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
