package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/daviddao/clawvival_viewer/internal/config"
	"github.com/daviddao/clawvival_viewer/internal/history"
	"github.com/daviddao/clawvival_viewer/internal/mapview"
	"github.com/daviddao/clawvival_viewer/internal/model"
	"github.com/daviddao/clawvival_viewer/internal/snapshot"
)

func historyCmd() *cobra.Command {
	var (
		page             int
		action, from, to string
		expand           string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print one page of the agent's action history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID, err := resolveAgent()
			if err != nil {
				return err
			}
			ui := snapshot.NewUIState(agentID).
				WithActionFilter(action).
				WithFromTime(from).
				WithToTime(to).
				WithPage(page)
			snap, err := fetchSnapshot(cmd.Context(), newClient(), ui, feedSet{replay: true})
			if err != nil {
				return err
			}
			if expand != "" {
				item, ok := findItem(snap.Page.Items, expand)
				if !ok {
					return fmt.Errorf("no action with id prefix %q on page %d", expand, snap.Page.CurrentPage)
				}
				if cfg.JSON {
					return printJSON(item)
				}
				fmt.Println(ansi.Strip(renderItemDetail(item, 100)))
				return nil
			}
			if cfg.JSON {
				return printJSON(buildJSONHistory(snap))
			}
			renderHistoryTable(os.Stdout, snap)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "history page (1-based)")
	cmd.Flags().StringVar(&action, "action", "", "action type prefix filter")
	cmd.Flags().StringVar(&from, "from", "", "earliest time (e.g. 2026-02-19T10:00)")
	cmd.Flags().StringVar(&to, "to", "", "latest time")
	cmd.Flags().StringVar(&expand, "expand", "", "print the full detail of the action with this id prefix")
	return cmd
}

func findItem(items []history.ActionHistoryItem, prefix string) (history.ActionHistoryItem, bool) {
	for _, it := range items {
		if strings.HasPrefix(it.ID, prefix) {
			return it, true
		}
	}
	return history.ActionHistoryItem{}, false
}

func renderHistoryTable(w io.Writer, snap *snapshot.DataSnapshot) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"#", "Occurred", "Action", "Result", "World", "Vitals", "Inventory", "ID"})
	offset := (snap.Page.CurrentPage - 1) * snap.Page.PageSize
	for i, it := range snap.Page.Items {
		tw.AppendRow(table.Row{
			offset + i + 1,
			formatOccurred(it.OccurredAt),
			it.ActionType,
			it.ResultCode,
			history.WorldTimeDeltaLabel(it.WorldTimeBeforeSeconds, it.WorldTimeAfterSeconds),
			vitalsDeltaLabel(history.VitalsDelta(it)),
			history.InventoryDeltaSummary(it),
			shortID(it.ID),
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "", "", "", pageLabel(snap)})
	tw.Render()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the agent's current state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID, err := resolveAgent()
			if err != nil {
				return err
			}
			snap, err := fetchSnapshot(cmd.Context(), newClient(), snapshot.NewUIState(agentID), feedSet{status: true, observe: true})
			if err != nil {
				return err
			}
			if cfg.JSON {
				out := buildJSONOutput(snap)
				return printJSON(struct {
					Agent *model.AgentState `json:"agent"`
					World jsonWorld         `json:"world"`
					Map   jsonMap           `json:"map"`
				}{out.Agent, out.World, out.Map})
			}
			renderStatusTable(os.Stdout, snap)
			return nil
		},
	}
}

func renderStatusTable(w io.Writer, snap *snapshot.DataSnapshot) {
	a := snap.Agent
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Field", "Value"})
	if a == nil {
		tw.AppendRow(table.Row{"Agent", "-"})
		tw.Render()
		return
	}
	zone := a.CurrentZone
	if zone == "" {
		zone = string(mapview.ZoneByDistance(a.Position))
	}
	state := "alive"
	if a.Dead {
		state = "dead (" + orDash(a.DeathCause) + ")"
	}
	tw.AppendRows([]table.Row{
		{"Agent", a.AgentID},
		{"State", state},
		{"HP", a.Vitals.HP},
		{"Hunger", a.Vitals.Hunger},
		{"Energy", a.Vitals.Energy},
		{"Position", fmt.Sprintf("(%d, %d)", a.Position.X, a.Position.Y)},
		{"Zone", zone},
		{"Time of day", orDash(snap.TimeOfDay)},
		{"World time", humanize.Comma(snap.WorldTimeSeconds) + "s"},
		{"Next phase", shortDuration(time.Duration(snap.NextPhaseInSeconds) * time.Second)},
		{"Inventory", fmt.Sprintf("%d/%d", a.InventoryUsed, a.InventoryCapacity)},
	})
	for _, k := range sortedKeys(a.Inventory) {
		tw.AppendRow(table.Row{"  " + k, a.Inventory[k]})
	}
	if snap.Map.HasSnapshot() {
		tw.AppendRow(table.Row{"Threat", snap.Map.ThreatLevel})
		tw.AppendRow(table.Row{"Operable radius", snap.Map.OperableRadius})
	}
	if oa := a.OngoingAction; oa != nil {
		tw.AppendRow(table.Row{"Ongoing", fmt.Sprintf("%s %dm until %s", oa.Type, oa.Minutes, oa.EndAt)})
	}
	if len(a.StatusEffects) > 0 {
		tw.AppendRow(table.Row{"Effects", strings.Join(a.StatusEffects, ", ")})
	}
	if cd := formatCounts(a.ActionCooldowns, "s"); cd != "" {
		tw.AppendRow(table.Row{"Cooldowns", cd})
	}
	if a.UpdatedAt != "" {
		tw.AppendRow(table.Row{"Updated", a.UpdatedAt})
	}
	tw.Render()
}

func mapCmd() *cobra.Command {
	var tile string
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Print the map around the agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID, err := resolveAgent()
			if err != nil {
				return err
			}
			if tile != "" {
				if _, ok := model.ParseKey(tile); !ok {
					return fmt.Errorf("--tile must look like x:y, got %q", tile)
				}
			}
			ui := snapshot.NewUIState(agentID).WithSelectedTile(tile)
			snap, err := fetchSnapshot(cmd.Context(), newClient(), ui, feedSet{observe: true})
			if err != nil {
				return err
			}
			if cfg.JSON {
				return printJSON(buildJSONMap(snap))
			}
			renderMapText(os.Stdout, snap)
			return nil
		},
	}
	cmd.Flags().StringVar(&tile, "tile", "", "select a tile by x:y and print its details")
	return cmd
}

func renderMapText(w io.Writer, snap *snapshot.DataSnapshot) {
	vm := snap.Map
	fmt.Fprintf(w, "center (%d, %d)  %s  operable %d  threat %d\n\n",
		vm.Center.X, vm.Center.Y, orDash(vm.TimeOfDay), vm.OperableRadius, vm.ThreatLevel)
	fmt.Fprintln(w, renderMapGrid(vm, snap.Highlight, true))
	fmt.Fprintln(w)
	fmt.Fprintln(w, mapLegend(true))

	fields := tileDetail(vm)
	if fields == nil {
		return
	}
	fmt.Fprintln(w)
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Tile " + vm.EffectiveSelectedTileID)
	for _, f := range fields {
		tw.AppendRow(table.Row{f.Label, f.Value})
	}
	tw.Render()
}

func configCmd() *cobra.Command {
	c := &cobra.Command{Use: "config", Short: "Manage the cvv config file"}

	var force bool
	var path string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the current settings to a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}
			if err := config.WriteFile(path, cfg, force); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	initCmd.Flags().StringVar(&path, "path", "", "destination (default $XDG_CONFIG_HOME/clawvival/cvv.yaml)")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := cfg.ToYAML()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}

	c.AddCommand(initCmd, showCmd)
	return c
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cvv %s\n", Version)
		},
	}
}
