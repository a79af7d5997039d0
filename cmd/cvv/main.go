// cvv is a read-only terminal console for a Clawvival survival agent.
//
// It polls the agent's status, observe and replay endpoints and shows the
// agent's vitals, the map around it and its reconstructed action history.
// The tracked agent id lives in a small state file that other tools may
// edit; cvv follows those edits live.
//
// Usage:
//
//	cvv                          # Track the agent in .clawvival/state
//	cvv --agent agt_123          # Track a specific agent
//	cvv --view history           # Start in a specific view
//	cvv --refresh 30s            # Set the poll interval
//	cvv --json                   # Dump a snapshot as JSON and exit
//	cvv history --action gather  # Print a history page as a table
//	cvv status                   # Print the agent state
//	cvv map                      # Print the local map
//	cvv config init              # Write a default config file
//	cvv version                  # Print version and exit
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/daviddao/clawvival_viewer/internal/config"
	"github.com/daviddao/clawvival_viewer/internal/datasource"
	"github.com/daviddao/clawvival_viewer/internal/snapshot"
	"github.com/daviddao/clawvival_viewer/internal/urlstate"
)

// Version is set via ldflags at build time (e.g. -X main.Version=v0.1.0).
var Version = "dev"

var (
	v       = config.New()
	cfg     = config.Default()
	logFile io.Closer
)

var errNoAgent = errors.New("no agent selected; pass --agent or set CLAWVIVAL_AGENT")

var rootCmd = &cobra.Command{
	Use:           "cvv",
	Short:         "Read-only console for a Clawvival agent",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(v)
		if err != nil {
			return err
		}
		cfg = c
		return setupLogging()
	},
	RunE: runRoot,
}

func init() {
	rootCmd.Version = Version
	config.AddFlags(rootCmd.PersistentFlags())
	if err := config.BindFlags(v, rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(mapCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	err := rootCmd.Execute()
	if logFile != nil {
		logFile.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "cvv: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging sends the standard logger to --log-file when set.
func setupLogging() error {
	if cfg.LogFile == "" {
		return nil
	}
	f, err := tea.LogToFile(cfg.LogFile, "cvv")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logFile = f
	return nil
}

func newClient() *datasource.Client {
	return datasource.New(cfg.APIBase).WithTimeout(cfg.Timeout)
}

// statePath returns --state-file or the discovered state file.
func statePath() (string, error) {
	if cfg.StateFile != "" {
		return cfg.StateFile, nil
	}
	return urlstate.Discover()
}

// resolveAgent picks the agent for one-shot commands: --agent first, then
// the state file.
func resolveAgent() (string, error) {
	if cfg.Agent != "" {
		return cfg.Agent, nil
	}
	if !cfg.NoState {
		path, err := statePath()
		if err != nil {
			return "", err
		}
		id, err := urlstate.Load(path)
		if err != nil {
			return "", err
		}
		if id != "" {
			return id, nil
		}
	}
	return "", errNoAgent
}

// openStore opens the selection store the TUI follows.
func openStore() (urlstate.Store, func(), error) {
	if cfg.NoState {
		return urlstate.NewMemoryStore(cfg.Agent), func() {}, nil
	}
	path, err := statePath()
	if err != nil {
		return nil, nil, err
	}
	s, err := urlstate.OpenFileStore(path, cfg.Agent)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { s.Close() }, nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	client := newClient()

	// --json mode: fetch once, print, exit.
	if cfg.JSON {
		agentID, err := resolveAgent()
		if err != nil {
			return err
		}
		snap, err := fetchSnapshot(cmd.Context(), client, snapshot.NewUIState(agentID), allFeeds)
		if err != nil {
			return err
		}
		return printJSON(buildJSONOutput(snap))
	}
	return runTUI(client)
}

func runTUI(client *datasource.Client) error {
	start, err := parseViewFlag(cfg.View)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	// The alt screen owns the terminal; keep stray log lines off it.
	if cfg.LogFile == "" {
		log.SetOutput(io.Discard)
	}

	m := newModel(client, store, cfg.PageSize, cfg.ReplayLimit)
	m.activeView = start
	m.refreshInterval = cfg.Refresh

	p := tea.NewProgram(m, tea.WithAltScreen())

	// Feed selection edits made by other processes into the TUI.
	go func() {
		for id := range store.Changes() {
			p.Send(agentChangedMsg{agentID: id})
		}
	}()

	// Poll every feed at --refresh.
	go func() {
		ticker := time.NewTicker(cfg.Refresh)
		defer ticker.Stop()
		for range ticker.C {
			p.Send(pollMsg{})
		}
	}()

	_, err = p.Run()
	return err
}
