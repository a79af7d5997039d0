// Package snapshot builds immutable dashboard snapshots from the latest feed
// results and the console's UI state.
//
// A DataSnapshot captures everything the console renders at one point in
// time: agent state, the reconstructed and filtered history page, and the
// map view model. Build is pure; snapshots are rebuilt on every state change
// and swapped into the UI model.
package snapshot

import (
	"time"

	"github.com/daviddao/clawvival_viewer/internal/history"
	"github.com/daviddao/clawvival_viewer/internal/mapview"
	"github.com/daviddao/clawvival_viewer/internal/model"
)

// UIState is the user-controlled part of the dashboard. Transitions return a
// new value and apply the reset rules: any filter edit returns to page 1 and
// collapses the expanded item; switching agents also clears the filters and
// the selected tile.
type UIState struct {
	AgentID        string
	Filter         history.Criteria
	Page           int
	ExpandedID     string
	SelectedTileID string
}

// NewUIState returns the initial state for agentID.
func NewUIState(agentID string) UIState {
	return UIState{AgentID: agentID, Page: 1}
}

// WithAgent switches the tracked agent. Setting the current agent again is
// a no-op.
func (s UIState) WithAgent(agentID string) UIState {
	if agentID == s.AgentID {
		return s
	}
	return UIState{AgentID: agentID, Page: 1, Filter: history.Criteria{Location: s.Filter.Location}}
}

func (s UIState) filterChanged() UIState {
	s.Page = 1
	s.ExpandedID = ""
	return s
}

// WithActionFilter sets the action type prefix.
func (s UIState) WithActionFilter(v string) UIState {
	s.Filter.ActionType = v
	return s.filterChanged()
}

// WithFromTime sets the inclusive lower time bound.
func (s UIState) WithFromTime(v string) UIState {
	s.Filter.FromTime = v
	return s.filterChanged()
}

// WithToTime sets the inclusive upper time bound.
func (s UIState) WithToTime(v string) UIState {
	s.Filter.ToTime = v
	return s.filterChanged()
}

// ClearFilters drops every filter.
func (s UIState) ClearFilters() UIState {
	s.Filter = history.Criteria{Location: s.Filter.Location}
	return s.filterChanged()
}

// WithPage requests a history page. Out-of-range pages are clamped when the
// snapshot is built, not here, since the page count depends on data that
// may still be loading.
func (s UIState) WithPage(page int) UIState {
	s.Page = max(page, 1)
	return s
}

// ToggleExpanded expands id, or collapses it when already expanded.
func (s UIState) ToggleExpanded(id string) UIState {
	if s.ExpandedID == id {
		s.ExpandedID = ""
	} else {
		s.ExpandedID = id
	}
	return s
}

// WithSelectedTile selects a map tile by its "x:y" key; "" clears it.
func (s UIState) WithSelectedTile(key string) UIState {
	s.SelectedTileID = key
	return s
}

// Input is everything Build reads.
type Input struct {
	UI      UIState
	Status  *model.StatusResponse
	Observe *model.ObserveResponse
	// Pages are the fetched replay pages, newest first.
	Pages [][]model.DomainEvent
	// HasMore reports that older replay pages exist.
	HasMore bool
	// ReplayInFlight is true while a replay page fetch is outstanding.
	ReplayInFlight bool
	PageSize       int

	StatusErr  error
	ObserveErr error
	ReplayErr  error
	// RefreshedAt is when the last feed result arrived.
	RefreshedAt time.Time
}

// Highlight is the position change of the expanded history item.
type Highlight struct {
	Before      *model.Point
	After       *model.Point
	HasMovement bool
	Arrow       string
}

// DataSnapshot is an immutable, self-contained view of the dashboard.
type DataSnapshot struct {
	UI UIState

	// Agent is the freshest agent state: status first, then observe.
	Agent              *model.AgentState
	WorldTimeSeconds   int64
	TimeOfDay          string
	NextPhaseInSeconds int64

	// History is the full reconstructed history; Filtered the subset
	// matching UI.Filter; Page the clamped display page of Filtered.
	// UI.Page keeps the requested page, which may run one past Page while
	// older replay pages load.
	History  []history.ActionHistoryItem
	Filtered []history.ActionHistoryItem
	Page     history.Page

	HasMore        bool
	ReplayInFlight bool
	// Lookahead is true when exactly one more replay page must be fetched
	// to fill Page.
	Lookahead bool
	CanNext   bool
	CanPrev   bool

	// ExpandedItem is set only when the expanded id is on the current page.
	ExpandedItem *history.ActionHistoryItem
	Highlight    Highlight

	Map mapview.ViewModel

	// Counts.
	RawEvents    int
	ReplayPages  int
	SettledCount int

	StatusErr  error
	ObserveErr error
	ReplayErr  error

	RefreshedAt time.Time
	BuiltAt     time.Time
}

// Build runs normalize, dedupe, sort, filter and paginate over in and
// derives the map view model. It never fails: missing feeds produce empty
// sections.
func Build(in Input) *DataSnapshot {
	pageSize := in.PageSize
	if pageSize <= 0 {
		pageSize = history.DefaultPageSize
	}

	snap := &DataSnapshot{
		UI:             in.UI,
		HasMore:        in.HasMore,
		ReplayInFlight: in.ReplayInFlight,
		StatusErr:      in.StatusErr,
		ObserveErr:     in.ObserveErr,
		ReplayErr:      in.ReplayErr,
		RefreshedAt:    in.RefreshedAt,
		ReplayPages:    len(in.Pages),
		BuiltAt:        time.Now(),
	}

	switch {
	case in.Status != nil:
		agent := in.Status.AgentState
		snap.Agent = &agent
		snap.WorldTimeSeconds = in.Status.WorldTimeSeconds
		snap.TimeOfDay = in.Status.TimeOfDay
		snap.NextPhaseInSeconds = in.Status.NextPhaseInSeconds
	case in.Observe != nil:
		agent := in.Observe.AgentState
		snap.Agent = &agent
		snap.WorldTimeSeconds = in.Observe.WorldTimeSeconds
		snap.TimeOfDay = in.Observe.TimeOfDay
		snap.NextPhaseInSeconds = in.Observe.NextPhaseInSeconds
	}

	for _, p := range in.Pages {
		snap.RawEvents += len(p)
	}
	snap.History = history.Reconstruct(in.Pages)
	snap.SettledCount = len(snap.History)
	snap.Filtered = history.Filter(snap.History, in.UI.Filter)
	snap.Page = history.Paginate(snap.Filtered, in.UI.Page, pageSize)

	// The requested page, not the clamped one, decides the lookahead: a
	// "next" past the last materialized page must pull one more replay page.
	snap.Lookahead = history.NeedsLookahead(history.LookaheadInput{
		FilteredCount: len(snap.Filtered),
		CurrentPage:   max(in.UI.Page, snap.Page.CurrentPage),
		PageSize:      pageSize,
		HasMore:       in.HasMore,
		InFlight:      in.ReplayInFlight,
	})
	snap.CanPrev = snap.Page.CanGoPrev()
	snap.CanNext = snap.Page.CanGoNext(in.HasMore)

	if in.UI.ExpandedID != "" {
		for i := range snap.Page.Items {
			if snap.Page.Items[i].ID == in.UI.ExpandedID {
				item := snap.Page.Items[i]
				snap.ExpandedItem = &item
				break
			}
		}
	}
	if snap.ExpandedItem != nil {
		before, after := history.ExtractPositions(snap.ExpandedItem)
		has, arrow := mapview.Movement(before, after)
		snap.Highlight = Highlight{Before: before, After: after, HasMovement: has, Arrow: arrow}
	}

	snap.Map = mapview.Build(in.Observe, in.UI.SelectedTileID)
	return snap
}

// Loading reports whether nothing has been fetched yet for the agent.
func (s *DataSnapshot) Loading() bool {
	return s.Agent == nil && !s.Map.HasSnapshot() && s.ReplayPages == 0
}

// Err returns the first feed error, if any.
func (s *DataSnapshot) Err() error {
	for _, err := range []error{s.StatusErr, s.ObserveErr, s.ReplayErr} {
		if err != nil {
			return err
		}
	}
	return nil
}

// NextPage returns the UI state one page past the displayed page, with the
// expanded item collapsed. ok is false when there is nothing to advance to.
func (s *DataSnapshot) NextPage() (UIState, bool) {
	if !s.CanNext {
		return s.UI, false
	}
	ui := s.UI.WithPage(s.Page.CurrentPage + 1)
	ui.ExpandedID = ""
	return ui, true
}

// PrevPage returns the UI state one page before the displayed page.
func (s *DataSnapshot) PrevPage() (UIState, bool) {
	if !s.CanPrev {
		return s.UI, false
	}
	ui := s.UI.WithPage(s.Page.CurrentPage - 1)
	ui.ExpandedID = ""
	return ui, true
}
