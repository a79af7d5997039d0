package datasource

import (
	"sort"
	"time"

	"github.com/daviddao/clawvival_viewer/internal/history"
	"github.com/daviddao/clawvival_viewer/internal/model"
)

// DefaultReplayLimit is the number of events requested per replay page.
const DefaultReplayLimit = 200

// ReplayPages accumulates fetched replay pages keyed by the cursor they were
// requested with. Cursor 0 is the newest page; any other cursor is the
// occurred_to bound of an older page.
//
// Putting an older cursor again replaces its page. The newest page is merged
// instead: a poll refresh keeps the events it pushed out of the newest window,
// so older cursors stay chained to it. When a refresh shares no event with the
// page it replaces, the events in between are missing and Gap names the cursor
// that fetches them. ReplayPages is not safe for concurrent use.
type ReplayPages struct {
	limit int
	pages map[int64][]model.DomainEvent
	gap   int64
}

// NewReplayPages returns an empty accumulator for pages of the given size.
func NewReplayPages(limit int) *ReplayPages {
	if limit <= 0 {
		limit = DefaultReplayLimit
	}
	return &ReplayPages{limit: limit, pages: make(map[int64][]model.DomainEvent)}
}

// Limit is the page size the cursor rule is evaluated against.
func (r *ReplayPages) Limit() int {
	return r.limit
}

// Put stores events as the page fetched at cursor.
func (r *ReplayPages) Put(cursor int64, events []model.DomainEvent) {
	if events == nil {
		events = []model.DomainEvent{}
	}
	switch {
	case cursor == 0:
		events = r.mergeNewest(events)
	case cursor == r.gap:
		r.gap = r.bridge(cursor, events)
	}
	r.pages[cursor] = events
}

// mergeNewest returns fresh followed by the events of the current newest page
// that fresh no longer covers. Both are newest first, so the merged page is too
// and its last event is still the one older cursors were derived from.
func (r *ReplayPages) mergeNewest(fresh []model.DomainEvent) []model.DomainEvent {
	prev, ok := r.pages[0]
	if !ok || len(prev) == 0 {
		return fresh
	}
	seen := make(map[string]struct{}, len(fresh))
	for _, e := range fresh {
		seen[history.RawKey(e)] = struct{}{}
	}
	merged := append(make([]model.DomainEvent, 0, len(fresh)+len(prev)), fresh...)
	overlap := false
	for _, e := range prev {
		if _, dup := seen[history.RawKey(e)]; dup {
			overlap = true
			continue
		}
		merged = append(merged, e)
	}
	if !overlap && r.gap == 0 {
		if next, ok := NextCursor(fresh, r.limit); ok && !r.Has(next) {
			r.gap = next
		}
	}
	return merged
}

// bridge decides what is still missing after the page at a gap cursor
// arrived. The gap closes once the page reaches an event already held or
// the log runs out; otherwise it moves to the page's own next cursor.
func (r *ReplayPages) bridge(cursor int64, events []model.DomainEvent) int64 {
	held := make(map[string]struct{}, r.EventCount())
	for k, p := range r.pages {
		if k == cursor {
			continue
		}
		for _, e := range p {
			held[history.RawKey(e)] = struct{}{}
		}
	}
	for _, e := range events {
		if _, ok := held[history.RawKey(e)]; ok {
			return 0
		}
	}
	next, ok := NextCursor(events, r.limit)
	if !ok || r.Has(next) {
		return 0
	}
	return next
}

// Gap returns the cursor of a page missing between the newest page and the
// older ones, if a poll refresh skipped past more than a page of events.
func (r *ReplayPages) Gap() (int64, bool) {
	if r.gap == 0 || r.Has(r.gap) {
		return 0, false
	}
	return r.gap, true
}

// Has reports whether the page at cursor has been fetched.
func (r *ReplayPages) Has(cursor int64) bool {
	_, ok := r.pages[cursor]
	return ok
}

// Len is the number of fetched pages.
func (r *ReplayPages) Len() int {
	return len(r.pages)
}

// EventCount is the number of raw events held across all pages.
func (r *ReplayPages) EventCount() int {
	n := 0
	for _, p := range r.pages {
		n += len(p)
	}
	return n
}

// Reset drops every page.
func (r *ReplayPages) Reset() {
	r.pages = make(map[int64][]model.DomainEvent)
	r.gap = 0
}

func (r *ReplayPages) cursors() []int64 {
	keys := make([]int64, 0, len(r.pages))
	for k := range r.pages {
		keys = append(keys, k)
	}
	// 0 first, then older cursors in descending order.
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == 0 || keys[j] == 0 {
			return keys[i] == 0 && keys[j] != 0
		}
		return keys[i] > keys[j]
	})
	return keys
}

// Pages returns the fetched pages newest first, the order they were
// requested in.
func (r *ReplayPages) Pages() [][]model.DomainEvent {
	keys := r.cursors()
	out := make([][]model.DomainEvent, len(keys))
	for i, k := range keys {
		out[i] = r.pages[k]
	}
	return out
}

// NextCursor returns the occurred_to bound for the next older page. It is
// only available when the oldest fetched page came back full and its last
// event's timestamp is later than one second past the epoch.
func (r *ReplayPages) NextCursor() (int64, bool) {
	keys := r.cursors()
	if len(keys) == 0 {
		return 0, false
	}
	next, ok := NextCursor(r.pages[keys[len(keys)-1]], r.limit)
	if !ok || r.Has(next) {
		return 0, false
	}
	return next, true
}

// HasMore reports whether an older page may exist.
func (r *ReplayPages) HasMore() bool {
	_, ok := r.NextCursor()
	return ok
}

// NextCursor applies the paging rule to a single page: a page shorter than
// limit is the last one; otherwise the cursor is the oldest event's epoch
// seconds minus one.
func NextCursor(events []model.DomainEvent, limit int) (int64, bool) {
	if len(events) == 0 || len(events) < limit {
		return 0, false
	}
	oldest := events[len(events)-1]
	if oldest.OccurredAt == "" {
		return 0, false
	}
	ts, err := time.Parse(time.RFC3339Nano, oldest.OccurredAt)
	if err != nil {
		return 0, false
	}
	sec := ts.Unix()
	if sec <= 1 {
		return 0, false
	}
	return sec - 1, true
}
