package datasource

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Feed keys.
const (
	FeedStatus  = "status"
	FeedObserve = "observe"
	FeedReplay  = "replay"
)

// Ticket names one logical request. A result is accepted only while its
// ticket is still the feed's current one.
type Ticket struct {
	ID      string
	Feed    string
	AgentID string
	Issued  time.Time
}

// FeedState is a read-only copy of a feed.
type FeedState[T any] struct {
	Key       string
	AgentID   string
	InFlight  bool
	Data      T
	HasData   bool
	Err       error
	UpdatedAt time.Time
}

// Feed tracks one polled resource for the tracked agent: whether a request
// is outstanding, the last good result and the last error.
//
// Results are last-write-wins by logical request, not by arrival: a result
// whose ticket was superseded by Reset or by a newer Begin is dropped. A
// failed request keeps the last good data.
type Feed[T any] struct {
	mu        sync.Mutex
	key       string
	agentID   string
	current   string
	inFlight  bool
	data      T
	hasData   bool
	err       error
	updatedAt time.Time
	now       func() time.Time
}

// NewFeed returns an empty feed named key.
func NewFeed[T any](key string) *Feed[T] {
	return &Feed[T]{key: key, now: time.Now}
}

// Begin issues a ticket for a new request. It refuses while a request is
// already in flight or when agentID is empty. Beginning for a different
// agent resets the feed first.
func (f *Feed[T]) Begin(agentID string) (Ticket, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if agentID == "" {
		return Ticket{}, false
	}
	if agentID != f.agentID {
		f.resetLocked(agentID)
	}
	if f.inFlight {
		return Ticket{}, false
	}
	t := Ticket{ID: uuid.NewString(), Feed: f.key, AgentID: agentID, Issued: f.now()}
	f.current = t.ID
	f.inFlight = true
	return t, true
}

// Resolve records the outcome of the request named by t. It reports false,
// leaving the feed untouched, when t is stale.
func (f *Feed[T]) Resolve(t Ticket, data T, err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == "" || t.ID != f.current || t.AgentID != f.agentID {
		return false
	}
	f.inFlight = false
	f.current = ""
	if err != nil {
		f.err = err
		return true
	}
	f.data = data
	f.hasData = true
	f.err = nil
	f.updatedAt = f.now()
	return true
}

// Reset switches the feed to agentID, dropping data and invalidating any
// outstanding ticket.
func (f *Feed[T]) Reset(agentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked(agentID)
}

func (f *Feed[T]) resetLocked(agentID string) {
	var zero T
	f.agentID = agentID
	f.current = ""
	f.inFlight = false
	f.data = zero
	f.hasData = false
	f.err = nil
	f.updatedAt = time.Time{}
}

// InFlight reports whether a request is outstanding.
func (f *Feed[T]) InFlight() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

// State returns a copy of the feed.
func (f *Feed[T]) State() FeedState[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FeedState[T]{
		Key:       f.key,
		AgentID:   f.agentID,
		InFlight:  f.inFlight,
		Data:      f.data,
		HasData:   f.hasData,
		Err:       f.err,
		UpdatedAt: f.updatedAt,
	}
}
