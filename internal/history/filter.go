package history

import (
	"strings"
	"time"
)

// Criteria narrows the history. Zero values impose no constraint.
type Criteria struct {
	// ActionType is a case-insensitive prefix of the item's action type.
	ActionType string
	// FromTime and ToTime are inclusive bounds; unparsable values are ignored.
	FromTime string
	ToTime   string
	// Location interprets bounds without a zone. Defaults to time.Local.
	Location *time.Location
}

// IsZero reports whether c matches everything.
func (c Criteria) IsZero() bool {
	return strings.TrimSpace(c.ActionType) == "" &&
		strings.TrimSpace(c.FromTime) == "" &&
		strings.TrimSpace(c.ToTime) == ""
}

// boundLayouts are tried in order; the zone-less ones mirror what a user
// types into a date-time prompt and are read in the caller's location.
var boundLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseBound parses a filter bound. ok is false for empty or unparsable input.
// A bare date is midnight UTC whatever loc is.
func ParseBound(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range boundLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Filter returns the items matching c, in their original order. The input
// slice is not modified.
func Filter(items []ActionHistoryItem, c Criteria) []ActionHistoryItem {
	action := strings.ToLower(strings.TrimSpace(c.ActionType))
	from, hasFrom := ParseBound(c.FromTime, c.Location)
	to, hasTo := ParseBound(c.ToTime, c.Location)

	out := make([]ActionHistoryItem, 0, len(items))
	for _, item := range items {
		if action != "" && !strings.HasPrefix(strings.ToLower(item.ActionType), action) {
			continue
		}
		if hasFrom || hasTo {
			// Unparsable timestamps sort as the zero time: they fail any
			// lower bound and pass any upper bound.
			ts, _ := time.Parse(time.RFC3339Nano, item.OccurredAt)
			if hasFrom && ts.Before(from) {
				continue
			}
			if hasTo && ts.After(to) {
				continue
			}
		}
		out = append(out, item)
	}
	return out
}
