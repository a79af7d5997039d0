package history

import (
	"sort"
	"strings"
	"time"

	"github.com/daviddao/clawvival_viewer/internal/model"
)

// RawKey identifies a raw event across overlapping pages:
// type|occurred_at|canonical payload. It is coarser than the item id and
// only used to skip events already seen.
func RawKey(e model.DomainEvent) string {
	var payload any = e.Payload
	if e.Payload == nil {
		payload = map[string]any{}
	}
	return e.Type + "|" + e.OccurredAt + "|" + CanonicalJSON(payload)
}

// Reconstruct flattens fetched event pages into the canonical history:
// deduplicated, normalized and sorted newest first.
//
// Pages may overlap and may be passed in any order; feeding a superset of
// previously seen pages never duplicates or reorders earlier items.
func Reconstruct(pages [][]model.DomainEvent) []ActionHistoryItem {
	seenRaw := make(map[string]struct{})
	seenID := make(map[string]struct{})
	out := make([]ActionHistoryItem, 0)

	for _, page := range pages {
		for _, e := range page {
			key := RawKey(e)
			if _, dup := seenRaw[key]; dup {
				continue
			}
			seenRaw[key] = struct{}{}

			item, ok := Normalize(e)
			if !ok {
				continue
			}
			if _, dup := seenID[item.ID]; dup {
				continue
			}
			seenID[item.ID] = struct{}{}
			out = append(out, item)
		}
	}

	SortNewestFirst(out)
	return out
}

// SortNewestFirst orders items by occurred_at descending, ties broken by id
// descending so the order is total and independent of input order.
func SortNewestFirst(items []ActionHistoryItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if c := compareTimestamps(items[i].OccurredAt, items[j].OccurredAt); c != 0 {
			return c > 0
		}
		return items[i].ID > items[j].ID
	})
}

// compareTimestamps compares two ISO-8601 strings chronologically.
// RFC 3339 strings with differing fractional precision or offsets do not
// sort lexicographically, so both are parsed when possible. A timestamp that
// does not parse ranks as older than any that does; two such timestamps
// compare as strings.
func compareTimestamps(a, b string) int {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	switch {
	case errA == nil && errB == nil:
		return ta.Compare(tb)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	}
	return strings.Compare(a, b)
}
