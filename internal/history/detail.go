package history

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/daviddao/clawvival_viewer/internal/model"
)

// ExtractPositions reads the agent position before and after an action.
// A state map carries either top-level x/y or a nested pos object.
func ExtractPositions(item *ActionHistoryItem) (before, after *model.Point) {
	if item == nil {
		return nil, nil
	}
	return readPosition(item.StateBefore), readPosition(item.StateAfter)
}

func readPosition(state map[string]any) *model.Point {
	if state == nil {
		return nil
	}
	if p, ok := pointFrom(state); ok {
		return &p
	}
	if p, ok := pointFrom(asRecord(state["pos"])); ok {
		return &p
	}
	return nil
}

func pointFrom(m map[string]any) (model.Point, bool) {
	x, okX := numeric(m["x"])
	y, okY := numeric(m["y"])
	if !okX || !okY {
		return model.Point{}, false
	}
	return model.Point{X: int(x), Y: int(y)}, true
}

// numeric accepts only real JSON numbers, unlike toNumber.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// VitalsDelta reads result.vitals_delta; missing meters are 0.
func VitalsDelta(item ActionHistoryItem) model.Vitals {
	delta := asRecord(asRecord(item.Result)["vitals_delta"])
	get := func(k string) int {
		n, _ := numeric(delta[k])
		return int(n)
	}
	return model.Vitals{HP: get("hp"), Hunger: get("hunger"), Energy: get("energy")}
}

// InventoryDeltaSummary renders result.inventory_delta as "stone -1, wood +2".
func InventoryDeltaSummary(item ActionHistoryItem) string {
	delta := asRecord(asRecord(item.Result)["inventory_delta"])
	keys := make([]string, 0, len(delta))
	for k, v := range delta {
		if n, ok := numeric(v); ok && n != 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "no inventory change"
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		n, _ := numeric(delta[k])
		parts[i] = fmt.Sprintf("%s %s", k, signFloat(n))
	}
	return strings.Join(parts, ", ")
}

// SignNum renders n with an explicit plus sign when positive.
func SignNum(n int) string {
	if n > 0 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func signFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if f > 0 {
		return "+" + s
	}
	return s
}

// WorldTimeDeltaLabel renders the world time an action took, e.g. "+300s".
func WorldTimeDeltaLabel(before, after float64) string {
	delta := after - before
	s := strconv.FormatFloat(delta, 'f', -1, 64)
	if delta >= 0 {
		return "+" + s + "s"
	}
	return s + "s"
}

// DiffItem is one changed key between two states.
type DiffItem struct {
	Key    string
	Before any
	After  any
}

// FlatDiff lists the keys whose values differ between before and after.
// Object values are expanded one level as "parent.child"; keys are sorted.
func FlatDiff(before, after map[string]any) []DiffItem {
	var out []DiffItem
	for _, key := range unionKeys(before, after) {
		bv, av := before[key], after[key]
		bo, bIsObj := bv.(map[string]any)
		ao, aIsObj := av.(map[string]any)
		if bIsObj || aIsObj {
			for _, nk := range unionKeys(bo, ao) {
				if CanonicalJSON(bo[nk]) != CanonicalJSON(ao[nk]) {
					out = append(out, DiffItem{Key: key + "." + nk, Before: bo[nk], After: ao[nk]})
				}
			}
			continue
		}
		if CanonicalJSON(bv) != CanonicalJSON(av) {
			out = append(out, DiffItem{Key: key, Before: bv, After: av})
		}
	}
	return out
}

func unionKeys(a, b map[string]any) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
