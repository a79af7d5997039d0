// Package history turns the raw, append-only domain event log into the
// canonical action history the console renders.
//
// The pipeline is pure: Normalize one event, Reconstruct a deduplicated
// newest-first history from fetched pages, Filter it, Paginate it. Every
// step is safe to re-run on each state change and never mutates its input.
package history

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/daviddao/clawvival_viewer/internal/model"
)

const (
	unknownActionType = "unknown"
	defaultResultCode = "OK"
)

// ActionHistoryItem is one settled agent action, derived from an
// action_settled event. Items are never mutated after Normalize.
type ActionHistoryItem struct {
	ID                     string         `json:"id"`
	OccurredAt             string         `json:"occurred_at"`
	ActionType             string         `json:"action_type"`
	ResultCode             string         `json:"result_code"`
	WorldTimeBeforeSeconds float64        `json:"world_time_before_seconds"`
	WorldTimeAfterSeconds  float64        `json:"world_time_after_seconds"`
	StateBefore            map[string]any `json:"state_before"`
	StateAfter             map[string]any `json:"state_after"`
	Result                 map[string]any `json:"result"`
	Payload                map[string]any `json:"payload"`
}

// Normalize converts an action_settled event into an ActionHistoryItem.
// Other event types are skipped (ok == false); malformed fields fall back to
// defaults instead of failing.
func Normalize(e model.DomainEvent) (ActionHistoryItem, bool) {
	if e.Type != model.EventActionSettled {
		return ActionHistoryItem{}, false
	}

	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	decision := asRecord(payload["decision"])
	params := asRecord(decision["params"])

	actionType := unknownActionType
	if intent, ok := decision["intent"].(string); ok {
		actionType = intent
	}
	// A bare "sleep" does not say which bed was used.
	if bed, ok := params["bed_id"].(string); ok && actionType == "sleep" {
		actionType = fmt.Sprintf("sleep (%s)", bed)
	}

	resultCode := defaultResultCode
	if rc, ok := payload["result_code"].(string); ok {
		resultCode = rc
	}

	return ActionHistoryItem{
		ID:                     itemID(e.OccurredAt, payload),
		OccurredAt:             e.OccurredAt,
		ActionType:             actionType,
		ResultCode:             resultCode,
		WorldTimeBeforeSeconds: toNumber(payload["world_time_before_seconds"]),
		WorldTimeAfterSeconds:  toNumber(payload["world_time_after_seconds"]),
		StateBefore:            asRecord(payload["state_before"]),
		StateAfter:             asRecord(payload["state_after"]),
		Result:                 asRecord(payload["result"]),
		Payload:                payload,
	}, true
}

// itemID hashes the timestamp and the parts of the payload that identify
// one logical action. Two copies of the same event fetched on overlapping
// pages produce the same id whatever their key order.
func itemID(occurredAt string, payload map[string]any) string {
	identity := map[string]any{
		"decision":                  payload["decision"],
		"result":                    payload["result"],
		"state_before":              payload["state_before"],
		"state_after":               payload["state_after"],
		"world_time_before_seconds": payload["world_time_before_seconds"],
		"world_time_after_seconds":  payload["world_time_after_seconds"],
	}
	sum := sha256.Sum256([]byte(occurredAt + "|" + CanonicalJSON(identity)))
	return hex.EncodeToString(sum[:])
}

// CanonicalJSON serializes v with object keys sorted at every nesting level
// and arrays in element order. encoding/json already sorts map keys; the
// helper pins that behavior in one place and disables HTML escaping so the
// output is byte-stable for any decoded JSON value.
func CanonicalJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func asRecord(v any) map[string]any {
	if m, ok := v.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}

// toNumber passes numbers through, parses numeric strings and maps
// everything else to 0.
func toNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0
		}
		return f
	}
	return 0
}
