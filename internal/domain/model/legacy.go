package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ErrLegacyRecord marks a legacy record that cannot be normalized.
var ErrLegacyRecord = errors.New("unusable legacy evaluation record")

var legacyKinds = map[string]EvaluationKind{
	"self":            KindSelf,
	"selfassessment":  KindSelf,
	"manager-down":    KindManagerDown,
	"managertoreport": KindManagerDown,
	"down":            KindManagerDown,
	"manager-up":      KindManagerUp,
	"reporttomanager": KindManagerUp,
	"up":              KindManagerUp,
	"peer":            KindPeer,
	"peertopeer":      KindPeer,
}

// NormalizeLegacyEvaluation converts a loosely shaped legacy document into an
// Evaluation. Giver and receiver may be nested objects ({"giver":{"id":..}})
// or flat fields (giverId, assessorId, receiverId, subjectId); self records
// may omit the receiver. Back-references may appear as pairIds or 360Pairs.
func NormalizeLegacyEvaluation(raw map[string]any) (Evaluation, error) {
	var e Evaluation

	e.CycleID = firstString(raw, "cycleId", "cycle", "cycleID")
	if e.CycleID == "" {
		return Evaluation{}, fmt.Errorf("%w: missing cycle", ErrLegacyRecord)
	}

	kindRaw := strings.ToLower(strings.ReplaceAll(firstString(raw, "kind", "type"), "_", ""))
	kind, ok := legacyKinds[kindRaw]
	if !ok {
		return Evaluation{}, fmt.Errorf("%w: unknown kind %q", ErrLegacyRecord, kindRaw)
	}
	e.Kind = kind

	e.Giver = legacyParty(raw, "giver", "giverId", "giverName", "assessorId", "assessorName")
	e.Receiver = legacyParty(raw, "receiver", "receiverId", "receiverName", "subjectId", "subjectName")
	if e.Kind == KindSelf && e.Receiver.ID == "" {
		e.Receiver = e.Giver
	}
	if e.Kind == KindSelf && e.Giver.ID == "" {
		e.Giver = e.Receiver
	}
	if e.Giver.ID == "" || e.Receiver.ID == "" {
		return Evaluation{}, fmt.Errorf("%w: missing giver or receiver", ErrLegacyRecord)
	}

	e.PairID = firstString(raw, "pairId", "pairID")
	e.PairIDs = stringList(raw, "pairIds", "360Pairs")

	e.Status = Status(strings.ToLower(firstString(raw, "status")))
	if e.Status == "" {
		e.Status = StatusPending
	}
	switch e.Status {
	case StatusPending, StatusCompleted, StatusCalibrated, StatusPublished:
	default:
		return Evaluation{}, fmt.Errorf("%w: unknown status %q", ErrLegacyRecord, e.Status)
	}

	scores, err := legacyScores(raw["scores"])
	if err != nil {
		return Evaluation{}, err
	}
	e.Scores = scores

	e.CreatedAt = legacyTime(raw["createdAt"])
	// One record per giver/receiver/cycle triple, whatever the legacy key was.
	e.ID = EvaluationID(e.CycleID, e.Giver.ID, e.Receiver.ID)
	if id := firstString(raw, "id"); id != e.ID {
		e.LegacyID = id
	}
	return e, nil
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func legacyParty(raw map[string]any, nested, flatID, flatName, altID, altName string) Party {
	if m, ok := raw[nested].(map[string]any); ok {
		return Party{ID: firstString(m, "id", "uid"), Name: firstString(m, "name", "displayName")}
	}
	if id, ok := raw[nested].(string); ok && id != "" {
		return Party{ID: id, Name: firstString(raw, flatName, altName)}
	}
	return Party{
		ID:   firstString(raw, flatID, altID),
		Name: firstString(raw, flatName, altName),
	}
}

func stringList(raw map[string]any, keys ...string) []string {
	var out []string
	for _, k := range keys {
		items, ok := raw[k].([]any)
		if !ok {
			continue
		}
		for _, it := range items {
			if s, ok := it.(string); ok && s != "" && !slices.Contains(out, s) {
				out = append(out, s)
			}
		}
	}
	return out
}

func legacyScores(v any) (*Scores, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		var s Scores
		if err := fillAxis(&s.Value, t["value"]); err != nil {
			return nil, err
		}
		if err := fillAxis(&s.Growth, t["growth"]); err != nil {
			return nil, err
		}
		return &s, nil
	case []any:
		if len(t) != 2*NumDomains {
			return nil, fmt.Errorf("%w: expected %d scores, got %d", ErrLegacyRecord, 2*NumDomains, len(t))
		}
		var s Scores
		if err := fillAxis(&s.Value, t[:NumDomains]); err != nil {
			return nil, err
		}
		if err := fillAxis(&s.Growth, t[NumDomains:]); err != nil {
			return nil, err
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("%w: unsupported scores shape %T", ErrLegacyRecord, v)
	}
}

func fillAxis(dst *[NumDomains]int, v any) error {
	items, ok := v.([]any)
	if !ok || len(items) != NumDomains {
		return fmt.Errorf("%w: axis needs %d scores", ErrLegacyRecord, NumDomains)
	}
	for i, it := range items {
		n, ok := it.(float64)
		if !ok || n != float64(int(n)) {
			return fmt.Errorf("%w: score %v is not an integer", ErrLegacyRecord, it)
		}
		dst[i] = int(n)
	}
	return nil
}

func legacyTime(v any) time.Time {
	switch t := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts.UTC()
		}
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	}
	return time.Time{}
}
