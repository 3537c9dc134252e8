package repository

import (
	"encoding/json"
	"fmt"

	"github.com/okian/cadence/internal/domain/model"
)

// Collections.
const (
	Participants = "participants"
	Cycles       = "cycles"
	Evaluations  = "evaluations"
	Published    = "published"
)

// Indexed fields.
const (
	FieldCycle    = "cycle"
	FieldKind     = "kind"
	FieldGiver    = "giver"
	FieldReceiver = "receiver"
	FieldStatus   = "status"
	FieldPair     = "pair"
	FieldSubject  = "subject"
	FieldPeriod   = "period"
	FieldLayer    = "layer"
)

// Body keys of evaluation documents touched by partial updates.
const (
	BodyPairIDs   = "pairIds"
	BodyStatus    = "status"
	BodyScores    = "scores"
	BodyComposite = "composite"
	BodyLabel     = "label"
	BodyUpdatedAt = "updatedAt"
)

func encode(id string, fields map[string]string, v any) (Document, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Document{}, fmt.Errorf("encode %s: %w", id, err)
	}
	return Document{ID: id, Fields: fields, Body: body}, nil
}

// Decode unmarshals a document body into T.
func Decode[T any](doc Document) (T, error) {
	var v T
	if err := json.Unmarshal(doc.Body, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", doc.ID, err)
	}
	return v, nil
}

// DecodeAll unmarshals every document body into T, preserving order.
func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := Decode[T](d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func EncodeParticipant(p model.Participant) (Document, error) {
	return encode(p.ID, map[string]string{FieldLayer: string(p.Layer)}, p)
}

func EncodeCycle(c model.Cycle) (Document, error) {
	return encode(c.ID, map[string]string{
		FieldPeriod: c.Period().String(),
		FieldStatus: string(c.Status),
		FieldKind:   string(c.Kind),
	}, c)
}

func EncodeEvaluation(e model.Evaluation) (Document, error) {
	fields := map[string]string{
		FieldCycle:    e.CycleID,
		FieldKind:     string(e.Kind),
		FieldGiver:    e.Giver.ID,
		FieldReceiver: e.Receiver.ID,
		FieldStatus:   string(e.Status),
	}
	if e.PairID != "" {
		fields[FieldPair] = e.PairID
	}
	return encode(e.ID, fields, e)
}

func EncodePublished(r model.PublishedRecord) (Document, error) {
	fields := map[string]string{FieldSubject: r.SubjectID}
	if r.CycleID != "" {
		fields[FieldCycle] = r.CycleID
	}
	if r.PairID != "" {
		fields[FieldPair] = r.PairID
	}
	return encode(r.Key, fields, r)
}
