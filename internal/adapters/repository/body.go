package repository

import (
	"encoding/json"
	"fmt"
	"maps"
)

// MergeBody replaces the top-level keys of a JSON object body with the
// values in set. A nil value removes the key.
func MergeBody(body []byte, set map[string]any) ([]byte, error) {
	obj := map[string]json.RawMessage{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, fmt.Errorf("%w: body is not an object: %w", ErrInvalidPatch, err)
		}
	}
	for k, v := range set {
		if v == nil {
			delete(obj, k)
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: encode %s: %w", ErrInvalidPatch, k, err)
		}
		obj[k] = raw
	}
	return json.Marshal(obj)
}

// AppendUnique adds values to the string array stored under field, keeping
// the existing order and skipping values already present. It reports whether
// the body changed.
func AppendUnique(body []byte, field string, values []string) ([]byte, bool, error) {
	obj := map[string]json.RawMessage{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, false, fmt.Errorf("%w: body is not an object: %w", ErrInvalidPatch, err)
		}
	}
	var list []string
	if raw, ok := obj[field]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, false, fmt.Errorf("%w: %s is not a string array: %w", ErrInvalidPatch, field, err)
		}
	}
	seen := make(map[string]struct{}, len(list))
	for _, v := range list {
		seen[v] = struct{}{}
	}
	changed := false
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		list = append(list, v)
		changed = true
	}
	if !changed {
		return body, false, nil
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return nil, false, err
	}
	obj[field] = raw
	out, err := json.Marshal(obj)
	return out, true, err
}

// ApplyPatch returns a copy of doc with p applied.
func ApplyPatch(doc Document, p Patch) (Document, error) {
	out := doc.Clone()
	if out.Fields == nil {
		out.Fields = map[string]string{}
	}
	maps.Copy(out.Fields, p.Fields)
	if len(p.Set) > 0 {
		body, err := MergeBody(out.Body, p.Set)
		if err != nil {
			return Document{}, err
		}
		out.Body = body
	}
	return out, nil
}

// ValidateBatch checks a batch against limit before any write.
func ValidateBatch(muts []Mutation, limit int) error {
	if len(muts) > limit {
		return fmt.Errorf("%w: %d mutations, limit %d", ErrBatchTooLarge, len(muts), limit)
	}
	for i, m := range muts {
		if m.Collection == "" || m.ID == "" {
			return fmt.Errorf("%w: mutation %d has no collection or id", ErrInvalidRequest, i)
		}
		switch m.Kind {
		case MutationSet, MutationUpdate:
		case MutationAppendUnique:
			if m.Field == "" {
				return fmt.Errorf("%w: mutation %d has no field", ErrInvalidRequest, i)
			}
		default:
			return fmt.Errorf("%w: mutation %d has unknown kind %d", ErrInvalidRequest, i, m.Kind)
		}
	}
	return nil
}
