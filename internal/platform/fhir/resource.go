package fhir

import (
	"encoding/json"
	"time"
)

// Resource is a schema-polymorphic clinical record. Typed fields the server
// cares about (resourceType, id, status, references) are read through
// accessors; everything else rides along untouched so clients can store
// forward-compatible extension fields.
type Resource map[string]any

// Type returns the resourceType field, or "" if absent.
func (r Resource) Type() string {
	return r.StringField("resourceType")
}

// ID returns the id field, or "" if absent.
func (r Resource) ID() string {
	return r.StringField("id")
}

// SetID sets the id field in place.
func (r Resource) SetID(id string) {
	r["id"] = id
}

// StringField returns the named top-level field if it is a string.
func (r Resource) StringField(key string) string {
	s, _ := r[key].(string)
	return s
}

// Clone returns a deep copy of the resource. Stored snapshots are cloned on
// the way in and out of the store so that callers can never mutate persisted
// state in place.
func (r Resource) Clone() Resource {
	if r == nil {
		return nil
	}
	return Resource(cloneMap(r))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Equal compares two resources by their canonical JSON representation.
func (r Resource) Equal(other Resource) bool {
	a, err := json.Marshal(r)
	if err != nil {
		return false
	}
	b, err := json.Marshal(other)
	if err != nil {
		return false
	}
	return string(a) == string(b)
}

// Stamp records the last-updated time on the resource's meta element.
func (r Resource) Stamp(now time.Time) {
	meta, _ := r["meta"].(map[string]any)
	if meta == nil {
		meta = map[string]any{}
	}
	meta["lastUpdated"] = now.UTC().Format(time.RFC3339)
	r["meta"] = meta
}
