package fhir

import (
	"regexp"
	"strings"
)

// referencePattern matches references in the format "ResourceType/id".
var referencePattern = regexp.MustCompile(`^[A-Z][a-zA-Z]+/[a-zA-Z0-9\-\.]{1,64}$`)

// Ref is a parsed reference to another resource.
type Ref struct {
	Type string
	ID   string
}

// String renders the reference in canonical "Type/id" form.
func (r Ref) String() string {
	if r.Type == "" {
		return r.ID
	}
	return r.Type + "/" + r.ID
}

// ParseReference parses a reference string. Both "Patient/p1" and a bare
// "p1" are accepted; the bare form yields an empty Type.
func ParseReference(s string) (Ref, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, false
	}
	if !strings.Contains(s, "/") {
		if !idPattern.MatchString(s) {
			return Ref{}, false
		}
		return Ref{ID: s}, true
	}
	if !referencePattern.MatchString(s) {
		return Ref{}, false
	}
	parts := strings.SplitN(s, "/", 2)
	return Ref{Type: parts[0], ID: parts[1]}, true
}

// ValidReference reports whether s is a well-formed "Type/id" reference.
func ValidReference(s string) bool {
	return referencePattern.MatchString(s)
}

// MatchMode selects how a reference id is compared against an actor id.
type MatchMode int

const (
	// MatchExact compares the normalized reference id and the actor id for
	// equality. This is the only mode the server uses.
	MatchExact MatchMode = iota

	// MatchContains is substring containment. It exists only to document the
	// behavior of a legacy system this one replaces; it can match "p1"
	// against "p12" and must never be enabled for access decisions.
	MatchContains
)

// Matches reports whether the reference denotes the given actor, using
// exact comparison of the normalized id.
func Matches(reference, actorID string) bool {
	return MatchesMode(reference, actorID, MatchExact)
}

// MatchesMode is Matches with an explicit comparison mode.
func MatchesMode(reference, actorID string, mode MatchMode) bool {
	if actorID == "" {
		return false
	}
	ref, ok := ParseReference(reference)
	if !ok {
		return false
	}
	if mode == MatchContains {
		return strings.Contains(reference, actorID)
	}
	return ref.ID == actorID
}

// actorRefFields maps a resource type to the top-level fields whose
// references link the record to an actor. Appointment participants nest the
// reference under "actor"; collectRefs handles both shapes.
var actorRefFields = map[string][]string{
	"Condition":         {"subject"},
	"Observation":       {"subject", "performer"},
	"DiagnosticReport":  {"subject", "performer"},
	"MedicationRequest": {"subject", "requester"},
	"Invoice":           {"subject", "recipient"},
	"Appointment":       {"participant"},
}

// ActorRefs resolves the full set of actor references a resource carries.
// Patient and Practitioner records reference themselves through their own id,
// so a patient's ownership check works uniformly across all types.
func ActorRefs(r Resource) []string {
	rt := r.Type()
	switch rt {
	case "Patient", "Practitioner":
		if id := r.ID(); id != "" {
			return []string{rt + "/" + id}
		}
		return nil
	}

	var refs []string
	for _, field := range actorRefFields[rt] {
		refs = append(refs, collectRefs(r[field])...)
	}
	return refs
}

// ReferencesActor reports whether any of the resource's actor references
// resolves to the given actor id.
func ReferencesActor(r Resource, actorID string) bool {
	for _, ref := range ActorRefs(r) {
		if Matches(ref, actorID) {
			return true
		}
	}
	return false
}

// ReferencesTarget reports whether any of the resource's actor references
// resolves to the given target reference. When both sides carry a type, the
// types must agree; a bare reference constrains only the id.
func ReferencesTarget(r Resource, want Ref) bool {
	if want.ID == "" {
		return false
	}
	for _, raw := range ActorRefs(r) {
		got, ok := ParseReference(raw)
		if !ok || got.ID != want.ID {
			continue
		}
		if want.Type == "" || got.Type == "" || got.Type == want.Type {
			return true
		}
	}
	return false
}

// collectRefs extracts reference strings from a field value. Accepted shapes:
// a plain string, {"reference": "..."}, {"actor": ...}, and lists of any of
// those.
func collectRefs(v any) []string {
	switch val := v.(type) {
	case string:
		if val != "" {
			return []string{val}
		}
	case map[string]any:
		if ref, ok := val["reference"].(string); ok && ref != "" {
			return []string{ref}
		}
		if actor, ok := val["actor"]; ok {
			return collectRefs(actor)
		}
	case []any:
		var refs []string
		for _, item := range val {
			refs = append(refs, collectRefs(item)...)
		}
		return refs
	}
	return nil
}
