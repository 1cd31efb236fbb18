package fhir

import "testing"

func TestParseReference(t *testing.T) {
	ref, ok := ParseReference("Patient/p1")
	if !ok {
		t.Fatal("expected valid reference")
	}
	if ref.Type != "Patient" || ref.ID != "p1" {
		t.Errorf("got %+v", ref)
	}
}

func TestParseReference_Bare(t *testing.T) {
	ref, ok := ParseReference("p1")
	if !ok {
		t.Fatal("expected bare id to parse")
	}
	if ref.Type != "" || ref.ID != "p1" {
		t.Errorf("got %+v", ref)
	}
}

func TestParseReference_Malformed(t *testing.T) {
	for _, s := range []string{"", "patient/p1", "Patient/", "Patient/p1/extra", "Patient/p 1"} {
		if _, ok := ParseReference(s); ok {
			t.Errorf("%q should not parse", s)
		}
	}
}

func TestMatches_Exact(t *testing.T) {
	if !Matches("Patient/p1", "p1") {
		t.Error("Patient/p1 should match p1")
	}
	if !Matches("p1", "p1") {
		t.Error("bare p1 should match p1")
	}
}

func TestMatches_NoPrefixLeak(t *testing.T) {
	// A legacy system matched by substring containment, which let "p1" see
	// "p12" records. Exact matching must reject these.
	if Matches("Patient/p12", "p1") {
		t.Error("p1 must not match Patient/p12")
	}
	if Matches("Patient/p1", "p12") {
		t.Error("p12 must not match Patient/p1")
	}
	if Matches("Practitioner/xp1x", "p1") {
		t.Error("p1 must not match embedded id")
	}
}

func TestMatchesMode_ContainsIsLooser(t *testing.T) {
	if !MatchesMode("Patient/p12", "p1", MatchContains) {
		t.Error("containment mode should match prefix ids")
	}
}

func TestMatches_EmptyActor(t *testing.T) {
	if Matches("Patient/p1", "") {
		t.Error("empty actor id must never match")
	}
}

func TestActorRefs_Condition(t *testing.T) {
	r := Resource{"resourceType": "Condition", "subject": "Patient/p1"}
	refs := ActorRefs(r)
	if len(refs) != 1 || refs[0] != "Patient/p1" {
		t.Errorf("got %v", refs)
	}
}

func TestActorRefs_SubjectMap(t *testing.T) {
	r := Resource{"resourceType": "Condition", "subject": map[string]any{"reference": "Patient/p1"}}
	refs := ActorRefs(r)
	if len(refs) != 1 || refs[0] != "Patient/p1" {
		t.Errorf("got %v", refs)
	}
}

func TestActorRefs_AppointmentParticipants(t *testing.T) {
	r := Resource{
		"resourceType": "Appointment",
		"participant": []any{
			map[string]any{"actor": map[string]any{"reference": "Patient/p1"}},
			map[string]any{"actor": "Practitioner/d1"},
		},
	}
	refs := ActorRefs(r)
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %v", refs)
	}
	if refs[0] != "Patient/p1" || refs[1] != "Practitioner/d1" {
		t.Errorf("got %v", refs)
	}
}

func TestActorRefs_PatientSelf(t *testing.T) {
	r := Resource{"resourceType": "Patient", "id": "p1"}
	refs := ActorRefs(r)
	if len(refs) != 1 || refs[0] != "Patient/p1" {
		t.Errorf("got %v", refs)
	}
}

func TestReferencesTarget_TypeAware(t *testing.T) {
	r := Resource{"resourceType": "Condition", "subject": "Patient/p1"}
	if !ReferencesTarget(r, Ref{Type: "Patient", ID: "p1"}) {
		t.Error("Patient/p1 should match")
	}
	if ReferencesTarget(r, Ref{Type: "Practitioner", ID: "p1"}) {
		t.Error("same id under a different type must not match")
	}
	// Bare targets constrain the id only.
	if !ReferencesTarget(r, Ref{ID: "p1"}) {
		t.Error("bare p1 should match")
	}
	if ReferencesTarget(r, Ref{}) {
		t.Error("empty target must never match")
	}
}

func TestActorRefs_DiagnosticReportPerformer(t *testing.T) {
	r := Resource{
		"resourceType": "DiagnosticReport",
		"subject":      "Patient/p1",
		"performer":    []any{map[string]any{"reference": "Practitioner/d1"}},
	}
	if !ReferencesActor(r, "d1") {
		t.Error("performer should resolve to d1")
	}
	if !ReferencesActor(r, "p1") {
		t.Error("subject should resolve to p1")
	}
	if ReferencesActor(r, "p3") {
		t.Error("p3 is not referenced")
	}
}
