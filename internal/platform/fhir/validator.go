package fhir

import (
	"fmt"
	"regexp"
)

// idPattern matches acceptable resource ids.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9\-\.]{1,64}$`)

// knownResourceTypes lists the resource types this server stores.
var knownResourceTypes = map[string]bool{
	"Patient": true, "Practitioner": true, "Appointment": true,
	"Condition": true, "Observation": true, "DiagnosticReport": true,
	"MedicationRequest": true, "Invoice": true,
}

// requiredFields maps resource types to fields that must be present on
// create and update.
var requiredFields = map[string][]string{
	"Condition":         {"subject"},
	"Observation":       {"subject"},
	"DiagnosticReport":  {"subject"},
	"MedicationRequest": {"subject"},
	"Invoice":           {"subject"},
	"Appointment":       {"participant"},
}

// statusValues maps resource types to their valid status values. Soft
// lifecycle states (cancelled appointments, resolved conditions) are field
// values; resources are never deleted.
var statusValues = map[string][]string{
	"Patient":           {"active", "inactive", "entered-in-error"},
	"Practitioner":      {"active", "inactive", "entered-in-error"},
	"Condition":         {"active", "recurrence", "relapse", "inactive", "remission", "resolved"},
	"Observation":       {"registered", "preliminary", "final", "amended", "corrected", "cancelled", "entered-in-error", "unknown"},
	"DiagnosticReport":  {"registered", "partial", "preliminary", "final", "amended", "corrected", "cancelled", "entered-in-error", "unknown"},
	"MedicationRequest": {"active", "on-hold", "cancelled", "completed", "entered-in-error", "stopped", "draft", "unknown"},
	"Appointment":       {"proposed", "pending", "booked", "arrived", "fulfilled", "cancelled", "noshow", "entered-in-error", "checked-in"},
	"Invoice":           {"draft", "issued", "balanced", "cancelled", "entered-in-error"},
}

// ValidationResult holds the issues found while validating a resource.
type ValidationResult struct {
	Valid  bool
	Issues []OperationOutcomeIssue
}

// ToOperationOutcome converts a ValidationResult into an OperationOutcome.
func (vr *ValidationResult) ToOperationOutcome() *OperationOutcome {
	return &OperationOutcome{ResourceType: "OperationOutcome", Issue: vr.Issues}
}

// Validator checks the shape of incoming resources before they reach the
// store. It knows nothing about the caller; authorization happens elsewhere.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks a resource against the rules for wantType. requireID is
// set for updates, where the body must name the record being replaced.
func (v *Validator) Validate(r Resource, wantType string, requireID bool) *ValidationResult {
	result := &ValidationResult{Valid: true}

	rt := r.Type()
	if rt == "" {
		result.fail(IssueTypeRequired, "resourceType is required", "resourceType")
		return result
	}
	if !knownResourceTypes[rt] {
		result.fail(IssueTypeValue, fmt.Sprintf("unknown resourceType: %s", rt), "resourceType")
		return result
	}
	if wantType != "" && rt != wantType {
		result.fail(IssueTypeInvalid,
			fmt.Sprintf("resourceType %s does not match endpoint %s", rt, wantType), "resourceType")
	}

	if requireID {
		v.validateID(r, result)
	} else if id := r.ID(); id != "" && !idPattern.MatchString(id) {
		result.fail(IssueTypeValue, "id contains invalid characters", "id")
	}

	v.validateRequired(r, result)
	v.validateStatus(r, result)
	v.validateReferences(r, result)

	return result
}

func (v *Validator) validateID(r Resource, result *ValidationResult) {
	id := r.ID()
	if id == "" {
		result.fail(IssueTypeRequired, "id is required", "id")
		return
	}
	if !idPattern.MatchString(id) {
		result.fail(IssueTypeValue, "id contains invalid characters", "id")
	}
}

func (v *Validator) validateRequired(r Resource, result *ValidationResult) {
	for _, field := range requiredFields[r.Type()] {
		val, ok := r[field]
		if !ok || val == nil {
			result.fail(IssueTypeRequired, fmt.Sprintf("%s is required", field), field)
			continue
		}
		if list, isList := val.([]any); isList && len(list) == 0 {
			result.fail(IssueTypeRequired, fmt.Sprintf("%s must not be empty", field), field)
		}
	}
}

func (v *Validator) validateStatus(r Resource, result *ValidationResult) {
	allowed, ok := statusValues[r.Type()]
	if !ok {
		return
	}
	status := r.StringField("status")
	if status == "" {
		return
	}
	for _, s := range allowed {
		if s == status {
			return
		}
	}
	result.fail(IssueTypeValue,
		fmt.Sprintf("invalid status %q for %s", status, r.Type()), "status")
}

func (v *Validator) validateReferences(r Resource, result *ValidationResult) {
	for _, ref := range ActorRefs(r) {
		if _, ok := ParseReference(ref); !ok {
			result.fail(IssueTypeValue,
				fmt.Sprintf("malformed reference %q", ref), "")
		}
	}
}

func (vr *ValidationResult) fail(code, diagnostics, expression string) {
	vr.Valid = false
	issue := OperationOutcomeIssue{
		Severity:    IssueSeverityError,
		Code:        code,
		Diagnostics: diagnostics,
	}
	if expression != "" {
		issue.Expression = []string{expression}
	}
	vr.Issues = append(vr.Issues, issue)
}

// KnownType reports whether the server stores the given resource type.
func KnownType(resourceType string) bool {
	return knownResourceTypes[resourceType]
}
