package resource

import (
	"github.com/clinicore/clinicore/internal/platform/fhir"
)

// ValidationError reports why a request body was rejected, with field-level
// issues the transport layer renders into the error envelope.
type ValidationError struct {
	Issues []fhir.OperationOutcomeIssue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "validation failed"
	}
	return "validation failed: " + e.Issues[0].Diagnostics
}

// ToOperationOutcome converts the error into the client-facing envelope.
func (e *ValidationError) ToOperationOutcome() *fhir.OperationOutcome {
	return &fhir.OperationOutcome{ResourceType: "OperationOutcome", Issue: e.Issues}
}
