package fhir

import "fmt"

// Issue severity codes.
const (
	IssueSeverityError       = "error"
	IssueSeverityWarning     = "warning"
	IssueSeverityInformation = "information"
)

// Issue type codes.
const (
	IssueTypeStructure  = "structure"
	IssueTypeRequired   = "required"
	IssueTypeValue      = "value"
	IssueTypeInvalid    = "invalid"
	IssueTypeForbidden  = "forbidden"
	IssueTypeNotFound   = "not-found"
	IssueTypeDuplicate  = "duplicate"
	IssueTypeProcessing = "processing"
	IssueTypeSecurity   = "security"
	IssueTypeException  = "exception"
)

// OperationOutcome is the structured error envelope returned to clients.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string   `json:"severity"`
	Code        string   `json:"code"`
	Diagnostics string   `json:"diagnostics,omitempty"`
	Expression  []string `json:"expression,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{Severity: severity, Code: code, Diagnostics: diagnostics},
		},
	}
}

// ForbiddenOutcome is deliberately detail-free so that a denial does not leak
// whether the target resource exists.
func ForbiddenOutcome() *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeForbidden, "access denied")
}

func NotFoundOutcome(resourceType, id string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeNotFound,
		fmt.Sprintf("%s/%s not found", resourceType, id))
}

func ConflictOutcome(resourceType, id string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeDuplicate,
		fmt.Sprintf("%s/%s already exists", resourceType, id))
}

// ErrorOutcome is the generic 500 envelope. Internals stay in the server log.
func ErrorOutcome() *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeException, "internal server error")
}
