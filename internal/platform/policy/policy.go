// Package policy decides whether an actor may perform an operation on a
// resource. Visibility is relationship-derived: a rule row per resource
// type says which actors own a record through its resolved references,
// not which tables or columns a role can touch.
package policy

import (
	"errors"

	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/fhir"
	"github.com/clinicore/clinicore/internal/platform/store"
)

// ErrForbidden is the terminal, non-retryable denial outcome. It carries no
// detail so a denial never confirms that the target exists.
var ErrForbidden = errors.New("forbidden")

// Action is an operation the engine authorizes.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionRead   Action = "READ"
	ActionUpdate Action = "UPDATE"
	ActionSearch Action = "SEARCH"
)

// Rule describes how one resource type is scoped per role.
type Rule struct {
	// PatientOwned restricts patient-role actors to resources whose
	// resolved reference set contains their own id.
	PatientOwned bool

	// ParticipantScoped applies the ownership filter to every role, not
	// just patients. Appointments work this way: even an admin only sees
	// appointments they participate in.
	ParticipantScoped bool

	// ForceSelfID forces a patient-created resource's id to the actor's
	// own id (Patient signup: you can only create yourself).
	ForceSelfID bool

	// WarnUnlistedWriter flags writes where the author is not among the
	// resource's references. The write goes through; the audit entry
	// carries the warning so compliance review can follow up.
	WarnUnlistedWriter bool

	// SelfOrAdminWrite restricts create/update to admins or the actor the
	// record itself denotes (Practitioner directory entries).
	SelfOrAdminWrite bool
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	// ForceID, when non-empty, is the id the resource must be stored
	// under regardless of what the caller supplied.
	ForceID string
	// Warning is attached to the audit entry of an allowed operation.
	Warning string
	// Reason is logged server-side for denials; it is never sent to the
	// client.
	Reason string
}

// Engine evaluates the per-(resourceType, role) rule table.
type Engine struct {
	rules map[string]Rule
}

// NewEngine creates an engine with the given rule table. Resource types
// without a row are denied for everyone (default deny).
func NewEngine(rules map[string]Rule) *Engine {
	return &Engine{rules: rules}
}

// DefaultRules returns the rule table for the clinical resource types this
// server stores.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		"Patient":           {PatientOwned: true, ForceSelfID: true},
		"Practitioner":      {SelfOrAdminWrite: true},
		"Condition":         {PatientOwned: true},
		"Observation":       {PatientOwned: true},
		"DiagnosticReport":  {PatientOwned: true},
		"MedicationRequest": {PatientOwned: true},
		"Invoice":           {PatientOwned: true},
		"Appointment":       {PatientOwned: true, ParticipantScoped: true, WarnUnlistedWriter: true},
	}
}

// Authorize decides a single-resource action. The resource is the incoming
// body for create/update and the stored snapshot for read.
func (e *Engine) Authorize(actor auth.Actor, action Action, resourceType string, r fhir.Resource) Decision {
	if !actor.Authenticated() {
		return Decision{Reason: "unauthenticated"}
	}

	rule, ok := e.rules[resourceType]
	if !ok {
		return Decision{Reason: "no rule for " + resourceType}
	}

	owned := fhir.ReferencesActor(r, actor.ID)

	if actor.Role == auth.RolePatient && rule.PatientOwned {
		if rule.ForceSelfID && action == ActionCreate {
			// Creating yourself: the id is forced, so ownership holds by
			// construction.
			return Decision{Allowed: true, ForceID: actor.ID}
		}
		if !owned {
			return Decision{Reason: "resource does not reference actor"}
		}
		return Decision{Allowed: true}
	}

	if rule.SelfOrAdminWrite && (action == ActionCreate || action == ActionUpdate) {
		if actor.Role != auth.RoleAdmin && !owned {
			return Decision{Reason: "write restricted to admin or self"}
		}
	}

	// Practitioners and admins: broad access, except participant-scoped
	// types where reads are filtered and unlisted writes are flagged.
	if rule.ParticipantScoped {
		switch action {
		case ActionRead:
			if !owned {
				return Decision{Reason: "actor is not a participant"}
			}
		case ActionCreate, ActionUpdate:
			if rule.WarnUnlistedWriter && !owned {
				return Decision{Allowed: true, Warning: "author is not a listed participant"}
			}
		}
	}

	return Decision{Allowed: true}
}

// SearchFilter returns the ownership predicate for a search by this actor,
// or ErrForbidden. A nil predicate means unrestricted visibility. The
// caller composes it (logical AND) with any requested filters, so no filter
// can widen visibility beyond the role's allowance.
func (e *Engine) SearchFilter(actor auth.Actor, resourceType string) (store.Predicate, error) {
	if !actor.Authenticated() {
		return nil, ErrForbidden
	}

	rule, ok := e.rules[resourceType]
	if !ok {
		return nil, ErrForbidden
	}

	restricted := rule.ParticipantScoped ||
		(actor.Role == auth.RolePatient && rule.PatientOwned)
	if !restricted {
		return nil, nil
	}

	actorID := actor.ID
	return func(r fhir.Resource) bool {
		return fhir.ReferencesActor(r, actorID)
	}, nil
}
