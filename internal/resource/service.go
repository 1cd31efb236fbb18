// Package resource is the invariant-enforcement boundary of the server.
// Every operation runs the same sequence: validate the request shape,
// authorize the actor against the policy engine, execute the store
// operation, then record the audit entry. Transport handlers call this
// facade and nothing below it.
package resource

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/audit"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/fhir"
	"github.com/clinicore/clinicore/internal/platform/policy"
	"github.com/clinicore/clinicore/internal/platform/store"
)

// Service sequences validation, authorization, storage and audit.
type Service struct {
	store     store.Store
	policy    *policy.Engine
	audit     *audit.Logger
	validator *fhir.Validator
	log       zerolog.Logger
}

// NewService creates the facade.
func NewService(st store.Store, pol *policy.Engine, aud *audit.Logger, log zerolog.Logger) *Service {
	return &Service{
		store:     st,
		policy:    pol,
		audit:     aud,
		validator: fhir.NewValidator(),
		log:       log,
	}
}

// Create validates, authorizes and persists a new resource. A patient
// creating their own Patient record has the id forced to their actor id.
func (s *Service) Create(ctx context.Context, actor auth.Actor, resourceType string, body fhir.Resource) (fhir.Resource, error) {
	if vr := s.validator.Validate(body, resourceType, false); !vr.Valid {
		return nil, &ValidationError{Issues: vr.Issues}
	}

	decision := s.policy.Authorize(actor, policy.ActionCreate, resourceType, body)
	if !decision.Allowed {
		s.recordDenied(actor, policy.ActionCreate, resourceType, body.ID(), decision.Reason)
		return nil, policy.ErrForbidden
	}

	if decision.ForceID != "" {
		body = body.Clone()
		body.SetID(decision.ForceID)
	}

	created, err := s.store.Create(ctx, body)
	if err != nil {
		return nil, err
	}

	s.recordAllowed(actor, policy.ActionCreate, resourceType, created.ID(), decision.Warning, nil)
	return created, nil
}

// Read fetches a single resource and authorizes the actor against its
// resolved references.
func (s *Service) Read(ctx context.Context, actor auth.Actor, resourceType, id string) (fhir.Resource, error) {
	if !fhir.KnownType(resourceType) {
		return nil, store.ErrNotFound
	}

	stored, err := s.store.Read(ctx, resourceType, id)
	if err != nil {
		return nil, err
	}

	decision := s.policy.Authorize(actor, policy.ActionRead, resourceType, stored)
	if !decision.Allowed {
		s.recordDenied(actor, policy.ActionRead, resourceType, id, decision.Reason)
		return nil, policy.ErrForbidden
	}

	s.recordAllowed(actor, policy.ActionRead, resourceType, id, "", nil)
	return stored, nil
}

// Update replaces an existing resource wholesale. The policy is evaluated
// twice: against the incoming body before the store is touched, and against
// the stored snapshot being replaced, so a caller can neither write a record
// they are not allowed to author nor overwrite one whose references belong
// to someone else.
func (s *Service) Update(ctx context.Context, actor auth.Actor, resourceType, id string, body fhir.Resource) (fhir.Resource, error) {
	if body.ID() == "" {
		body = body.Clone()
		body.SetID(id)
	}
	if vr := s.validator.Validate(body, resourceType, true); !vr.Valid {
		return nil, &ValidationError{Issues: vr.Issues}
	}
	if body.ID() != id {
		return nil, &ValidationError{Issues: []fhir.OperationOutcomeIssue{{
			Severity:    fhir.IssueSeverityError,
			Code:        fhir.IssueTypeInvalid,
			Diagnostics: fmt.Sprintf("body id %q does not match url id %q", body.ID(), id),
			Expression:  []string{"id"},
		}}}
	}

	decision := s.policy.Authorize(actor, policy.ActionUpdate, resourceType, body)
	if !decision.Allowed {
		s.recordDenied(actor, policy.ActionUpdate, resourceType, id, decision.Reason)
		return nil, policy.ErrForbidden
	}

	current, err := s.store.Read(ctx, resourceType, id)
	if err != nil {
		return nil, err
	}
	prior := s.policy.Authorize(actor, policy.ActionUpdate, resourceType, current)
	if !prior.Allowed {
		s.recordDenied(actor, policy.ActionUpdate, resourceType, id, prior.Reason)
		return nil, policy.ErrForbidden
	}

	warning := decision.Warning
	if warning == "" {
		warning = prior.Warning
	}

	updated, err := s.store.Update(ctx, body)
	if err != nil {
		return nil, err
	}

	s.recordAllowed(actor, policy.ActionUpdate, resourceType, id, warning, nil)
	return updated, nil
}

// Search returns every resource of the type visible to the actor that also
// matches the requested filters. The role's ownership predicate is ANDed
// with the filters, so no filter can widen visibility.
func (s *Service) Search(ctx context.Context, actor auth.Actor, resourceType string, filters map[string]string) ([]fhir.Resource, error) {
	ownership, err := s.policy.SearchFilter(actor, resourceType)
	if err != nil {
		s.recordDenied(actor, policy.ActionSearch, resourceType, "", "search denied")
		return nil, err
	}

	results, err := s.store.Search(ctx, resourceType, store.And(ownership, filterPredicate(filters)))
	if err != nil {
		return nil, err
	}

	details := map[string]string{"results": strconv.Itoa(len(results))}
	for k, v := range filters {
		details["filter."+k] = v
	}
	s.recordAllowed(actor, policy.ActionSearch, resourceType, "", "", details)
	return results, nil
}

// referenceFilterKeys are query parameters matched against a resource's
// resolved actor references instead of a literal field.
var referenceFilterKeys = map[string]bool{
	"subject": true, "patient": true, "participant": true,
	"performer": true, "actor": true,
}

func filterPredicate(filters map[string]string) store.Predicate {
	if len(filters) == 0 {
		return nil
	}
	// Copy so later mutation of the caller's map cannot change the filter.
	want := make(map[string]string, len(filters))
	for k, v := range filters {
		want[k] = v
	}

	return func(r fhir.Resource) bool {
		for k, v := range want {
			if referenceFilterKeys[k] {
				ref, ok := fhir.ParseReference(v)
				if !ok || !fhir.ReferencesTarget(r, ref) {
					return false
				}
				continue
			}
			if r.StringField(k) != v {
				return false
			}
		}
		return true
	}
}

func (s *Service) recordAllowed(actor auth.Actor, action policy.Action, resourceType, id, warning string, details map[string]string) {
	if warning != "" {
		if details == nil {
			details = map[string]string{}
		}
		details["participant_warning"] = warning
		s.log.Warn().
			Str("actor_id", actor.ID).
			Str("action", string(action)).
			Str("resource_type", resourceType).
			Str("resource_id", id).
			Msg(warning)
	}
	s.audit.Record(audit.Entry{
		ActorID:      actor.ID,
		ActorRole:    string(actor.Role),
		Action:       string(action),
		ResourceType: resourceType,
		ResourceID:   id,
		Outcome:      audit.OutcomeAllowed,
		Details:      details,
	})
}

func (s *Service) recordDenied(actor auth.Actor, action policy.Action, resourceType, id, reason string) {
	s.log.Warn().
		Str("actor_id", actor.ID).
		Str("actor_role", string(actor.Role)).
		Str("action", string(action)).
		Str("resource_type", resourceType).
		Str("resource_id", id).
		Str("reason", reason).
		Msg("access denied")
	s.audit.Record(audit.Entry{
		ActorID:      actor.ID,
		ActorRole:    string(actor.Role),
		Action:       string(action),
		ResourceType: resourceType,
		ResourceID:   id,
		Outcome:      audit.OutcomeDenied,
		Details:      map[string]string{"reason": reason},
	})
}
