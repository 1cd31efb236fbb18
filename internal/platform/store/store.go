// Package store provides the type-partitioned resource store. It is purely
// mechanical storage: no authorization or audit logic lives here, and it
// never assumes an authenticated caller.
package store

import (
	"context"
	"errors"

	"github.com/clinicore/clinicore/internal/platform/fhir"
)

var (
	// ErrNotFound is returned when no resource exists under (type, id).
	ErrNotFound = errors.New("resource not found")
	// ErrConflict is returned when a create supplies an id that already
	// exists in that type's partition.
	ErrConflict = errors.New("resource id already exists")
)

// Predicate filters resources during a search. A nil Predicate matches all.
type Predicate func(fhir.Resource) bool

// And composes predicates; nil operands are treated as match-all.
func And(a, b Predicate) Predicate {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(r fhir.Resource) bool {
		return a(r) && b(r)
	}
}

// Store is a persistent collection of resource snapshots, one partition per
// resource type. Updates replace the whole snapshot; nothing is ever
// physically deleted.
type Store interface {
	// Create persists the resource, assigning an id if absent. Returns
	// ErrConflict if the supplied id already exists in the type partition.
	Create(ctx context.Context, r fhir.Resource) (fhir.Resource, error)

	// Read returns the resource under (resourceType, id), or ErrNotFound.
	Read(ctx context.Context, resourceType, id string) (fhir.Resource, error)

	// Update replaces an existing resource wholesale. Returns ErrNotFound
	// if no resource exists under (r.Type(), r.ID()).
	Update(ctx context.Context, r fhir.Resource) (fhir.Resource, error)

	// Search returns every resource of the type matching the predicate.
	// It is a full scan of the type partition; no index is maintained.
	Search(ctx context.Context, resourceType string, p Predicate) ([]fhir.Resource, error)
}
