package auth

import "context"

// Role is the authenticated party's role.
type Role string

const (
	RolePatient      Role = "patient"
	RolePractitioner Role = "practitioner"
	RoleAdmin        Role = "admin"
)

// ParseRole normalizes a role claim. "doctor" is accepted as an alias for
// practitioner, matching tokens issued by the portal.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "patient":
		return RolePatient, true
	case "practitioner", "doctor":
		return RolePractitioner, true
	case "admin":
		return RoleAdmin, true
	}
	return "", false
}

// Actor is the authenticated party performing an operation. It is derived
// from the session token per request and passed explicitly into every core
// operation; it is never persisted.
type Actor struct {
	ID   string
	Role Role
}

// Authenticated reports whether the actor carries a usable identity.
func (a Actor) Authenticated() bool {
	return a.ID != "" && a.Role != ""
}

type contextKey string

const actorKey contextKey = "actor"

// WithActor returns a context carrying the actor.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext returns the actor stored on the context, or a zero Actor
// that fails Authenticated().
func ActorFromContext(ctx context.Context) Actor {
	a, _ := ctx.Value(actorKey).(Actor)
	return a
}
