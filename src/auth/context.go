package auth

import "context"

type contextKey string

const ActorKey contextKey = "actor"

// Actor identifies who is driving a request: the tenant it is scoped to
// and, for human-initiated operations, the user behind it.
type Actor struct {
	TenantID string
	UserID   string
}

// ExecutedBy renders the actor for the correction ledger: "user:<id>" for
// humans, GUARDIAN otherwise.
func (a *Actor) ExecutedBy() string {
	if a != nil && a.UserID != "" {
		return "user:" + a.UserID
	}
	return "GUARDIAN"
}

func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

func GetActorFromContext(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(*Actor)
	return actor, ok
}
