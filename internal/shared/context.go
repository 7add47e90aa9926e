package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting admin role id in context.
func ContextWithActor(ctx context.Context, roleID string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, roleID)
}

// ActorFromContext extracts the acting role id, or "" when absent.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey{}).(string)
	return actor
}
