package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the authenticated actor id in context.
func ContextWithActor(ctx context.Context, actor int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the authenticated actor id from context.
func ActorFromContext(ctx context.Context) (int64, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(int64)
	return actor, ok
}
