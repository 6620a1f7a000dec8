// Package actorctx carries the authenticated user id on a context.Context
// so code below the HTTP layer can learn who is acting without gin.
package actorctx

import "context"

type key struct{}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, key{}, userID)
}

func UserIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(key{}).(string)

	return v, ok && v != ""
}
