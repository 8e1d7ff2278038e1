package server

import (
	"context"

	"github.com/GoCodeAlone/taskboard/auth"
)

type contextKey int

const ctxKeyIdentity contextKey = 0

func contextWithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

func identityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(auth.Identity)
	return id, ok
}
