package ctxutil

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type actorKey struct{}

// Actor is the authenticated caller as supplied by the identity layer.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a *Actor) IsAdmin() bool {
	return a != nil && strings.EqualFold(strings.TrimSpace(a.Role), RoleAdmin)
}

func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(Default(ctx), actorKey{}, a)
}

func GetActor(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	if a, ok := ctx.Value(actorKey{}).(*Actor); ok {
		return a
	}
	return nil
}
