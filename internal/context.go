package internal

import (
	"context"

	"github.com/frahmantamala/event-permission/internal/core/user"
)

type ctxKey string

const (
	ContextSessionKey ctxKey = "session"
)

// Session is the authenticated caller resolved by the access gate. The role
// comes from the users table, never from the token.
type Session struct {
	UserID string
	Email  string
	Role   user.Role
	Token  string
}

func ContextWithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ContextSessionKey, s)
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	s, ok := ctx.Value(ContextSessionKey).(Session)
	return s, ok && s.UserID != ""
}
