package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/event-permission/internal"
	"github.com/frahmantamala/event-permission/internal/access"
	"github.com/frahmantamala/event-permission/internal/auth"
	coreuser "github.com/frahmantamala/event-permission/internal/core/user"
	"github.com/frahmantamala/event-permission/pkg/logger"
)

type SessionResolver interface {
	CurrentSession(ctx context.Context, token string) (*auth.Claims, error)
}

type RoleLookup interface {
	RoleOf(ctx context.Context, userID string) (coreuser.Role, error)
}

// AccessGate resolves the caller on every request to a guarded path,
// asks the access policy for a decision and either redirects or passes the
// request on with the session in its context.
func AccessGate(sessions SessionResolver, roles RoleLookup, cookie auth.SessionCookie, lg *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			area := access.Classify(r.URL.Path)
			if area == access.AreaPublic {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			log := logger.FromOr(ctx, lg)

			var (
				claims  *auth.Claims
				role    coreuser.Role
				roleErr error
			)
			if token := cookie.TokenFromRequest(r); token != "" {
				c, err := sessions.CurrentSession(ctx, token)
				if err != nil {
					log.Debug("access gate: session rejected", "error", err)
				} else {
					claims = c
					role, roleErr = roles.RoleOf(ctx, c.UserID)
					if roleErr != nil {
						log.Warn("access gate: role lookup failed", "user_id", c.UserID, "error", roleErr)
					}
				}
			}

			subject := access.SubjectFor(claims != nil, role, roleErr)
			decision := access.Decide(area, subject)
			if !decision.Allowed() {
				log.Debug("access gate: redirect",
					"path", r.URL.Path,
					"area", area.String(),
					"subject", subject.String(),
					"to", decision.RedirectTo)
				http.Redirect(w, r, decision.RedirectTo, http.StatusFound)
				return
			}

			if subject != access.SubjectAnonymous {
				ctx = internal.ContextWithSession(ctx, internal.Session{
					UserID: claims.UserID,
					Email:  claims.Email,
					Role:   role,
					Token:  cookie.TokenFromRequest(r),
				})
				ctx = logger.With(ctx, "userID", claims.UserID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession guards routes outside the gated areas that still need a
// signed-in caller, such as /me.
func RequireSession(sessions SessionResolver, roles RoleLookup, cookie auth.SessionCookie) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := cookie.TokenFromRequest(r)
			claims, err := sessions.CurrentSession(ctx, token)
			if err != nil {
				writeUnauthorized(w)
				return
			}
			role, err := roles.RoleOf(ctx, claims.UserID)
			if err != nil {
				writeUnauthorized(w)
				return
			}
			ctx = internal.ContextWithSession(ctx, internal.Session{
				UserID: claims.UserID,
				Email:  claims.Email,
				Role:   role,
				Token:  token,
			})
			next.ServeHTTP(w, r.WithContext(logger.With(ctx, "userID", claims.UserID)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	status, body := internal.ErrSessionRequired.ToHTTPResponse()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
