package auth

import (
	"context"

	"github.com/labstack/echo/v4"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller. Its ID doubles as the tenant id for
// every UBS the caller creates.
type Principal struct {
	ID     int64  `json:"id"`
	Name   string `json:"nome"`
	Email  string `json:"email"`
	Active bool   `json:"ativo"`
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// MustPrincipal reads the principal set by JWTMiddleware. Handlers behind the
// middleware can rely on it being present.
func MustPrincipal(c echo.Context) Principal {
	p, _ := PrincipalFromContext(c.Request().Context())
	return p
}
