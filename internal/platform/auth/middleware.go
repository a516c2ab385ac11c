package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// ErrUnknownPrincipal is returned by a PrincipalResolver when the token
// subject no longer maps to a user.
var ErrUnknownPrincipal = errors.New("unknown principal")

// PrincipalResolver loads the current state of the user named by a token.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, userID int64) (Principal, error)
}

type JWTConfig struct {
	Tokens   *TokenIssuer
	Resolver PrincipalResolver
	Skipper  echomw.Skipper
}

const (
	msgUnauthenticated = "Não autenticado"
	msgInactive        = "Usuário inativo"
)

// JWTMiddleware authenticates the bearer token, reloads the user and stores
// the resulting Principal on the request context. Unknown users get 401,
// inactive ones 403.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	skipper := cfg.Skipper
	if skipper == nil {
		skipper = echomw.DefaultSkipper
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper(c) {
				return next(c)
			}

			unauthorized := func() error {
				c.Response().Header().Set("WWW-Authenticate", "Bearer")
				return echo.NewHTTPError(http.StatusUnauthorized, msgUnauthenticated)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return unauthorized()
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return unauthorized()
			}

			claims, err := cfg.Tokens.Parse(strings.TrimSpace(parts[1]))
			if err != nil {
				return unauthorized()
			}
			userID, err := claims.UserID()
			if err != nil {
				return unauthorized()
			}

			ctx := c.Request().Context()
			principal, err := cfg.Resolver.ResolvePrincipal(ctx, userID)
			if err != nil {
				if errors.Is(err, ErrUnknownPrincipal) {
					return unauthorized()
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
			}
			if !principal.Active {
				return echo.NewHTTPError(http.StatusForbidden, msgInactive)
			}

			c.Set("principal_id", principal.ID)
			c.SetRequest(c.Request().WithContext(WithPrincipal(ctx, principal)))
			return next(c)
		}
	}
}
