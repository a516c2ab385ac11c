package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route paths that bypass authentication: infrastructure
// probes and the endpoints that hand out tokens.
var publicPaths = map[string]bool{
	"/health":        true,
	"/health/db":     true,
	"/metrics":       true,
	"/auth/register": true,
	"/auth/login":    true,
}

// AuthSkipper matches on the registered route path, so it must run after
// routing (echo.Use on a group, not e.Pre).
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}
