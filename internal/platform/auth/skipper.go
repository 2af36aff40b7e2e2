package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists URL paths that bypass credential verification: the two
// account endpoints and the infrastructure health checks.
var publicPaths = map[string]bool{
	"/reg-mother":  true,
	"/motherlogin": true,
	"/health":      true,
	"/health/db":   true,
}

// AuthSkipper returns true for requests whose path should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Request().URL.Path)
}

// IsPublicPath reports whether the given path bypasses the identity gate.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
