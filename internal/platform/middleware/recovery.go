package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Recovery turns handler panics into a 500. When exposeDetails is set the
// panic value travels in the response, which is only wanted in development.
func Recovery(logger zerolog.Logger, exposeDetails bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					var stack [4096]byte
					n := runtime.Stack(stack[:], false)

					logger.Error().
						Str("request_id", fmt.Sprintf("%v", c.Get("request_id"))).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", string(stack[:n])).
						Msg("panic recovered")

					body := map[string]interface{}{
						"success": false,
						"message": "Internal server error",
					}
					if exposeDetails {
						body["details"] = fmt.Sprintf("%v", r)
					}
					err = echo.NewHTTPError(http.StatusInternalServerError, body)
				}
			}()
			return next(c)
		}
	}
}
