package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medscan/medscan/internal/platform/fhir"
)

// RequestTimeout puts a deadline on each request context. Extraction honours
// the context, so a handler that runs out of time returns and the caller gets
// a 504.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if !errors.Is(ctx.Err(), context.DeadlineExceeded) || c.Response().Committed {
				return err
			}
			return gatewayTimeout(c)
		}
	}
}

func gatewayTimeout(c echo.Context) error {
	const msg = "request processing exceeded the allowed time limit"
	if strings.HasPrefix(c.Request().URL.Path, "/fhir") {
		return c.JSON(http.StatusGatewayTimeout, fhir.NewOperationOutcome("error", "timeout", msg))
	}
	return echo.NewHTTPError(http.StatusGatewayTimeout, msg)
}
