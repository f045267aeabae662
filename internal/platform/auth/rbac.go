package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin     = "admin"
	RolePhysician = "physician"
	RoleNurse     = "nurse"
	RolePatient   = "patient"
)

// RequireRole returns middleware that checks if the user has at least one of
// the specified roles. Admin passes every check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, has := range userRoles {
				if has == RoleAdmin {
					return next(c)
				}
				for _, required := range roles {
					if has == required {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// PatientOnly reports whether roles grant nothing beyond the patient role, so
// the caller must be limited to their own records.
func PatientOnly(roles []string) bool {
	patient := false
	for _, r := range roles {
		switch r {
		case RolePatient:
			patient = true
		case RoleAdmin, RolePhysician, RoleNurse:
			return false
		}
	}
	return patient
}

var publicPaths = map[string]bool{
	"/health":        true,
	"/health/db":     true,
	"/fhir/metadata": true,
}

// Skipper lets health checks and FHIR discovery through without a token.
func Skipper(c echo.Context) bool {
	return publicPaths[c.Path()] || publicPaths[c.Request().URL.Path]
}
