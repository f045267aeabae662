package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medscan/medscan/internal/platform/auth"
)

// Audit logs one "document_access" event per call to /api/v1 or /fhir, naming
// who touched which resource. Document text is never included.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !isAuditablePath(path) {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			resource := resourceType(path)
			ctx := req.Context()

			logger.Info().
				Str("type", "audit").
				Str("request_id", requestID(c)).
				Str("user_id", auth.UserIDFromContext(ctx)).
				Strs("user_roles", auth.RolesFromContext(ctx)).
				Str("resource_type", resource).
				Str("patient_id", auditPatientID(c)).
				Str("action", auditAction(req.Method, resource)).
				Str("path", path).
				Str("remote_ip", c.RealIP()).
				Int("status", status).
				Msg("document_access")

			return err
		}
	}
}

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/fhir/") || strings.HasPrefix(path, "/api/v1/")
}

// auditAction names what the request did. Extraction calls read the posted
// text without storing it.
func auditAction(method, resource string) string {
	if resource == "extract" {
		return "extract"
	}
	switch method {
	case http.MethodPost:
		if resource == "records" {
			return "create"
		}
		return "search"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// resourceType returns the first path segment after /fhir/ or /api/v1/, so
// /fhir/DiagnosticReport/x gives DiagnosticReport.
func resourceType(path string) string {
	rest := strings.TrimPrefix(strings.TrimPrefix(path, "/fhir/"), "/api/v1/")
	if seg, _, _ := strings.Cut(rest, "/"); seg != "" {
		return seg
	}
	return "unknown"
}

// auditPatientID prefers the caller's own patient claim, then any patient
// filter on the query.
func auditPatientID(c echo.Context) string {
	if pid := auth.PatientIDFromContext(c.Request().Context()); pid != "" {
		return pid
	}
	for _, name := range []string{"patient", "patient_id"} {
		if v := c.QueryParam(name); v != "" {
			return strings.TrimPrefix(v, "Patient/")
		}
	}
	return ""
}
