package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func serveWithSecurityHeaders(t *testing.T, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/records", nil), rec)
	return rec, SecurityHeaders()(handler)(c)
}

func TestSecurityHeaders_AppliesTable(t *testing.T) {
	rec, err := serveWithSecurityHeaders(t, func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, kv := range securityHeaders {
		if got := rec.Header().Get(kv[0]); got != kv[1] {
			t.Errorf("header %s: got %q, want %q", kv[0], got, kv[1])
		}
	}
}

func TestSecurityHeaders_DocumentsAreNeverCached(t *testing.T) {
	rec, _ := serveWithSecurityHeaders(t, func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"title": "Lab Report"})
	})
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("expected Cache-Control no-store, got %q", got)
	}
	if got := rec.Header().Get("Referrer-Policy"); got != "no-referrer" {
		t.Errorf("expected Referrer-Policy no-referrer, got %q", got)
	}
}

func TestSecurityHeaders_SetOnHandlerError(t *testing.T) {
	rec, err := serveWithSecurityHeaders(t, func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "record not found")
	})
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404 HTTPError, got %v", err)
	}
	if len(rec.Header()) < len(securityHeaders) {
		t.Errorf("expected %d headers on error path, got %v", len(securityHeaders), rec.Header())
	}
}
