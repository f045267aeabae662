package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"1M", 1 << 20},
		{"2M", 2 << 20},
		{"512K", 512 << 10},
		{"512kb", 512 << 10},
		{"1G", 1 << 30},
		{"1024", 1024},
		{"", 1 << 20},
		{"invalid", 1 << 20},
		{"-5M", 1 << 20},
	}

	for _, tt := range tests {
		if got := ParseLimit(tt.input); got != tt.want {
			t.Errorf("ParseLimit(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestBodyLimit_AllowsSmallBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", strings.NewReader(`{"text":"Glucose: 95"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := func(c echo.Context) error {
		b, err := io.ReadAll(c.Request().Body)
		if err != nil {
			t.Fatalf("failed to read body: %v", err)
		}
		if len(b) == 0 {
			t.Error("expected non-empty body")
		}
		called = true
		return c.String(http.StatusOK, "ok")
	}

	if err := BodyLimit("1M", "10M")(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to be called")
	}
}

func TestBodyLimit_RejectsOversizedBody_ContentLength(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", bytes.NewReader(bytes.Repeat([]byte("x"), 2048)))
	c := e.NewContext(req, httptest.NewRecorder())

	handler := func(c echo.Context) error {
		t.Error("handler should not be called when body exceeds limit")
		return nil
	}

	err := BodyLimit("1K", "10M")(handler)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", httpErr.Code)
	}
}

func TestBodyLimit_FHIRRouteGetsOperationOutcome(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/fhir/DiagnosticReport/_search", bytes.NewReader(bytes.Repeat([]byte("x"), 2048)))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		t.Error("handler should not be called when body exceeds limit")
		return nil
	}

	if err := BodyLimit("1K", "10M")(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", rec.Code)
	}
	var outcome map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if outcome["resourceType"] != "OperationOutcome" {
		t.Errorf("expected OperationOutcome, got %v", outcome["resourceType"])
	}
}

func TestBodyLimit_UsesBatchLimit(t *testing.T) {
	e := echo.New()
	body := bytes.Repeat([]byte("x"), 2048)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract/batch", bytes.NewReader(body))
	c := e.NewContext(req, httptest.NewRecorder())
	called := false
	handler := func(c echo.Context) error {
		called = true
		return nil
	}
	if err := BodyLimit("1K", "10M")(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected batch endpoint to use the larger limit")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/extract/batch", bytes.NewReader(body))
	c = e.NewContext(req, httptest.NewRecorder())
	err := BodyLimit("512", "1K")(handler)(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 over the batch limit, got %v", err)
	}
}

func TestBodyLimit_SkipsNilBody(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/records", nil), httptest.NewRecorder())

	called := false
	handler := func(c echo.Context) error {
		called = true
		return nil
	}
	if err := BodyLimit("1", "1")(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to be called for GET with no body")
	}
}

func TestBodyLimit_EnforcesLimitDuringRead(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract/ocr", bytes.NewReader(bytes.Repeat([]byte("a"), 1024)))
	req.ContentLength = -1
	c := e.NewContext(req, httptest.NewRecorder())

	handler := func(c echo.Context) error {
		_, err := io.ReadAll(c.Request().Body)
		return err
	}

	err := BodyLimit("512", "10M")(handler)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", httpErr.Code)
	}
}

func TestBodyLimit_ExactLimitAllowed(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract/ocr", bytes.NewReader(bytes.Repeat([]byte("a"), 512)))
	req.ContentLength = -1
	c := e.NewContext(req, httptest.NewRecorder())

	handler := func(c echo.Context) error {
		b, err := io.ReadAll(c.Request().Body)
		if len(b) != 512 {
			t.Errorf("expected 512 bytes, got %d", len(b))
		}
		return err
	}
	if err := BodyLimit("512", "10M")(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
