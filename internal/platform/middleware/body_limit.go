package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medscan/medscan/internal/platform/fhir"
)

// batchPath receives many documents in one body and gets its own limit.
const batchPath = "/api/v1/extract/batch"

// BodyLimit caps request bodies at defaultLimit, or batchLimit for
// POST /api/v1/extract/batch. Limits are sizes like "512K", "2M" or "1G"; a
// bare number is bytes. Oversized requests get a 413, as an OperationOutcome
// on /fhir routes.
func BodyLimit(defaultLimit string, batchLimit string) echo.MiddlewareFunc {
	defaultBytes := ParseLimit(defaultLimit)
	batchBytes := ParseLimit(batchLimit)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			limit := defaultBytes
			if req.Method == http.MethodPost && req.URL.Path == batchPath {
				limit = batchBytes
			}

			if req.ContentLength > limit {
				return payloadTooLarge(c, limit)
			}

			// Content-Length may be absent or wrong, so the reader enforces
			// the limit too.
			req.Body = &limitedReadCloser{ReadCloser: req.Body, remaining: limit}
			return next(c)
		}
	}
}

type limitedReadCloser struct {
	io.ReadCloser
	remaining int64
	exceeded  bool
}

func (r *limitedReadCloser) Read(p []byte) (int, error) {
	if r.exceeded {
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	// One byte past the limit is enough to detect overflow.
	if int64(len(p)) > r.remaining+1 {
		p = p[:r.remaining+1]
	}
	n, err := r.ReadCloser.Read(p)
	r.remaining -= int64(n)
	if r.remaining < 0 {
		r.exceeded = true
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}
	return n, err
}

func payloadTooLarge(c echo.Context, limit int64) error {
	msg := fmt.Sprintf("request body exceeds maximum allowed size of %d bytes", limit)
	if strings.HasPrefix(c.Request().URL.Path, "/fhir") {
		return c.JSON(http.StatusRequestEntityTooLarge, fhir.NewOperationOutcome("error", "too-costly", msg))
	}
	return echo.NewHTTPError(http.StatusRequestEntityTooLarge, msg)
}

const defaultBodyLimit = 1 << 20

// ParseLimit converts a size such as "2M" to bytes. Empty or unparseable
// input yields 1 MB.
func ParseLimit(s string) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return defaultBodyLimit
	}
	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "G"):
		multiplier = 1 << 30
	case strings.HasSuffix(s, "M"):
		multiplier = 1 << 20
	case strings.HasSuffix(s, "K"):
		multiplier = 1 << 10
	}
	if multiplier > 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return defaultBodyLimit
	}
	return n * multiplier
}
