package fhir

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// SetVersionHeaders sets ETag and Last-Modified headers on the response.
func SetVersionHeaders(c echo.Context, versionID int, lastModified time.Time) {
	c.Response().Header().Set("ETag", FormatETag(versionID))
	if !lastModified.IsZero() {
		c.Response().Header().Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	}
}

// ParseETag extracts the version number from an ETag value like W/"3" or "3".
func ParseETag(etag string) (int, error) {
	etag = strings.TrimSpace(etag)
	etag = strings.TrimPrefix(etag, "W/")
	etag = strings.Trim(etag, `"`)

	v, err := strconv.Atoi(etag)
	if err != nil {
		return 0, fmt.Errorf("ETag must contain a numeric version: %s", etag)
	}
	return v, nil
}

// FormatETag creates a weak ETag from a version ID.
func FormatETag(versionID int) string {
	return fmt.Sprintf(`W/"%d"`, versionID)
}

// NotModified reports whether If-None-Match names the current version, in
// which case a conditional read should answer 304.
func NotModified(c echo.Context, currentVersion int) bool {
	ifNoneMatch := c.Request().Header.Get("If-None-Match")
	if ifNoneMatch == "" {
		return false
	}
	clientVersion, err := ParseETag(ifNoneMatch)
	if err != nil {
		return false
	}
	return clientVersion == currentVersion
}
