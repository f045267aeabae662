// Package pagination reads limit/offset query parameters and wraps list
// responses. FHIR clients send _count/_offset, API clients limit/offset.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
	MaxOffset    = 10000
)

type Params struct {
	Limit  int
	Offset int
}

// FromContext reads the paging parameters, preferring the FHIR names. Bad or
// out-of-range values fall back to the defaults or are clamped.
func FromContext(c echo.Context) Params {
	limit := firstPositive(c, "_count", "limit")
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset := firstPositive(c, "_offset", "offset")
	if offset > MaxOffset {
		offset = MaxOffset
	}
	return Params{Limit: limit, Offset: offset}
}

func firstPositive(c echo.Context, names ...string) int {
	for _, name := range names {
		if n, err := strconv.Atoi(c.QueryParam(name)); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// HasNext reports whether results remain after this page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// Response wraps a page of API results.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total, limit, offset int) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: Params{Limit: limit, Offset: offset}.HasNext(total),
	}
}
