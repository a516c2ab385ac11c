package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Page     int
	PageSize int
}

// FromContext reads page and page_size from the query string. Missing or
// non-numeric values fall back to the defaults and page_size is capped at
// MaxPageSize.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}

	size, _ := strconv.Atoi(c.QueryParam("page_size"))
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	return Params{Page: page, PageSize: size}
}

// Limit is the SQL LIMIT for the page.
func (p Params) Limit() int { return p.PageSize }

// Offset is the SQL OFFSET for the page.
func (p Params) Offset() int { return (p.Page - 1) * p.PageSize }

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset()+p.PageSize < total
}

// Response wraps a paginated API response.
type Response struct {
	Items    interface{} `json:"items"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func NewResponse(items interface{}, total int, p Params) *Response {
	return &Response{
		Items:    items,
		Total:    total,
		Page:     p.Page,
		PageSize: p.PageSize,
	}
}
