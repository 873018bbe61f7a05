package params

import (
	"strconv"
	"strings"

	"go-availability/core/constants"

	"github.com/labstack/echo/v4"
)

type QueryParams struct {
	PageNumber int
	PageSize   int
	Search     string
}

// NewQueryParams reads page, limit and search from the query string, clamping
// out-of-range values to the defaults.
func NewQueryParams(c echo.Context) *QueryParams {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		page = constants.DefaultPageNumber
	}

	size, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || size < 1 {
		size = constants.DefaultPageSize
	}
	if size > constants.MaxPageSize {
		size = constants.MaxPageSize
	}

	return &QueryParams{
		PageNumber: page,
		PageSize:   size,
		Search:     strings.TrimSpace(c.QueryParam("search")),
	}
}

func (p QueryParams) Offset() int {
	return (p.PageNumber - 1) * p.PageSize
}
