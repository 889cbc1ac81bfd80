package pagination

import (
	"fmt"
	"strconv"

	"boingbox-backend/pkg/constants"
)

// Params represents page/limit query parameters
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Parse reads page and limit strings. Empty values fall back to page 1 and
// defaultLimit; the limit is clamped to [1, MaxPageSize].
func Parse(pageStr, limitStr string, defaultLimit int) (Params, error) {
	page := 1
	if pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil {
			return Params{}, fmt.Errorf("invalid page parameter: %w", err)
		}
		page = p
	}

	limit := defaultLimit
	if limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			return Params{}, fmt.Errorf("invalid limit parameter: %w", err)
		}
		limit = l
	}

	return New(page, limit, defaultLimit), nil
}

// New normalizes already decoded page and limit values.
func New(page, limit, defaultLimit int) Params {
	if page < 1 {
		page = 1
	}
	if limit == 0 {
		limit = defaultLimit
	}
	if limit < 1 {
		limit = 1
	} else if limit > constants.MaxPageSize {
		limit = constants.MaxPageSize
	}
	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// Window returns the slice bounds of this page over a list of n items.
func (p Params) Window(n int) (start, end int) {
	start = p.Offset
	if start > n {
		start = n
	}
	end = start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}
