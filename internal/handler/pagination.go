package handler

import (
	"net/http"
	"strconv"
)

const (
	// The parent app renders the notification feed in pages of 20.
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit/offset query parameters, clamping bad or
// missing values instead of rejecting the request.
func ParsePagination(r *http.Request) PaginationParams {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	if limit <= 0 || limit > MaxPageLimit {
		limit = DefaultPageLimit
	}

	if offset < 0 {
		offset = 0
	}

	return PaginationParams{
		Limit:  limit,
		Offset: offset,
	}
}
