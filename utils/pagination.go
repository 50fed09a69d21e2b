package utils

import (
	"net/url"
	"strconv"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// ParsePagination reads limit/offset, clamping limit to [1, MaxPageLimit] and offset to >= 0.
func ParsePagination(q url.Values) (limit, offset int) {
	limit = DefaultPageLimit
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		limit = v
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
