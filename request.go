package gpadmin

import (
	"net/url"
	"strconv"
	"strings"
)

// ListRequest carries the index page parameters of one request
type ListRequest struct {
	Search    string
	Sort      string
	SortOrder string
	Page      int
}

// ParseListRequest reads search, sort, sort_order and page from a query
// string. Missing or invalid pages become 1.
func ParseListRequest(values url.Values) ListRequest {
	req := ListRequest{
		Search:    strings.TrimSpace(values.Get("search")),
		Sort:      strings.TrimSpace(values.Get("sort")),
		SortOrder: strings.TrimSpace(values.Get("sort_order")),
		Page:      1,
	}
	if p, err := strconv.Atoi(values.Get("page")); err == nil && p > 0 {
		req.Page = p
	}
	return req
}

// Direction returns the requested sort direction
func (r ListRequest) Direction() OrderDirection {
	return ParseDirection(r.SortOrder)
}
