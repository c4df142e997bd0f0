package params

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Pagination maps ?page=&limit= onto LIMIT/OFFSET and, once the total is
// known, carries the page metadata back to the client.
type Pagination struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	Page       int  `json:"page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// ParsePagination never fails: bad values fall back to the defaults.
func ParsePagination(q url.Values) Pagination {
	p := Pagination{Limit: DefaultLimit, Page: 1}

	if limitStr := strings.TrimSpace(q.Get("limit")); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			switch {
			case limit <= 0:
				p.Limit = DefaultLimit
			case limit > MaxLimit:
				p.Limit = MaxLimit
			default:
				p.Limit = limit
			}
		}
	}

	if pageStr := strings.TrimSpace(q.Get("page")); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			p.Page = page
		}
	}

	p.Offset = (p.Page - 1) * p.Limit
	return p
}

func (p *Pagination) ComputeMeta(total int) {
	p.Total = total
	if p.Limit > 0 {
		p.TotalPages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	p.HasPrev = p.Page > 1
	p.HasNext = (p.Page * p.Limit) < total
}

var orderStatuses = map[string]bool{
	"pending":    true,
	"processing": true,
	"shipped":    true,
	"delivered":  true,
	"cancelled":  true,
}

// ParseOrderStatus returns the ?status= filter, or "" when absent or unknown.
func ParseOrderStatus(q url.Values) string {
	s := strings.ToLower(strings.TrimSpace(q.Get("status")))
	if orderStatuses[s] {
		return s
	}
	return ""
}
