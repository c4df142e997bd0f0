package params

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantPage   int
		wantOffset int
	}{
		{"", DefaultLimit, 1, 0},
		{"limit=20&page=3", 20, 3, 40},
		{"limit=500", MaxLimit, 1, 0},
		{"limit=-1&page=0", DefaultLimit, 1, 0},
		{"limit=abc&page=xyz", DefaultLimit, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			p := ParsePagination(q)
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantOffset, p.Offset)
		})
	}
}

func TestComputeMeta(t *testing.T) {
	p := Pagination{Limit: 10, Page: 2, Offset: 10}
	p.ComputeMeta(25)

	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasPrev)
	assert.True(t, p.HasNext)

	p = Pagination{Limit: 10, Page: 3, Offset: 20}
	p.ComputeMeta(25)
	assert.False(t, p.HasNext)
}

func TestParseOrderStatus(t *testing.T) {
	q := url.Values{"status": {" Shipped "}}
	assert.Equal(t, "shipped", ParseOrderStatus(q))

	q = url.Values{"status": {"lost"}}
	assert.Empty(t, ParseOrderStatus(q))
}
