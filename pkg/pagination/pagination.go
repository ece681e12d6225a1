package pagination

import "fmt"

const (
	DefaultLimit = 10
	MaxLimit     = 10000
)

// Params describes one page of an ordered collection.
type Params struct {
	Limit  int
	Offset int
}

// New normalizes a page size. Non-positive sizes fall back to DefaultLimit
// and sizes above MaxLimit are capped.
func New(limit int) Params {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Limit: limit}
}

// Pages splits total items into consecutive pages of p.Limit items. At least
// one page is always returned, so an empty collection still yields one
// (empty) page.
func (p Params) Pages(total int) []Params {
	pages := []Params{{Limit: p.Limit, Offset: 0}}
	for cur := pages[0]; cur.HasNext(total); {
		cur = Params{Limit: p.Limit, Offset: cur.NextOffset()}
		pages = append(pages, cur)
	}
	return pages
}

// Bounds returns the half-open index range [start, end) of the page within a
// collection of total items.
func (p Params) Bounds(total int) (int, int) {
	start := p.Offset
	if start > total {
		start = total
	}
	end := p.Offset + p.Limit
	if end > total {
		end = total
	}
	return start, end
}

// HasNext returns true if there are more items after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// Number returns the zero-based page number.
func (p Params) Number() int {
	if p.Limit <= 0 {
		return 0
	}
	return p.Offset / p.Limit
}

func (p Params) String() string {
	return fmt.Sprintf("page %d (offset %d, limit %d)", p.Number(), p.Offset, p.Limit)
}
