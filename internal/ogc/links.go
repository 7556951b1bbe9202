package ogc

import (
	"net/url"
	"strconv"
)

// PageQuery is the structured representation of an offset-based listing
// request. Extra carries every query parameter that is not limit/offset
// so navigation links preserve filters the pagination layer does not
// interpret.
type PageQuery struct {
	Limit  int
	Offset int
	Extra  url.Values
}

// Encode re-derives the full query string from the structured query.
// url.Values.Encode sorts keys, so the output is deterministic and
// independent of the incoming request's formatting.
func (q PageQuery) Encode() string {
	values := url.Values{}
	for key, vals := range q.Extra {
		for _, v := range vals {
			values.Add(key, v)
		}
	}
	values.Set("limit", strconv.Itoa(q.Limit))
	values.Set("offset", strconv.Itoa(q.Offset))
	return values.Encode()
}

// WithOffset returns a copy of the query pointing at a different page.
func (q PageQuery) WithOffset(offset int) PageQuery {
	q.Offset = offset
	return q
}

// BuildPageLinks constructs self/prev/next navigation links for a
// listing response. prev is present iff offset > 0, with the new offset
// clamped at zero; next is present iff offset+limit is below the total
// matching count.
func BuildPageLinks(base string, q PageQuery, total int) []Link {
	links := []Link{{
		Href: base + "?" + q.Encode(),
		Rel:  RelSelf,
		Type: MediaTypeJSON,
	}}
	if q.Offset > 0 {
		prev := q.Offset - q.Limit
		if prev < 0 {
			prev = 0
		}
		links = append(links, Link{
			Href: base + "?" + q.WithOffset(prev).Encode(),
			Rel:  RelPrev,
			Type: MediaTypeJSON,
		})
	}
	if q.Offset+q.Limit < total {
		links = append(links, Link{
			Href: base + "?" + q.WithOffset(q.Offset+q.Limit).Encode(),
			Rel:  RelNext,
			Type: MediaTypeJSON,
		})
	}
	return links
}
