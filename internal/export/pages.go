package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// Pages is an ordered map from page number to PageExport. It is written as
// an array and accepts either an array or an object keyed by page number.
type Pages struct {
	numbers []int
	byPage  map[int]PageExport
}

// NewPages builds Pages from a list; later duplicates replace earlier ones.
func NewPages(pages ...PageExport) Pages {
	var p Pages
	for _, pe := range pages {
		p.Set(pe)
	}
	return p
}

// Set inserts or replaces the page with pe.PageNumber.
func (p *Pages) Set(pe PageExport) {
	if p.byPage == nil {
		p.byPage = make(map[int]PageExport)
	}
	if _, ok := p.byPage[pe.PageNumber]; !ok {
		i, _ := slices.BinarySearch(p.numbers, pe.PageNumber)
		p.numbers = slices.Insert(p.numbers, i, pe.PageNumber)
	}
	p.byPage[pe.PageNumber] = pe
}

// Get returns the page with the given number.
func (p Pages) Get(number int) (PageExport, bool) {
	pe, ok := p.byPage[number]
	return pe, ok
}

// First returns the lowest-numbered page.
func (p Pages) First() (PageExport, bool) {
	if len(p.numbers) == 0 {
		return PageExport{}, false
	}
	return p.byPage[p.numbers[0]], true
}

// Len returns the number of pages.
func (p Pages) Len() int { return len(p.numbers) }

// All returns the pages in ascending page order.
func (p Pages) All() []PageExport {
	out := make([]PageExport, 0, len(p.numbers))
	for _, n := range p.numbers {
		out = append(out, p.byPage[n])
	}
	return out
}

// MarshalJSON writes the pages as an array.
func (p Pages) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.All())
}

// UnmarshalJSON accepts an array of pages or an object keyed by page number.
// Object entries without a pageNumber take it from their key.
func (p *Pages) UnmarshalJSON(data []byte) error {
	*p = Pages{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '[':
		var list []PageExport
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		for _, pe := range list {
			p.Set(pe)
		}
	case '{':
		var obj map[string]PageExport
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		for key, pe := range obj {
			if pe.PageNumber == 0 {
				n, err := strconv.Atoi(key)
				if err != nil {
					return fmt.Errorf("page key %q: %w", key, err)
				}
				pe.PageNumber = n
			}
			p.Set(pe)
		}
	default:
		return fmt.Errorf("pages: unexpected JSON %q", data[:1])
	}
	return nil
}
