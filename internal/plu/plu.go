// Package plu finds product look-up codes in catalogue text.
//
// A PLU is a 4 to 8 digit token. Hyphenated ranges such as "12345-50" expand
// to every code in between. Digits next to a percent sign, a decimal point or
// a dollar sign are prices or percentages and are skipped.
package plu

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	// MinLen and MaxLen bound the digit count of a code.
	MinLen = 4
	MaxLen = 8
	// MaxRangeExpansion caps how many codes one range may produce.
	MaxRangeExpansion = 500
	// contextWindow is how many characters on each side are inspected.
	contextWindow = 2
)

var (
	rangePattern = regexp.MustCompile(`\d{4,8}\s*-\s*\d{1,8}`)
	tokenPattern = regexp.MustCompile(`\b\d{4,8}\b`)
	rangeParts   = regexp.MustCompile(`^(\d+)\s*-\s*(\d+)$`)
)

type candidate struct {
	pos   int
	codes []string
}

// Extract returns the PLU codes in text, deduplicated in order of first
// appearance. Tokens inside a range rejected for its context are skipped
// as well, so "$12345-12350" yields nothing.
func Extract(text string) []string {
	var cands []candidate
	var rejected [][]int
	for _, m := range rangePattern.FindAllStringIndex(text, -1) {
		if disallowed(text, m[0], m[1]) {
			rejected = append(rejected, m)
			continue
		}
		if codes := expandRange(text[m[0]:m[1]]); len(codes) > 0 {
			cands = append(cands, candidate{pos: m[0], codes: codes})
		}
	}
	for _, m := range tokenPattern.FindAllStringIndex(text, -1) {
		if disallowed(text, m[0], m[1]) || within(rejected, m) {
			continue
		}
		cands = append(cands, candidate{pos: m[0], codes: []string{text[m[0]:m[1]]}})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].pos < cands[j].pos })

	seen := make(map[string]bool)
	var out []string
	for _, c := range cands {
		for _, code := range c.codes {
			if len(code) < MinLen || len(code) > MaxLen || seen[code] {
				continue
			}
			seen[code] = true
			out = append(out, code)
		}
	}
	return out
}

// Mask replaces every accepted range and token with spaces of equal length.
func Mask(text string) string {
	b := []byte(text)
	blank := func(start, end int) {
		for i := start; i < end; i++ {
			b[i] = ' '
		}
	}
	var rejected [][]int
	for _, m := range rangePattern.FindAllStringIndex(text, -1) {
		switch {
		case disallowed(text, m[0], m[1]):
			rejected = append(rejected, m)
		case len(expandRange(text[m[0]:m[1]])) > 0:
			blank(m[0], m[1])
		}
	}
	for _, m := range tokenPattern.FindAllStringIndex(text, -1) {
		if !disallowed(text, m[0], m[1]) && !within(rejected, m) {
			blank(m[0], m[1])
		}
	}
	return string(b)
}

func within(spans [][]int, m []int) bool {
	for _, sp := range spans {
		if m[0] >= sp[0] && m[1] <= sp[1] {
			return true
		}
	}
	return false
}

// disallowed reports whether text[start:end] sits in a price, percentage or
// decimal context.
func disallowed(text string, start, end int) bool {
	match := text[start:end]
	if strings.Contains(match, ".") {
		return true
	}
	before := text[max(0, start-contextWindow):start]
	after := text[end:min(len(text), end+contextWindow)]
	if strings.Contains(before, "%") || strings.Contains(after, "%") {
		return true
	}
	if strings.HasSuffix(before, ".") || strings.HasPrefix(after, ".") {
		return true
	}
	return strings.HasSuffix(strings.TrimRight(before, " "), "$")
}

// expandRange turns "12345-50" into 12345..12350. An end value shorter than
// the start borrows the start's leading digits. Descending ranges yield nothing.
func expandRange(s string) []string {
	m := rangeParts.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil
	}
	startStr, endStr := m[1], m[2]
	if len(endStr) < len(startStr) {
		endStr = startStr[:len(startStr)-len(endStr)] + endStr
	}
	start, err := strconv.ParseUint(startStr, 10, 64)
	if err != nil {
		return nil
	}
	end, err := strconv.ParseUint(endStr, 10, 64)
	if err != nil || end < start {
		return nil
	}
	width := len(startStr)
	n := min(end-start+1, MaxRangeExpansion)
	codes := make([]string, 0, n)
	for v := start; v < start+n; v++ {
		codes = append(codes, fmt.Sprintf("%0*d", width, v))
	}
	return codes
}
