package resolver

import (
	"regexp"
	"strconv"
)

// Half of a spread.
const (
	HalfLeft  = "left"
	HalfRight = "right"
)

// Address is a positional page/box reference.
type Address struct {
	Page   int
	Box    int // 1-based position within the half
	Spread int
	Half   string
}

// Addressing derives an Address from a tile's original file name.
type Addressing interface {
	Parse(filename string) (Address, bool)
}

// AddressFor computes spread and half for a 1-based page number: odd pages
// are the left half, and spread = ceil(page/2).
func AddressFor(page, box int) Address {
	half := HalfRight
	if page%2 == 1 {
		half = HalfLeft
	}
	return Address{Page: page, Box: box, Spread: (page + 1) / 2, Half: half}
}

var filenamePattern = regexp.MustCompile(`(?i)-p(\d{1,2})-.*?-?box(\d{2})-`)

// FilenameAddressing reads "...-p<NN>-...-box<NN>-..." tile names.
type FilenameAddressing struct{}

// Parse implements Addressing. Page 0 and box 00 are not addresses.
func (FilenameAddressing) Parse(filename string) (Address, bool) {
	m := filenamePattern.FindStringSubmatch(filename)
	if m == nil {
		return Address{}, false
	}
	page, _ := strconv.Atoi(m[1])
	box, _ := strconv.Atoi(m[2])
	if page < 1 || box < 1 {
		return Address{}, false
	}
	return AddressFor(page, box), true
}
