// Package offer turns the raw text of a catalogue tile into a short offer
// summary: brand, percent off, cleaned description and a display title.
package offer

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/MeKo-Tech/spreadmap/internal/plu"
)

// MaxDetectedBrands caps Offer.DetectedBrands.
const MaxDetectedBrands = 5

// brandLines is how many leading lines are searched for the primary brand.
const brandLines = 4

// Percent is a parsed percent-off phrase.
type Percent struct {
	Raw   string `json:"raw"`
	Value int    `json:"value"`
}

// Offer is the parsed summary of one tile.
type Offer struct {
	Brand          string   `json:"brand,omitempty"`
	PercentOff     *Percent `json:"percentOff,omitempty"`
	Description    string   `json:"description,omitempty"`
	Title          string   `json:"title,omitempty"`
	DetectedBrands []string `json:"detectedBrands,omitempty"`
}

var (
	alsoAvailable = regexp.MustCompile(`(?i)\balso\s+available\b`)
	pluList       = regexp.MustCompile(`\(\s*\d{4,8}(?:\s*[,/&-]\s*\d{1,8})*\s*\)`)
	emptyBrackets = regexp.MustCompile(`[(\[]\s*[,/&\-\s]*[)\]]`)
	noiseWords    = regexp.MustCompile(`(?i)\b(?:each|ea|save|only|off|selected|varieties|variety|range|now|was|plus?|up\s+to)\b`)
	whitespace    = regexp.MustCompile(`\s+`)
	letters       = regexp.MustCompile(`\pL{2,}`)

	quoteReplacer = strings.NewReplacer(
		"‘", "'", "’", "'", "‚", "'", "‛", "'",
		"“", `"`, "”", `"`, "„", `"`, "«", `"`, "»", `"`,
	)
)

type percentPattern struct {
	re     *regexp.Regexp
	prefix string
}

// Tried in order; the first valid match wins.
var percentPatterns = []percentPattern{
	{regexp.MustCompile(`(?i)\bup\s+to\s+(\d{1,3})\s*%(?:\s*off\b)?`), "Up to "},
	{regexp.MustCompile(`(?i)\bsave\s+(\d{1,3})\s*%(?:\s*off\b)?`), ""},
	{regexp.MustCompile(`(?i)\b(\d{1,3})\s*%(?:\s*off\b)?`), ""},
}

// Parser parses offers against a brand dictionary.
type Parser struct {
	brands     []brand
	allowShort map[string]bool
}

// NewParser builds a parser for dict.
func NewParser(dict Dictionary) *Parser {
	p := &Parser{allowShort: make(map[string]bool, len(dict.AllowShort))}
	for _, s := range dict.AllowShort {
		p.allowShort[strings.ToLower(strings.TrimSpace(s))] = true
	}
	seen := make(map[string]bool)
	for _, label := range dict.Brands {
		label = strings.TrimSpace(label)
		key := strings.ToLower(label)
		if label == "" || seen[key] {
			continue
		}
		seen[key] = true
		p.brands = append(p.brands, newBrand(label))
	}
	sort.SliceStable(p.brands, func(i, j int) bool {
		return len(p.brands[i].label) > len(p.brands[j].label)
	})
	return p
}

// Parse derives an Offer from raw tile text.
func (p *Parser) Parse(text string) Offer {
	all := normalizeLines(text)
	var lines []string
	for _, l := range all {
		if !p.isNoiseLine(l) {
			lines = append(lines, l)
		}
	}
	body := strings.Join(lines, "\n")

	var off Offer
	pct, span := findPercent(body)
	off.PercentOff = pct
	off.Brand = p.bestBrand(lines)
	off.DetectedBrands = p.detectBrands(strings.Join(all, "\n"))

	if span != nil {
		body = body[:span[0]] + strings.Repeat(" ", span[1]-span[0]) + body[span[1]:]
	}
	off.Description = p.describe(body, off.Brand)

	var parts []string
	if pct != nil {
		parts = append(parts, pct.Raw)
	}
	for _, s := range []string{off.Brand, off.Description} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	off.Title = strings.Join(parts, " ")
	return off
}

// isNoiseLine drops "also available" lines and bare PLU lists that carry no
// percent and no known brand.
func (p *Parser) isNoiseLine(line string) bool {
	if alsoAvailable.MatchString(line) {
		return true
	}
	if !pluList.MatchString(line) || strings.Contains(line, "%") || p.bestBrand([]string{line}) != "" {
		return false
	}
	rest := noiseWords.ReplaceAllString(pluList.ReplaceAllString(line, " "), " ")
	return len(letters.FindAllString(rest, -1)) < 2
}

func findPercent(text string) (*Percent, []int) {
	for _, pp := range percentPatterns {
		for _, m := range pp.re.FindAllStringSubmatchIndex(text, -1) {
			v, err := strconv.Atoi(text[m[2]:m[3]])
			if err != nil || v <= 0 || v > 100 {
				continue
			}
			return &Percent{Raw: pp.prefix + strconv.Itoa(v) + "% Off", Value: v}, m[:2]
		}
	}
	return nil, nil
}

func (p *Parser) describe(body, brandLabel string) string {
	s := plu.Mask(body)
	if brandLabel != "" {
		for _, b := range p.brands {
			if b.label == brandLabel {
				for b.pattern.MatchString(s) {
					s = b.pattern.ReplaceAllString(s, "$1 $3")
				}
				break
			}
		}
	}
	s = emptyBrackets.ReplaceAllString(s, " ")
	s = noiseWords.ReplaceAllString(s, " ")
	s = emptyBrackets.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.Trim(s, " -,;:|/*.!•")
}

// normalizeLines applies NFKC, straightens quotes, collapses whitespace and
// drops blank lines.
func normalizeLines(text string) []string {
	text = quoteReplacer.Replace(norm.NFKC.String(text))
	var out []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(whitespace.ReplaceAllString(l, " "))
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
