package offer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Dictionary is the brand list used for matching.
// AllowShort lists labels of three characters or fewer that may still match.
type Dictionary struct {
	Brands     []string `yaml:"brands"`
	AllowShort []string `yaml:"allow_short"`
}

// LoadDictionary decodes a YAML brand dictionary.
func LoadDictionary(r io.Reader) (Dictionary, error) {
	var d Dictionary
	if err := yaml.NewDecoder(r).Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return Dictionary{}, nil
		}
		return Dictionary{}, fmt.Errorf("decode brand dictionary: %w", err)
	}
	return d, nil
}

// LoadDictionaryFile reads a dictionary from fs. A missing file yields an
// empty dictionary.
func LoadDictionaryFile(fs afero.Fs, path string) (Dictionary, error) {
	f, err := fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Dictionary{}, nil
		}
		return Dictionary{}, fmt.Errorf("open brand dictionary: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadDictionary(f)
}

type brand struct {
	label   string
	short   bool
	pattern *regexp.Regexp
	first   *regexp.Regexp
}

func boundaryPattern(s string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|[^\pL\pN])(` + regexp.QuoteMeta(s) + `)($|[^\pL\pN])`)
}

func newBrand(label string) brand {
	fields := strings.Fields(label)
	b := brand{
		label:   label,
		short:   len(fields) == 1 && utf8.RuneCountInString(label) <= 3,
		pattern: boundaryPattern(strings.Join(fields, " ")),
	}
	if len(fields) > 1 && utf8.RuneCountInString(fields[0]) >= 4 {
		b.first = boundaryPattern(fields[0])
	}
	return b
}

func (p *Parser) usable(b brand) bool {
	return !b.short || p.allowShort[strings.ToLower(b.label)]
}

// bestBrand returns the longest brand found in the earliest of the first few lines.
func (p *Parser) bestBrand(lines []string) string {
	for i, line := range lines {
		if i >= brandLines {
			break
		}
		for _, b := range p.brands {
			if p.usable(b) && b.pattern.MatchString(line) {
				return b.label
			}
		}
	}
	return ""
}

// detectBrands lists every plausible brand mention, exact phrase matches
// before first-token matches, then by position.
func (p *Parser) detectBrands(text string) []string {
	type hit struct {
		label string
		score int
		pos   int
	}
	var hits []hit
	for _, b := range p.brands {
		if !p.usable(b) {
			continue
		}
		if m := b.pattern.FindStringSubmatchIndex(text); m != nil {
			hits = append(hits, hit{b.label, 2, m[4]})
			continue
		}
		if b.first != nil {
			if m := b.first.FindStringSubmatchIndex(text); m != nil {
				hits = append(hits, hit{b.label, 1, m[4]})
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].pos < hits[j].pos
	})
	var out []string
	for _, h := range hits {
		if len(out) == MaxDetectedBrands {
			break
		}
		out = append(out, h.label)
	}
	return out
}
