package inventory

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"sjsage522/inventoryscraper/pkg/errors"

	"github.com/titanous/json5"
)

//go:embed tables.json5
var defaultTablesFile []byte

// tableFile mirrors the layout of tables.json5
type tableFile struct {
	Makes []struct {
		Name   string   `json:"name"`
		Models []string `json:"models"`
	} `json:"makes"`
	Trims []struct {
		Name          string `json:"name"`
		Pattern       string `json:"pattern"`
		NotFollowedBy string `json:"notFollowedBy"`
	} `json:"trims"`
	Keywords     keywordFile `json:"keywords"`
	NameKeywords keywordFile `json:"nameKeywords"`
	Selectors    []string    `json:"selectors"`
	Fallback     []string    `json:"fallback"`
	Price        struct {
		Min int `json:"min"`
		Max int `json:"max"`
	} `json:"price"`
}

type keywordFile struct {
	Sale     []string `json:"sale"`
	Original []string `json:"original"`
	Excluded []string `json:"excluded"`
}

// Make is a known manufacturer with its models sorted longest name first
type Make struct {
	Name   string
	Models []Model

	pattern *regexp.Regexp
}

// Model is a known model name and its whole-word pattern
type Model struct {
	Name string

	pattern *regexp.Regexp
}

// TrimRule maps a trim name to the pattern that detects it
type TrimRule struct {
	Name string

	pattern       *regexp.Regexp
	notFollowedBy *regexp.Regexp
}

// Tables holds the compiled lookup tables used by the extractor
type Tables struct {
	Makes     []Make
	Trims     []TrimRule
	Selectors []string
	Fallback  []string
	MinPrice  int
	MaxPrice  int

	saleWords     *regexp.Regexp
	originalWords *regexp.Regexp
	excludedWords *regexp.Regexp
	saleNames     []string
	originalNames []string
}

var (
	defaultTables     *Tables
	defaultTablesOnce sync.Once
)

// DefaultTables returns the tables compiled from the embedded data file.
// It panics if the embedded file is invalid.
func DefaultTables() *Tables {
	defaultTablesOnce.Do(func() {
		t, err := ParseTables(defaultTablesFile)
		if err != nil {
			panic(err)
		}
		defaultTables = t
	})
	return defaultTables
}

// LoadTables reads a JSON5 table file from path. An empty path yields the
// embedded tables.
func LoadTables(path string) (*Tables, error) {
	if path == "" {
		return DefaultTables(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfiguration(fmt.Sprintf("failed to read tables file %s", path), err)
	}
	return ParseTables(data)
}

// ParseTables decodes and compiles JSON5 table data
func ParseTables(data []byte) (*Tables, error) {
	var file tableFile
	if err := json5.Unmarshal(data, &file); err != nil {
		return nil, errors.NewConfiguration("failed to decode tables", err)
	}

	if len(file.Makes) == 0 {
		return nil, errors.NewConfiguration("tables define no makes", nil)
	}
	if len(file.Selectors) == 0 {
		return nil, errors.NewConfiguration("tables define no selectors", nil)
	}

	t := &Tables{
		Selectors:     file.Selectors,
		Fallback:      file.Fallback,
		MinPrice:      file.Price.Min,
		MaxPrice:      file.Price.Max,
		saleNames:     lowerAll(file.NameKeywords.Sale),
		originalNames: lowerAll(file.NameKeywords.Original),
	}
	if len(t.Fallback) == 0 {
		t.Fallback = []string{"div", "section", "article", "li"}
	}
	if t.MinPrice <= 0 {
		t.MinPrice = 3000
	}
	if t.MaxPrice <= t.MinPrice {
		t.MaxPrice = 300000
	}

	for _, m := range file.Makes {
		mk := Make{Name: m.Name, pattern: wordPattern(m.Name)}
		for _, name := range m.Models {
			mk.Models = append(mk.Models, Model{Name: name, pattern: wordPattern(name)})
		}
		// Multi-word models must be tried before their single-word prefixes
		sort.SliceStable(mk.Models, func(i, j int) bool {
			return len(mk.Models[i].Name) > len(mk.Models[j].Name)
		})
		t.Makes = append(t.Makes, mk)
	}

	for _, tr := range file.Trims {
		re, err := regexp.Compile("(?i)" + tr.Pattern)
		if err != nil {
			return nil, errors.NewConfiguration(fmt.Sprintf("invalid pattern for trim %q", tr.Name), err)
		}
		rule := TrimRule{Name: tr.Name, pattern: re}
		if tr.NotFollowedBy != "" {
			nf, err := regexp.Compile("(?i)^(?:" + tr.NotFollowedBy + ")")
			if err != nil {
				return nil, errors.NewConfiguration(fmt.Sprintf("invalid notFollowedBy for trim %q", tr.Name), err)
			}
			rule.notFollowedBy = nf
		}
		t.Trims = append(t.Trims, rule)
	}

	t.saleWords = keywordPattern(file.Keywords.Sale)
	t.originalWords = keywordPattern(file.Keywords.Original)
	if len(file.Keywords.Excluded) > 0 {
		t.excludedWords = regexp.MustCompile(keywordPattern(file.Keywords.Excluded).String() + `\s*[:\-]?\s*\$?\s*$`)
	}

	return t, nil
}

// MatchIndex returns the position of the first occurrence of the trim in
// text that is not followed by its exclusion pattern, or -1.
func (r TrimRule) MatchIndex(text string) int {
	for _, loc := range r.pattern.FindAllStringIndex(text, -1) {
		if r.notFollowedBy != nil && r.notFollowedBy.MatchString(text[loc[1]:]) {
			continue
		}
		return loc[0]
	}
	return -1
}

// Matches reports whether the make name appears in text as a whole word
func (m Make) Matches(text string) bool {
	return m.pattern.MatchString(text)
}

// Matches reports whether the model name appears in text as a whole word
func (m Model) Matches(text string) bool {
	return m.pattern.MatchString(text)
}

// HasKnownMake reports whether any make of the tables appears in text
func (t *Tables) HasKnownMake(text string) bool {
	for _, m := range t.Makes {
		if m.Matches(text) {
			return true
		}
	}
	return false
}

// InPriceRange reports whether v is a plausible vehicle price
func (t *Tables) InPriceRange(v int) bool {
	return v >= t.MinPrice && v <= t.MaxPrice
}

// classifyName tags an attribute name, class or id by substring keywords
func (t *Tables) classifyName(name string) PriceTag {
	name = strings.ToLower(name)
	for _, kw := range t.saleNames {
		if strings.Contains(name, kw) {
			return TagSale
		}
	}
	for _, kw := range t.originalNames {
		if strings.Contains(name, kw) {
			return TagOriginal
		}
	}
	return TagUnknown
}

func wordPattern(s string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(s) + `\b`)
}

func keywordPattern(words []string) *regexp.Regexp {
	if len(words) == 0 {
		return nil
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func lowerAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}
