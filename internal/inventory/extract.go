package inventory

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"sjsage522/inventoryscraper/logger"
	"sjsage522/inventoryscraper/pkg/errors"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	yearPattern = regexp.MustCompile(`\b(19[89]\d|20[0-2]\d)\b`)

	mileagePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(\d{1,3}(?:,\d{3})+|\d{1,6})\s*(?:km|kms|kilometers?|kilometres?)\b`),
		regexp.MustCompile(`(?i)\b(\d{1,3}(?:,\d{3})+|\d{1,6})\s*(?:miles?|mi)\b`),
		regexp.MustCompile(`(?i)\b(?:Mileage|Odometer)[:\s]*(\d{1,3}(?:,\d{3})+|\d{1,6})\b`),
	}

	stockPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bStock\s*(?:Number|No\.?)?\s*[#:]*\s*([A-Z0-9]{3,15})\b`),
		regexp.MustCompile(`(?i)#\s*([A-Z0-9]{3,15})\b`),
	}

	enginePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(\d\.\d+\s?L\s*(?:V-?\d+|I-?\d+|Hybrid|Turbo|Diesel))\b`),
		regexp.MustCompile(`(?i)\b(\d\.\d+\s?L)\b`),
	}
)

const maxMileage = 500000

// data-* attributes read from a listing element, in lookup order
var (
	yearAttrs    = []string{"data-year", "data-model-year"}
	makeAttrs    = []string{"data-make", "data-manufacturer"}
	modelAttrs   = []string{"data-model", "data-model-name"}
	trimAttrs    = []string{"data-trim", "data-trim-name"}
	mileageAttrs = []string{"data-mileage", "data-odometer"}
	stockAttrs   = []string{"data-stock-number", "data-stock"}
)

// Extractor turns listing elements into vehicle records using lookup tables
type Extractor struct {
	tables *Tables
	log    *logger.Logger
}

// NewExtractor creates an extractor backed by the given tables
func NewExtractor(tables *Tables) *Extractor {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Extractor{
		tables: tables,
		log:    logger.ForComponent("extractor"),
	}
}

// Extract builds a vehicle record from a listing element. A panic while
// extracting is logged and the fields filled so far are returned.
func (e *Extractor) Extract(sel *goquery.Selection, index int) (v Vehicle) {
	b := &vehicleBuilder{}
	defer func() {
		if r := recover(); r != nil {
			err := errors.NewExtraction("extractor", fmt.Sprintf("element %d", index), fmt.Errorf("panic: %v", r))
			e.log.Error().
				Err(err).
				Int("element", index).
				Msg("Failed to extract vehicle")
			v = b.build()
		}
	}()

	text := Text(sel)

	b.setYear(ExtractYear(text))

	mk, model := e.MakeModel(text)
	b.setMake(mk)
	b.setModel(model)
	b.setTrim(e.Trim(text, model))
	b.setStock(ExtractStock(text))

	decision, evidence := e.tables.ClassifyPrices(sel)
	b.setPrice(decision.Original)
	b.setSalePrice(decision.Sale)
	if len(evidence) > 0 {
		id := b.v.StockNumber
		if id == "" {
			id = strconv.Itoa(index)
		}
		e.log.Debug().
			Str("vehicle", id).
			Interface("evidence", evidence).
			Int("value", decision.Original).
			Int("sale_value", decision.Sale).
			Msg("Price decision")
	}

	b.setMileage(ExtractMileage(text))
	b.setEngine(ExtractEngine(text))

	e.dataAttributes(b, sel)
	e.jsonLDVehicle(b, sel)

	return b.build()
}

// ExtractYear returns the first model-year token in text
func ExtractYear(text string) string {
	if m := yearPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// ExtractMileage returns the first odometer reading in range, as digits
func ExtractMileage(text string) string {
	for _, re := range mileagePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			val := strings.ReplaceAll(m[1], ",", "")
			if n, err := strconv.Atoi(val); err == nil && n <= maxMileage {
				return val
			}
		}
	}
	return ""
}

// ExtractStock returns the dealer stock number. Candidates without a digit
// are words, not stock numbers.
func ExtractStock(text string) string {
	for _, re := range stockPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if strings.ContainsAny(m[1], "0123456789") {
				return m[1]
			}
		}
	}
	return ""
}

// ExtractEngine returns the engine description, e.g. "2.5L I4"
func ExtractEngine(text string) string {
	for _, re := range enginePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.Join(strings.Fields(m[1]), " ")
		}
	}
	return ""
}

// MakeModel finds the first make whose name and one of whose models appear
// in text. When makes appear but none of their models does, the first
// appearing make is returned without a model.
func (e *Extractor) MakeModel(text string) (string, string) {
	fallback := ""
	for _, mk := range e.tables.Makes {
		if !mk.Matches(text) {
			continue
		}
		for _, model := range mk.Models {
			if model.Matches(text) {
				return mk.Name, model.Name
			}
		}
		if fallback == "" {
			fallback = mk.Name
		}
	}
	return fallback, ""
}

// Trim returns the first trim found in text, skipping trims whose name is
// already part of the model name.
func (e *Extractor) Trim(text, model string) string {
	lowerModel := strings.ToLower(model)
	for _, rule := range e.tables.Trims {
		if rule.MatchIndex(text) < 0 {
			continue
		}
		if model != "" && strings.Contains(lowerModel, strings.ToLower(rule.Name)) {
			continue
		}
		return rule.Name
	}
	return ""
}

// canonicalMake maps a make spelled in any case to its table name
func (e *Extractor) canonicalMake(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	for _, mk := range e.tables.Makes {
		if strings.EqualFold(mk.Name, name) {
			return mk.Name
		}
	}
	return cases.Title(language.English).String(name)
}

// dataAttributes fills empty fields from the element's data-* attributes
func (e *Extractor) dataAttributes(b *vehicleBuilder, sel *goquery.Selection) {
	first := func(keys []string) string {
		for _, key := range keys {
			if val, ok := sel.Attr(key); ok && strings.TrimSpace(val) != "" {
				return val
			}
		}
		return ""
	}

	b.setYear(strings.TrimSpace(first(yearAttrs)))
	b.setMake(e.canonicalMake(first(makeAttrs)))
	b.setModel(first(modelAttrs))
	b.setTrim(first(trimAttrs))
	if mileage := digitsOnly(first(mileageAttrs)); mileage != "" {
		if n, err := strconv.Atoi(mileage); err == nil && n <= maxMileage {
			b.setMileage(mileage)
		}
	}
	b.setStock(first(stockAttrs))
}
