package inventory

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PriceTag classifies a price found on a listing
type PriceTag int

const (
	TagUnknown PriceTag = iota
	TagSale
	TagOriginal
)

func (t PriceTag) String() string {
	switch t {
	case TagSale:
		return "sale"
	case TagOriginal:
		return "original"
	default:
		return "unknown"
	}
}

// MarshalText renders the tag by name in logs and JSON
func (t PriceTag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// PriceEvidence is one candidate price with the context that classified it
type PriceEvidence struct {
	Value  int      `json:"value"`
	Tag    PriceTag `json:"tag"`
	Source string   `json:"source"`
}

// PriceDecision is the outcome of price classification; zero means absent
type PriceDecision struct {
	Original int
	Sale     int
}

const keywordWindow = 100

var (
	// $-prefixed amounts, or bare amounts with thousands separators
	amountPattern  = regexp.MustCompile(`\$\s*(\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,2})?|\b(\d{1,3}(?:,\d{3})+)(?:\.\d{1,2})?`)
	distanceSuffix = regexp.MustCompile(`(?i)^\s*(?:km|kms|kilometers?|kilometres?|miles?|mi)\b`)
	distanceLabel  = regexp.MustCompile(`(?i)\b(?:(?:mileage|odometer)\s*[:#]?|(?:kms?|kilometers?|kilometres?|miles)\s*:)\s*$`)
	attrAmount     = regexp.MustCompile(`\d{1,3}(?:,\d{3})+|\d+`)
	priceAttrName  = regexp.MustCompile(`(?i)price|msrp|cost|amount`)
	priceClassName = regexp.MustCompile(`(?i)price|cost|amount`)
)

type amountMatch struct {
	value      int
	start, end int
}

type keywordHit struct {
	start, end int
	tag        PriceTag
}

// scanAmounts finds currency-looking amounts in text, skipping distances
// written as "87,500 km" or, without a $, "Mileage: 87,500".
func scanAmounts(text string) []amountMatch {
	var out []amountMatch
	for _, m := range amountPattern.FindAllStringSubmatchIndex(text, -1) {
		if distanceSuffix.MatchString(text[m[1]:]) {
			continue
		}
		if m[2] < 0 && distanceLabel.MatchString(text[:m[0]]) {
			continue
		}
		var digits string
		if m[2] >= 0 {
			digits = text[m[2]:m[3]]
		} else {
			digits = text[m[4]:m[5]]
		}
		value, err := strconv.Atoi(strings.ReplaceAll(digits, ",", ""))
		if err != nil {
			continue
		}
		out = append(out, amountMatch{value: value, start: m[0], end: m[1]})
	}
	return out
}

// priceAmounts is scanAmounts without the amounts that follow an excluded
// keyword such as "You save".
func (t *Tables) priceAmounts(text string) []amountMatch {
	amounts := scanAmounts(text)
	if t.excludedWords == nil {
		return amounts
	}
	return slices.DeleteFunc(amounts, func(a amountMatch) bool {
		return t.excludedWords.MatchString(text[:a.start])
	})
}

func (t *Tables) keywordHits(text string) []keywordHit {
	var hits []keywordHit
	for _, kw := range []struct {
		re  *regexp.Regexp
		tag PriceTag
	}{{t.saleWords, TagSale}, {t.originalWords, TagOriginal}} {
		if kw.re == nil {
			continue
		}
		for _, loc := range kw.re.FindAllStringIndex(text, -1) {
			hits = append(hits, keywordHit{start: loc[0], end: loc[1], tag: kw.tag})
		}
	}
	slices.SortFunc(hits, func(a, b keywordHit) int { return a.start - b.start })
	return hits
}

// classifyAmounts tags every amount by the nearest keyword before it, bounded
// by the previous amount. Amounts with nothing before them look ahead up to
// the next amount instead.
func (t *Tables) classifyAmounts(text string, amounts []amountMatch) []PriceTag {
	hits := t.keywordHits(text)
	tags := make([]PriceTag, len(amounts))

	for i, a := range amounts {
		lo := max(a.start-keywordWindow, 0)
		if i > 0 {
			lo = max(lo, amounts[i-1].end)
		}
		for j := len(hits) - 1; j >= 0; j-- {
			if h := hits[j]; h.end <= a.start && h.start >= lo {
				tags[i] = h.tag
				break
			}
		}
		if tags[i] != TagUnknown {
			continue
		}

		hi := min(a.end+keywordWindow, len(text))
		if i+1 < len(amounts) {
			hi = min(hi, amounts[i+1].start)
		}
		for _, h := range hits {
			if h.start >= a.end && h.end <= hi {
				tags[i] = h.tag
				break
			}
		}
	}
	return tags
}

// CollectPriceEvidence gathers candidate prices from the element's
// attributes, embedded JSON-LD, price-like sub-elements and its text.
func (t *Tables) CollectPriceEvidence(sel *goquery.Selection) []PriceEvidence {
	var evidence []PriceEvidence
	add := func(value int, tag PriceTag, source string) {
		if t.InPriceRange(value) {
			evidence = append(evidence, PriceEvidence{Value: value, Tag: tag, Source: source})
		}
	}

	// Attributes of the element and its descendants
	sel.AddSelection(sel.Find("*")).Each(func(_ int, s *goquery.Selection) {
		for _, attr := range s.Nodes[0].Attr {
			if !priceAttrName.MatchString(attr.Key) {
				continue
			}
			m := attrAmount.FindString(attr.Val)
			if m == "" {
				continue
			}
			if value, err := strconv.Atoi(strings.ReplaceAll(m, ",", "")); err == nil {
				add(value, t.classifyName(attr.Key), "attr:"+attr.Key)
			}
		}
	})

	for _, value := range jsonLDPrices(sel) {
		add(value, TagUnknown, "json-ld")
	}

	for _, el := range priceElements(sel) {
		text := Text(el)
		amounts := t.priceAmounts(text)
		tags := t.classifyAmounts(text, amounts)
		for i, a := range amounts {
			tag := tags[i]
			if hasStrikethrough(el) {
				tag = TagOriginal
			}
			if tag == TagUnknown {
				class, _ := el.Attr("class")
				id, _ := el.Attr("id")
				tag = t.classifyName(class + " " + id)
			}
			if tag == TagUnknown {
				parentClass, _ := el.Parent().Attr("class")
				tag = t.classifyName(parentClass)
			}
			add(a.value, tag, "element")
		}
	}

	text := Text(sel)
	amounts := t.priceAmounts(text)
	tags := t.classifyAmounts(text, amounts)
	for i, a := range amounts {
		add(a.value, tags[i], "text")
	}

	return mergeEvidence(evidence)
}

// priceElements returns the innermost descendants whose class or id names a
// price, or that carry data-price.
func priceElements(sel *goquery.Selection) []*goquery.Selection {
	isPrice := func(_ int, s *goquery.Selection) bool {
		if _, ok := s.Attr("data-price"); ok {
			return true
		}
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		return priceClassName.MatchString(class) || priceClassName.MatchString(id)
	}

	var out []*goquery.Selection
	sel.Find("*").FilterFunction(isPrice).Each(func(_ int, s *goquery.Selection) {
		if s.Find("*").FilterFunction(isPrice).Length() == 0 {
			out = append(out, s)
		}
	})
	return out
}

func hasStrikethrough(s *goquery.Selection) bool {
	if style, ok := s.Attr("style"); ok && strings.Contains(strings.ToLower(style), "line-through") {
		return true
	}
	if goquery.NodeName(s) == "s" || goquery.NodeName(s) == "strike" || goquery.NodeName(s) == "del" {
		return true
	}
	return s.Find("s, strike, del").Length() > 0
}

// mergeEvidence keeps one entry per value. A classified tag replaces unknown;
// otherwise the first entry wins.
func mergeEvidence(evidence []PriceEvidence) []PriceEvidence {
	var merged []PriceEvidence
	index := make(map[int]int)
	for _, e := range evidence {
		i, seen := index[e.Value]
		if !seen {
			index[e.Value] = len(merged)
			merged = append(merged, e)
			continue
		}
		if merged[i].Tag == TagUnknown && e.Tag != TagUnknown {
			merged[i] = e
		}
	}
	return merged
}

// DecidePrices picks the regular and sale price from merged evidence
func DecidePrices(evidence []PriceEvidence) PriceDecision {
	var sale, original, unknown []int
	for _, e := range evidence {
		switch e.Tag {
		case TagSale:
			sale = append(sale, e.Value)
		case TagOriginal:
			original = append(original, e.Value)
		default:
			unknown = append(unknown, e.Value)
		}
	}

	var d PriceDecision
	switch {
	case len(sale) > 0 && len(original) > 0:
		d.Original = slices.Max(original)
		d.Sale = slices.Min(sale)
	case len(sale) > 0:
		d.Sale = slices.Min(sale)
		for _, u := range append(unknown, sale...) {
			if u > d.Sale && (d.Original == 0 || u < d.Original) {
				d.Original = u
			}
		}
	case len(original) > 0:
		d.Original = slices.Max(original)
		for _, u := range append(unknown, original...) {
			if u < d.Original && u > d.Sale {
				d.Sale = u
			}
		}
	case len(unknown) >= 2:
		sorted := slices.Clone(unknown)
		slices.Sort(sorted)
		d.Original = sorted[len(sorted)-1]
		d.Sale = sorted[len(sorted)-2]
	case len(unknown) == 1:
		d.Original = unknown[0]
	}

	if d.Sale > 0 && d.Original > 0 && d.Sale >= d.Original {
		d.Sale = 0
	}
	return d
}

// ClassifyPrices collects and decides the prices of a listing element
func (t *Tables) ClassifyPrices(sel *goquery.Selection) (PriceDecision, []PriceEvidence) {
	evidence := t.CollectPriceEvidence(sel)
	return DecidePrices(evidence), evidence
}
