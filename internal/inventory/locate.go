package inventory

import (
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// FindVehicles returns the valid vehicles on a page. Selectors are tried in
// priority order and the first one yielding a valid vehicle is used alone.
func (e *Extractor) FindVehicles(doc *goquery.Document) []Vehicle {
	for _, selector := range e.tables.Selectors {
		elements := doc.Find(selector)
		if elements.Length() == 0 {
			continue
		}

		e.log.Debug().
			Str("selector", selector).
			Int("elements", elements.Length()).
			Msg("Candidate elements found")

		vehicles := e.extractAll(elements)
		if len(vehicles) > 0 {
			e.log.Info().
				Str("selector", selector).
				Int("vehicles", len(vehicles)).
				Msg("Extracted vehicles")
			return vehicles
		}
	}

	e.log.Info().Msg("No vehicles found with listing selectors, trying fallback scan")
	return e.extractAll(e.fallbackCandidates(doc))
}

// extractAll extracts every element in document order and keeps valid records
func (e *Extractor) extractAll(elements *goquery.Selection) []Vehicle {
	var vehicles []Vehicle
	elements.Each(func(i int, s *goquery.Selection) {
		v := e.Extract(s, i)
		if !v.IsValid() {
			return
		}
		e.log.Debug().
			Str("year", v.Year).
			Str("make", v.Make).
			Str("model", v.Model).
			Str("value", v.Price).
			Str("sale_value", v.SalePrice).
			Msg("Extracted vehicle")
		vehicles = append(vehicles, v)
	})
	return vehicles
}

// fallbackCandidates finds the generic block elements whose text carries a
// year and a known make. Only the innermost such elements count; each is
// then widened to the largest enclosing block that holds no other listing.
func (e *Extractor) fallbackCandidates(doc *goquery.Document) *goquery.Selection {
	selector := strings.Join(e.tables.Fallback, ", ")
	candidates := doc.Find(selector)

	qualifying := make(map[*html.Node]bool)
	candidates.Each(func(_ int, s *goquery.Selection) {
		text := Text(s)
		if yearPattern.MatchString(text) && e.tables.HasKnownMake(text) {
			qualifying[s.Nodes[0]] = true
		}
	})

	var innermost []*html.Node
	candidates.Each(func(_ int, s *goquery.Selection) {
		n := s.Nodes[0]
		if !qualifying[n] {
			return
		}
		nested := false
		s.Find(selector).EachWithBreak(func(_ int, d *goquery.Selection) bool {
			nested = qualifying[d.Nodes[0]]
			return !nested
		})
		if !nested {
			innermost = append(innermost, n)
		}
	})

	// Count listings below every ancestor
	listings := make(map[*html.Node]int)
	for _, n := range innermost {
		for p := n.Parent; p != nil; p = p.Parent {
			listings[p]++
		}
	}

	var nodes []*html.Node
	for _, n := range innermost {
		widest := n
		for p := n.Parent; p != nil && p.Type == html.ElementNode && listings[p] == 1; p = p.Parent {
			if slices.Contains(e.tables.Fallback, p.Data) {
				widest = p
			}
		}
		nodes = append(nodes, widest)
	}

	return doc.FindNodes(nodes...)
}
