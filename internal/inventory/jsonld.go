package inventory

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// jsonLDObjects decodes every application/ld+json block inside sel and
// flattens top-level arrays and @graph lists into a list of objects.
func jsonLDObjects(sel *goquery.Selection) []map[string]any {
	var objects []map[string]any
	sel.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return
		}
		objects = append(objects, flattenJSONLD(data)...)
	})
	return objects
}

func flattenJSONLD(data any) []map[string]any {
	switch v := data.(type) {
	case map[string]any:
		out := []map[string]any{v}
		if graph, ok := v["@graph"]; ok {
			out = append(out, flattenJSONLD(graph)...)
		}
		return out
	case []any:
		var out []map[string]any
		for _, item := range v {
			out = append(out, flattenJSONLD(item)...)
		}
		return out
	}
	return nil
}

// jsonLDPrices returns the offer and direct prices of the JSON-LD objects
func jsonLDPrices(sel *goquery.Selection) []int {
	var prices []int
	for _, obj := range jsonLDObjects(sel) {
		for _, offer := range asObjects(obj["offers"]) {
			if p, ok := jsonNumber(offer["price"]); ok {
				prices = append(prices, p)
			}
		}
		if p, ok := jsonNumber(obj["price"]); ok {
			prices = append(prices, p)
		}
	}
	return prices
}

// jsonLDVehicle fills empty builder fields from Car or Vehicle objects
func (e *Extractor) jsonLDVehicle(b *vehicleBuilder, sel *goquery.Selection) {
	for _, obj := range jsonLDObjects(sel) {
		if !isVehicleType(obj["@type"]) {
			continue
		}

		for _, key := range []string{"vehicleModelDate", "modelDate", "productionDate"} {
			if s := jsonString(obj[key]); len(s) >= 4 {
				b.setYear(s[:4])
			}
		}
		b.setMake(e.canonicalMake(jsonName(obj["brand"])))
		b.setModel(jsonName(obj["model"]))
		b.setTrim(jsonString(obj["vehicleConfiguration"]))
		if odo, ok := obj["mileageFromOdometer"].(map[string]any); ok {
			b.setMileage(jsonString(odo["value"]))
		} else {
			b.setMileage(jsonString(obj["mileageFromOdometer"]))
		}
		b.setStock(jsonString(obj["sku"]))
		b.setEngine(jsonName(obj["vehicleEngine"]))
	}
}

func isVehicleType(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "Car" || v == "Vehicle"
	case []any:
		for _, item := range v {
			if isVehicleType(item) {
				return true
			}
		}
	}
	return false
}

func asObjects(v any) []map[string]any {
	switch o := v.(type) {
	case map[string]any:
		return []map[string]any{o}
	case []any:
		var out []map[string]any
		for _, item := range o {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// jsonName reads a plain string or the name of a nested object
func jsonName(v any) string {
	if m, ok := v.(map[string]any); ok {
		return jsonString(m["name"])
	}
	return jsonString(v)
}

func jsonString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

func jsonNumber(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(n), "$"), ",", ""), 64)
		if err != nil {
			return 0, false
		}
		return int(f), true
	}
	return 0, false
}
