package inventory

import "strings"

// DedupeKey returns the identity of a vehicle, using the most reliable
// fields available: stock number, then year/make/model with mileage, trim
// and price, then price alone, then everything.
func DedupeKey(v Vehicle) string {
	ymm := v.Year != "" && v.Make != "" && v.Model != ""
	switch {
	case v.StockNumber != "":
		return key("stock", v.StockNumber)
	case ymm && v.Mileage != "":
		return key("ymm_mileage", v.Year, v.Make, v.Model, v.Mileage)
	case ymm && v.Trim != "" && v.Price != "":
		return key("ymm_trim_price", v.Year, v.Make, v.Model, v.Trim, v.Price)
	case ymm && v.Price != "":
		return key("ymm_price", v.Year, v.Make, v.Model, v.Price)
	default:
		return key("all", v.Year, v.Make, v.Model, v.Trim, v.Mileage, v.Price)
	}
}

func key(parts ...string) string {
	return strings.Join(parts, "|")
}

// Dedupe keeps the first vehicle seen for every key, preserving order
func Dedupe(vehicles []Vehicle) []Vehicle {
	seen := make(map[string]bool, len(vehicles))
	unique := make([]Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		k := DedupeKey(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, v)
	}
	return unique
}
