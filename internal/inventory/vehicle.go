package inventory

import (
	"regexp"
	"strconv"
	"strings"
)

// Vehicle is a used-inventory listing extracted from a dealer page.
// Empty fields are unset.
type Vehicle struct {
	Make        string `json:"makeName"`
	Year        string `json:"year"`
	Model       string `json:"model"`
	SubModel    string `json:"sub-model"`
	Trim        string `json:"trim"`
	Mileage     string `json:"mileage"`
	Price       string `json:"value"`
	SalePrice   string `json:"sale_value"`
	StockNumber string `json:"stock_number"`
	Engine      string `json:"engine"`
}

// CSVHeader is the column order of the inventory CSV
var CSVHeader = []string{
	"makeName", "year", "model", "sub-model", "trim",
	"mileage", "value", "sale_value", "stock_number", "engine",
}

var validYear = regexp.MustCompile(`^(19[89]\d|20[0-2]\d)$`)

// Record returns the vehicle's fields in CSVHeader order
func (v Vehicle) Record() []string {
	return []string{
		v.Make, v.Year, v.Model, v.SubModel, v.Trim,
		v.Mileage, v.Price, v.SalePrice, v.StockNumber, v.Engine,
	}
}

// HasPrice reports whether a regular or sale price is set
func (v Vehicle) HasPrice() bool {
	return v.Price != "" || v.SalePrice != ""
}

// IsValid reports whether the record identifies a vehicle: a year and a
// make, plus a model or at least two of price, mileage and stock number.
func (v Vehicle) IsValid() bool {
	if !validYear.MatchString(v.Year) || strings.TrimSpace(v.Make) == "" {
		return false
	}
	if strings.TrimSpace(v.Model) != "" {
		return true
	}

	count := 0
	for _, ok := range []bool{v.HasPrice(), v.Mileage != "", v.StockNumber != ""} {
		if ok {
			count++
		}
	}
	return count >= 2
}

// vehicleBuilder fills a Vehicle field by field. A field keeps the first
// non-empty value it receives.
type vehicleBuilder struct {
	v Vehicle
}

func setOnce(field *string, value string) {
	value = strings.TrimSpace(value)
	if *field == "" && value != "" {
		*field = value
	}
}

func (b *vehicleBuilder) setYear(year string) {
	if validYear.MatchString(year) {
		setOnce(&b.v.Year, year)
	}
}

func (b *vehicleBuilder) setMake(name string)   { setOnce(&b.v.Make, name) }
func (b *vehicleBuilder) setModel(model string) { setOnce(&b.v.Model, model) }
func (b *vehicleBuilder) setEngine(e string)    { setOnce(&b.v.Engine, e) }
func (b *vehicleBuilder) setStock(s string)     { setOnce(&b.v.StockNumber, s) }

// setTrim also fills the sub-model, which mirrors the trim
func (b *vehicleBuilder) setTrim(trim string) {
	setOnce(&b.v.Trim, trim)
	setOnce(&b.v.SubModel, trim)
}

func (b *vehicleBuilder) setMileage(mileage string) {
	setOnce(&b.v.Mileage, digitsOnly(mileage))
}

func (b *vehicleBuilder) setPrice(price int) {
	if price > 0 {
		setOnce(&b.v.Price, strconv.Itoa(price))
	}
}

func (b *vehicleBuilder) setSalePrice(price int) {
	if price > 0 {
		setOnce(&b.v.SalePrice, strconv.Itoa(price))
	}
}

// build returns the record, clearing a sale price that is not below the
// regular price.
func (b *vehicleBuilder) build() Vehicle {
	v := b.v
	if v.Price != "" && v.SalePrice != "" {
		price, _ := strconv.Atoi(v.Price)
		sale, _ := strconv.Atoi(v.SalePrice)
		if sale >= price {
			v.SalePrice = ""
		}
	}
	return v
}

func digitsOnly(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
