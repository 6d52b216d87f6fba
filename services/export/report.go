package export

import (
	"fmt"
	"io"
	"sort"

	"sjsage522/inventoryscraper/internal/inventory"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// newTable returns a rounded table writer mirrored to out
func newTable(out io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	t.SetTitle(title)
	return t
}

// BrandCounts returns the number of vehicles per make
func BrandCounts(vehicles []inventory.Vehicle) map[string]int {
	counts := make(map[string]int)
	for _, v := range vehicles {
		brand := v.Make
		if brand == "" {
			brand = "Unknown"
		}
		counts[brand]++
	}
	return counts
}

// PrintReport renders the brand distribution, sale-price coverage and the
// vehicle listing of a scrape run.
func PrintReport(out io.Writer, title string, res *inventory.Result) {
	if len(res.Vehicles) == 0 {
		fmt.Fprintf(out, "%s\nNo vehicles found\n", title)
		return
	}

	counts := BrandCounts(res.Vehicles)
	brands := make([]string, 0, len(counts))
	for b := range counts {
		brands = append(brands, b)
	}
	sort.Strings(brands)

	bt := newTable(out, fmt.Sprintf("%s: %d vehicles", title, len(res.Vehicles)))
	bt.AppendHeader(table.Row{"Brand", "Count"})
	for _, b := range brands {
		bt.AppendRow(table.Row{b, counts[b]})
	}
	sale := res.SaleCount()
	bt.AppendFooter(table.Row{"With sale price", fmt.Sprintf("%d (%.1f%%)", sale, 100*float64(sale)/float64(len(res.Vehicles)))})
	bt.Render()

	lt := newTable(out, "Listing")
	lt.AppendHeader(table.Row{"Make", "Year", "Model", "Trim", "Value", "Sale Price", "Stock#"})
	for _, v := range res.Vehicles {
		lt.AppendRow(table.Row{v.Make, v.Year, v.Model, v.Trim, v.Price, v.SalePrice, v.StockNumber})
	}
	lt.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Model", WidthMax: 14},
		{Name: "Trim", WidthMax: 12},
		{Name: "Value", Align: text.AlignRight},
		{Name: "Sale Price", Align: text.AlignRight},
	})
	lt.Render()
}
