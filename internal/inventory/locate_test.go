package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindVehiclesFirstSelectorWins(t *testing.T) {
	body := `<html><body>
		<div class="vehicle-card" data-vehicle-id="1">
			<h3>2022 Toyota RAV4 XLE</h3>
			<span class="price">$34,500</span>
			<div class="vehicle-details">Stock# RD1234 87,500 km</div>
		</div>
		<div class="vehicle-card" data-vehicle-id="2">
			<h3>2019 Honda Civic LX</h3>
			<span class="price">$18,900</span>
			<div class="vehicle-details">Stock# HC5511 64,000 km</div>
		</div>
		<div class="vehicle-card">
			<h3>Trade-in appraisal</h3>
		</div>
	</body></html>`

	doc, err := ParseHTML([]byte(body))
	require.NoError(t, err)

	vehicles := NewExtractor(nil).FindVehicles(doc)
	require.Len(t, vehicles, 2)
	assert.Equal(t, "RD1234", vehicles[0].StockNumber)
	assert.Equal(t, "RAV4", vehicles[0].Model)
	assert.Equal(t, "34500", vehicles[0].Price)
	assert.Equal(t, "HC5511", vehicles[1].StockNumber)
	assert.Equal(t, "Civic", vehicles[1].Model)
}

func TestFindVehiclesSkipsSelectorWithoutValidVehicles(t *testing.T) {
	body := `<html><body>
		<div class="vehicle-card">Value your trade today</div>
		<ul>
			<li class="inventory-item">2021 Ford F-150 XLT $41,000 Stock# F15001</li>
			<li class="inventory-item">2020 Kia Sorento EX $28,500 Stock# K20002</li>
		</ul>
	</body></html>`

	doc, err := ParseHTML([]byte(body))
	require.NoError(t, err)

	vehicles := NewExtractor(nil).FindVehicles(doc)
	require.Len(t, vehicles, 2)
	assert.Equal(t, "Ford", vehicles[0].Make)
	assert.Equal(t, "F-150", vehicles[0].Model)
	assert.Equal(t, "XLT", vehicles[0].Trim)
	assert.Equal(t, "Kia", vehicles[1].Make)
	assert.Equal(t, "Sorento", vehicles[1].Model)
}

func TestFindVehiclesFallback(t *testing.T) {
	body := `<html><body>
		<section id="results">
			<div class="tile">
				<div class="tile-title">2023 Jeep Grand Cherokee Limited</div>
				<div class="tile-body">Was $62,000 Now $57,800 Stock# JG7781 12,300 km</div>
			</div>
			<div class="tile">
				<div class="tile-title">2018 Nissan Rogue SV</div>
				<div class="tile-body">$19,995 Stock# NR1804 98,000 km</div>
			</div>
		</section>
	</body></html>`

	doc, err := ParseHTML([]byte(body))
	require.NoError(t, err)

	vehicles := NewExtractor(nil).FindVehicles(doc)
	require.Len(t, vehicles, 2)

	assert.Equal(t, Vehicle{
		Make: "Jeep", Year: "2023", Model: "Grand Cherokee", SubModel: "Limited", Trim: "Limited",
		Mileage: "12300", Price: "62000", SalePrice: "57800", StockNumber: "JG7781",
	}, vehicles[0])
	assert.Equal(t, "Rogue", vehicles[1].Model)
	assert.Equal(t, "SV", vehicles[1].Trim)
	assert.Equal(t, "19995", vehicles[1].Price)
}

func TestFindVehiclesNoListings(t *testing.T) {
	doc, err := ParseHTML([]byte(`<html><body><div>No vehicles found</div></body></html>`))
	require.NoError(t, err)

	assert.Empty(t, NewExtractor(nil).FindVehicles(doc))
}
