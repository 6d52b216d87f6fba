package main

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"sjsage522/inventoryscraper/services/export"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two listing pages of a dealer site; the second repeats a vehicle from the first
var dealerPages = map[string]string{
	"1": `<!DOCTYPE html>
<html>
<head><title>Used Inventory</title></head>
<body>
    <div class="srp-results">
        <div class="vehicle-card" data-vehicle-id="101">
            <h2 class="vehicle-title">2022 Toyota RAV4 XLE</h2>
            <div class="pricing">
                <span class="price-original"><s>$38,000</s></span>
                <span class="price-sale">Internet Price $34,500</span>
            </div>
            <ul class="vehicle-details">
                <li>Stock# RD1234</li>
                <li>87,500 km</li>
                <li>2.5L I4</li>
            </ul>
        </div>
        <div class="vehicle-card" data-vehicle-id="102">
            <h2 class="vehicle-title">2019 Honda Civic LX</h2>
            <div class="pricing"><span class="price">$18,900</span></div>
            <ul class="vehicle-details"><li>Stock# HC5511</li><li>64,000 km</li></ul>
        </div>
    </div>
</body>
</html>`,
	"2": `<!DOCTYPE html>
<html>
<body>
    <div class="srp-results">
        <div class="vehicle-card" data-vehicle-id="101">
            <h2 class="vehicle-title">2022 Toyota RAV4 XLE</h2>
            <div class="pricing"><span class="price">$36,000</span></div>
            <ul class="vehicle-details"><li>Stock# RD1234</li><li>87,500 km</li></ul>
        </div>
        <div class="vehicle-card" data-vehicle-id="103">
            <h2 class="vehicle-title">2021 Ford F-150 XLT</h2>
            <div class="pricing"><span class="price">$41,000</span></div>
            <ul class="vehicle-details"><li>Stock# F15001</li><li>41,000 km</li></ul>
        </div>
    </div>
</body>
</html>`,
}

func newDealerServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inventory/used" {
			http.NotFound(w, r)
			return
		}
		body, ok := pages[r.URL.Query().Get("page")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// isolateEnv clears the optional sinks so the test only touches temp files
func isolateEnv(t *testing.T) {
	t.Setenv("MEMCACHE_ADDR", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("SQLITE_PATH", "")
	t.Setenv("TABLES_PATH", "")
	t.Setenv("PAGE_DELAY_MS", "0")
	t.Setenv("FETCH_ATTEMPTS", "1")
	t.Setenv("DEBUG_HTML_PATH", "")
}

func TestIntegration(t *testing.T) {
	isolateEnv(t)
	srv := newDealerServer(t, dealerPages)

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "public", "data", "inventory.csv")
	debugPath := filepath.Join(dir, "debug_page1.html")
	dbPath := filepath.Join(dir, "inventory.db")
	t.Setenv("SQLITE_PATH", dbPath)

	cmd := newRootCmd()
	cmd.SetArgs([]string{
		"scrape",
		"--url", srv.URL + "/inventory/used/",
		"--output", csvPath,
		"--pages", "5",
		"--debug-html", debugPath,
	})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4, "header plus three unique vehicles")

	assert.Equal(t, []string{"Toyota", "2022", "RAV4", "XLE", "XLE", "87500", "38000", "34500", "RD1234", "2.5L I4"}, rows[1])
	assert.Equal(t, "HC5511", rows[2][8])
	assert.Equal(t, "18900", rows[2][6])
	assert.Equal(t, "F15001", rows[3][8])

	debug, err := os.ReadFile(debugPath)
	require.NoError(t, err)
	assert.Equal(t, dealerPages["1"], string(debug))

	store, err := export.OpenStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	saved, _, err := store.Latest(context.Background())
	require.NoError(t, err)
	assert.Len(t, saved, 3)
}

func TestIntegrationNoVehicles(t *testing.T) {
	isolateEnv(t)
	srv := newDealerServer(t, map[string]string{
		"1": `<html><body><p>No vehicles found. Check back soon for 2024 arrivals.</p></body></html>`,
	})

	csvPath := filepath.Join(t.TempDir(), "inventory.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("stale"), 0o644))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--url", srv.URL + "/inventory/used", "--output", csvPath})
	err := cmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, errNoVehicles)

	_, err = os.Stat(csvPath)
	assert.True(t, os.IsNotExist(err), "stale CSV is removed")
}

func TestIntegrationInvalidURL(t *testing.T) {
	isolateEnv(t)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"scrape", "--url", "not a url", "--output", filepath.Join(t.TempDir(), "x.csv")})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestReportTitle(t *testing.T) {
	assert.Equal(t, "REDDEERTOYOTA.COM USED INVENTORY", reportTitle("https://www.reddeertoyota.com/inventory/used/"))
	assert.Equal(t, "USED INVENTORY", reportTitle("::"))
}
