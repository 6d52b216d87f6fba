package inventory

import (
	"os"
	"path/filepath"
	"testing"

	"sjsage522/inventoryscraper/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTables(t *testing.T) {
	tables := DefaultTables()

	require.NotEmpty(t, tables.Makes)
	assert.Equal(t, "Toyota", tables.Makes[0].Name)
	assert.Equal(t, "[data-vehicle-id]", tables.Selectors[0])
	assert.Equal(t, "li[class*=\"item\"]", tables.Selectors[len(tables.Selectors)-1])
	assert.Equal(t, []string{"div", "section", "article", "li"}, tables.Fallback)
	assert.Equal(t, 3000, tables.MinPrice)
	assert.Equal(t, 300000, tables.MaxPrice)

	require.NotNil(t, tables.excludedWords)
	assert.True(t, tables.excludedWords.MatchString("Internet Price $34,500 You Save: $"))
	assert.False(t, tables.excludedWords.MatchString("Savings on every model. Price $"))
}

func TestModelsSortedLongestFirst(t *testing.T) {
	var jeep Make
	for _, m := range DefaultTables().Makes {
		if m.Name == "Jeep" {
			jeep = m
		}
	}
	require.NotEmpty(t, jeep.Models)
	assert.Equal(t, "Grand Cherokee", jeep.Models[0].Name)

	for i := 1; i < len(jeep.Models); i++ {
		assert.GreaterOrEqual(t, len(jeep.Models[i-1].Name), len(jeep.Models[i].Name))
	}
}

func TestTrimNotFollowedBy(t *testing.T) {
	var sport TrimRule
	for _, r := range DefaultTables().Trims {
		if r.Name == "Sport" {
			sport = r
		}
	}
	require.Equal(t, "Sport", sport.Name)

	assert.Equal(t, -1, sport.MatchIndex("2019 Sport Utility Vehicle"))
	assert.Equal(t, 5, sport.MatchIndex("2019 sport AWD"))
	assert.Equal(t, 23, sport.MatchIndex("2019 Sport Utility and Sport"))
}

func TestParseTablesOverride(t *testing.T) {
	data := []byte(`{
		// single make, two models
		makes: [{name: 'Tesla', models: ['Model 3', 'Model Y']}],
		trims: [{name: 'Long Range', pattern: '\\bLong\\s+Range\\b'}],
		keywords: {sale: ['deal'], original: ['sticker']},
		selectors: ['.car'],
	}`)

	tables, err := ParseTables(data)
	require.NoError(t, err)
	assert.Equal(t, "Tesla", tables.Makes[0].Name)
	assert.Equal(t, []string{".car"}, tables.Selectors)
	assert.Equal(t, []string{"div", "section", "article", "li"}, tables.Fallback)
	assert.True(t, tables.InPriceRange(3000))
	assert.False(t, tables.InPriceRange(2999))

	e := NewExtractor(tables)
	mk, model := e.MakeModel("2021 Tesla Model 3 Long Range")
	assert.Equal(t, "Tesla", mk)
	assert.Equal(t, "Model 3", model)
	assert.Equal(t, "Long Range", e.Trim("2021 Tesla Model 3 Long Range", model))
}

func TestParseTablesErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json5", `{makes: [`},
		{"no makes", `{makes: [], selectors: ['.car']}`},
		{"no selectors", `{makes: [{name: 'Ford', models: []}]}`},
		{"bad trim pattern", `{makes: [{name: 'Ford', models: []}], selectors: ['.car'], trims: [{name: 'X', pattern: '('}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTables([]byte(tt.data))
			assert.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrorTypeConfiguration))
		})
	}
}

func TestLoadTables(t *testing.T) {
	tables, err := LoadTables("")
	require.NoError(t, err)
	assert.Same(t, DefaultTables(), tables)

	path := filepath.Join(t.TempDir(), "tables.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{makes: [{name: 'Ford', models: ['F-150']}], selectors: ['.car']}`), 0o644))

	tables, err = LoadTables(path)
	require.NoError(t, err)
	assert.Equal(t, "Ford", tables.Makes[0].Name)

	_, err = LoadTables(filepath.Join(t.TempDir(), "missing.json5"))
	assert.True(t, errors.Is(err, errors.ErrorTypeConfiguration))
}
