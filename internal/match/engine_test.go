package match

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bentacars/salesbot/internal/model"
)

func cashPrefs(upper float64) model.PreferenceRecord {
	return model.PreferenceRecord{
		LocationCity: "QC",
		BodyType:     "sedan",
		PaymentType:  model.PaymentCash,
		Transmission: "automatic",
		Budget:       &model.BudgetSpec{Target: upper, UpperBound: upper},
	}
}

func sedan(sku string, srp float64) model.Vehicle {
	return model.Vehicle{
		SKU:          sku,
		BodyType:     "sedan",
		Transmission: "automatic",
		SRP:          srp,
		AllIn:        srp / 5,
	}
}

func TestMatchRejectsIncompleteRecord(t *testing.T) {
	t.Parallel()

	_, err := Match(model.PreferenceRecord{BodyType: "sedan"}, nil)
	require.Error(t, err)
}

func TestMatchEmptyCatalogYieldsZeroMatches(t *testing.T) {
	t.Parallel()

	res, err := Match(cashPrefs(500000), nil)
	require.NoError(t, err)
	assert.Empty(t, res.TopMatches)
}

func TestHardFiltersAreCaselessExactMatch(t *testing.T) {
	t.Parallel()

	catalog := []model.Vehicle{
		{SKU: "A", BodyType: "Sedan", Transmission: "Automatic", SRP: 400000},
		{SKU: "B", BodyType: "SEDAN", Transmission: "AUTOMATIC", SRP: 410000},
		{SKU: "C", BodyType: "suv", Transmission: "automatic", SRP: 400000},
		{SKU: "D", BodyType: "sedan", Transmission: "manual", SRP: 400000},
		{SKU: "E", BodyType: " sedan ", Transmission: "automatic ", SRP: 420000},
	}

	res, err := Match(cashPrefs(500000), catalog)
	require.NoError(t, err)

	skus := make([]string, 0, len(res.TopMatches))
	for _, m := range res.TopMatches {
		skus = append(skus, m.SKU)
	}
	// C and D fail a hard filter; A, B, E survive and the top two win.
	assert.NotContains(t, skus, "C")
	assert.NotContains(t, skus, "D")
	assert.Len(t, res.TopMatches, 2)
}

func TestToleranceBoundary(t *testing.T) {
	t.Parallel()

	catalog := []model.Vehicle{
		sedan("at-boundary", 550000),
		sedan("over-boundary", 550001),
	}

	res, err := Match(cashPrefs(500000), catalog)
	require.NoError(t, err)
	require.Len(t, res.TopMatches, 1)
	assert.Equal(t, "at-boundary", res.TopMatches[0].SKU)
}

func TestFinancingComparesAgainstAllIn(t *testing.T) {
	t.Parallel()

	prefs := cashPrefs(150000)
	prefs.PaymentType = model.PaymentFinancing

	catalog := []model.Vehicle{
		{SKU: "cheap-dp", BodyType: "sedan", Transmission: "automatic", SRP: 900000, AllIn: 140000},
		{SKU: "huge-dp", BodyType: "sedan", Transmission: "automatic", SRP: 300000, AllIn: 250000},
	}

	res, err := Match(prefs, catalog)
	require.NoError(t, err)
	require.Len(t, res.TopMatches, 1)
	assert.Equal(t, "cheap-dp", res.TopMatches[0].SKU)
}

func TestMissingPriceMeasureExcluded(t *testing.T) {
	t.Parallel()

	catalog := []model.Vehicle{
		{SKU: "no-srp", BodyType: "sedan", Transmission: "automatic", SRP: 0, AllIn: 100000},
		sedan("priced", 450000),
	}

	res, err := Match(cashPrefs(500000), catalog)
	require.NoError(t, err)
	require.Len(t, res.TopMatches, 1)
	assert.Equal(t, "priced", res.TopMatches[0].SKU)
}

func TestRankingOrder(t *testing.T) {
	t.Parallel()

	t.Run("closest to target wins", func(t *testing.T) {
		t.Parallel()
		catalog := []model.Vehicle{
			sedan("far", 390000),
			sedan("near", 490000),
		}
		res, err := Match(cashPrefs(500000), catalog)
		require.NoError(t, err)
		assert.Equal(t, "near", res.TopMatches[0].SKU)
	})

	t.Run("lower mileage breaks distance ties and beats year", func(t *testing.T) {
		t.Parallel()
		a := sedan("old-low-mileage", 450000)
		a.Mileage = 20000
		a.Year = 2017
		b := sedan("new-high-mileage", 450000)
		b.Mileage = 60000
		b.Year = 2022

		res, err := Match(cashPrefs(450000), []model.Vehicle{b, a})
		require.NoError(t, err)
		require.Len(t, res.TopMatches, 2)
		assert.Equal(t, "old-low-mileage", res.TopMatches[0].SKU)
	})

	t.Run("newer year breaks mileage ties", func(t *testing.T) {
		t.Parallel()
		a := sedan("older", 450000)
		a.Mileage = 30000
		a.Year = 2018
		b := sedan("newer", 450000)
		b.Mileage = 30000
		b.Year = 2021

		res, err := Match(cashPrefs(450000), []model.Vehicle{a, b})
		require.NoError(t, err)
		require.Len(t, res.TopMatches, 2)
		assert.Equal(t, "newer", res.TopMatches[0].SKU)
	})

	t.Run("residual ties keep catalog order", func(t *testing.T) {
		t.Parallel()
		a := sedan("first", 450000)
		b := sedan("second", 450000)

		res, err := Match(cashPrefs(450000), []model.Vehicle{a, b})
		require.NoError(t, err)
		require.Len(t, res.TopMatches, 2)
		assert.Equal(t, "first", res.TopMatches[0].SKU)
		assert.Equal(t, "second", res.TopMatches[1].SKU)
	})
}

func TestTruncationToTopTwo(t *testing.T) {
	t.Parallel()

	catalog := make([]model.Vehicle, 0, 5)
	for i := range 5 {
		catalog = append(catalog, sedan(fmt.Sprintf("v%d", i), 400000+float64(i)*20000))
	}

	res, err := Match(cashPrefs(500000), catalog)
	require.NoError(t, err)
	require.Len(t, res.TopMatches, 2)
	// Targets 500000: closest prices are 480000 (v4) then 460000 (v3).
	assert.Equal(t, "v4", res.TopMatches[0].SKU)
	assert.Equal(t, "v3", res.TopMatches[1].SKU)
}

func TestProjectFiveImageSlots(t *testing.T) {
	t.Parallel()

	v := sedan("imgs", 400000)
	v.Images = []string{"a", "b", "c", "d", "e", "f", "g"}
	card := Project(v)
	assert.Equal(t, "a", card.Image1)
	assert.Equal(t, "e", card.Image5)

	v.Images = []string{"only"}
	card = Project(v)
	assert.Equal(t, "only", card.Image1)
	assert.Equal(t, "", card.Image2)
	assert.Equal(t, "", card.Image5)
}

// The end-to-end ranking scenario: financing buyer, 400k-450k budget, three
// eligible sedans with all-in prices 430k, 500k, 470k. The 500k unit is
// within tolerance (450k+50k) but ranks last and is truncated away.
func TestFinancingScenarioRanking(t *testing.T) {
	t.Parallel()

	prefs := model.PreferenceRecord{
		LocationCity: "QC",
		BodyType:     "sedan",
		PaymentType:  model.PaymentFinancing,
		Transmission: "automatic",
		Budget:       &model.BudgetSpec{Target: 425000, UpperBound: 450000},
	}

	catalog := []model.Vehicle{
		{SKU: "a430", BodyType: "sedan", Transmission: "automatic", AllIn: 430000},
		{SKU: "a500", BodyType: "sedan", Transmission: "automatic", AllIn: 500000},
		{SKU: "a470", BodyType: "sedan", Transmission: "automatic", AllIn: 470000},
	}

	res, err := Match(prefs, catalog)
	require.NoError(t, err)
	require.Len(t, res.TopMatches, 2)
	assert.Equal(t, "a430", res.TopMatches[0].SKU)
	assert.Equal(t, "a470", res.TopMatches[1].SKU)
}
