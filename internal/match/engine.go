// Package match ranks a catalog snapshot against a completed preference
// record: hard filters, a fixed budget tolerance, and a deterministic
// three-key ordering, truncated to the top two vehicles.
package match

import (
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/bentacars/salesbot/internal/model"
)

// BudgetTolerance is the fixed allowance above the budget upper bound, in
// the same currency unit as the catalog prices (pesos).
const BudgetTolerance = 50000

// TopN is the maximum number of vehicles returned.
const TopN = 2

// Match filters and ranks the catalog for a completed preference record.
// An incomplete record (or an unrecognized payment type) is a caller bug and
// is rejected outright; an empty catalog is not an error and yields zero
// matches. The returned Summary is left empty for the NLG collaborator to
// fill in.
func Match(prefs model.PreferenceRecord, catalog []model.Vehicle) (model.MatchResult, error) {
	if !prefs.Complete() {
		return model.MatchResult{}, eris.New("match: preference record incomplete")
	}
	if prefs.PaymentType != model.PaymentCash && prefs.PaymentType != model.PaymentFinancing {
		return model.MatchResult{}, eris.Errorf("match: unrecognized payment type %q", prefs.PaymentType)
	}

	wantBody := normalize(prefs.BodyType)
	wantTrans := normalize(prefs.Transmission)
	limit := prefs.Budget.UpperBound + BudgetTolerance

	type candidate struct {
		vehicle model.Vehicle
		price   float64
	}

	candidates := make([]candidate, 0, len(catalog))
	for _, v := range catalog {
		if normalize(v.BodyType) != wantBody || normalize(v.Transmission) != wantTrans {
			continue
		}

		price := v.SRP
		if prefs.PaymentType == model.PaymentFinancing {
			price = v.AllIn
		}
		// Rows missing the relevant price cannot be compared; drop them.
		if price <= 0 {
			continue
		}
		if price > limit {
			continue
		}

		candidates = append(candidates, candidate{vehicle: v, price: price})
	}

	target := prefs.Budget.Target
	sort.SliceStable(candidates, func(i, j int) bool {
		di := math.Abs(candidates[i].price - target)
		dj := math.Abs(candidates[j].price - target)
		if di != dj {
			return di < dj
		}
		if candidates[i].vehicle.Mileage != candidates[j].vehicle.Mileage {
			return candidates[i].vehicle.Mileage < candidates[j].vehicle.Mileage
		}
		return candidates[i].vehicle.Year > candidates[j].vehicle.Year
	})

	if len(candidates) > TopN {
		candidates = candidates[:TopN]
	}

	cards := make([]model.VehicleCard, 0, len(candidates))
	for _, c := range candidates {
		cards = append(cards, Project(c.vehicle))
	}

	zap.L().Debug("match: ranked catalog",
		zap.Int("catalog_size", len(catalog)),
		zap.Int("returned", len(cards)),
		zap.Float64("budget_target", target),
		zap.Float64("budget_limit", limit),
	)

	return model.MatchResult{TopMatches: cards}, nil
}

// Project flattens a vehicle into a presentation card with exactly five
// image slots. Missing slots are empty strings; source images beyond the
// fifth are dropped.
func Project(v model.Vehicle) model.VehicleCard {
	img := func(i int) string {
		if i < len(v.Images) {
			return v.Images[i]
		}
		return ""
	}

	return model.VehicleCard{
		SKU:          v.SKU,
		Year:         v.Year,
		Brand:        v.Brand,
		Model:        v.Model,
		Variant:      v.Variant,
		Transmission: v.Transmission,
		FuelType:     v.FuelType,
		BodyType:     v.BodyType,
		Color:        v.Color,
		Mileage:      v.Mileage,
		City:         v.City,
		SRP:          v.SRP,
		AllIn:        v.AllIn,
		Image1:       img(0),
		Image2:       img(1),
		Image3:       img(2),
		Image4:       img(3),
		Image5:       img(4),
		DriveLink:    v.DriveLink,
		VideoLink:    v.VideoLink,
	}
}

// normalize trims and case-folds a label for exact, caseless comparison.
func normalize(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
