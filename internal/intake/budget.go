package intake

import (
	"strconv"
	"strings"

	"github.com/bentacars/salesbot/internal/model"
)

// ParseBudget converts free-text budget answers into a BudgetSpec.
// Accepted forms: "500000", "₱500,000", "500k", "400k-500k", "400000 to
// 500000". A single value sets Target == UpperBound; a range sets UpperBound
// to the larger number and Target to the midpoint. Anything else returns
// ok=false and the budget field stays unfilled.
func ParseBudget(text string) (model.BudgetSpec, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return model.BudgetSpec{}, false
	}

	// Unify range separators before splitting.
	s = strings.ReplaceAll(s, "–", "-")
	s = strings.ReplaceAll(s, "—", "-")
	s = strings.ReplaceAll(s, " to ", "-")

	parts := strings.Split(s, "-")
	if len(parts) > 2 {
		return model.BudgetSpec{}, false
	}

	values := make([]float64, 0, 2)
	for _, part := range parts {
		v, ok := parseAmount(part)
		if !ok {
			return model.BudgetSpec{}, false
		}
		values = append(values, v)
	}

	if len(values) == 1 {
		return model.BudgetSpec{Target: values[0], UpperBound: values[0]}, true
	}

	lo, hi := values[0], values[1]
	if lo > hi {
		lo, hi = hi, lo
	}
	return model.BudgetSpec{Target: (lo + hi) / 2, UpperBound: hi}, true
}

// parseAmount parses a single money token, stripping currency decoration and
// expanding a trailing "k" multiplier.
func parseAmount(s string) (float64, bool) {
	for _, junk := range []string{"₱", "php", "pesos", "peso", ",", " "} {
		s = strings.ReplaceAll(s, junk, "")
	}

	mult := 1.0
	if strings.HasSuffix(s, "k") {
		mult = 1000
		s = strings.TrimSuffix(s, "k")
	}

	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v * mult, true
}
