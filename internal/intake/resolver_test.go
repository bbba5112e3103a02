package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bentacars/salesbot/internal/model"
)

func TestMergeNeverClearsFilledFields(t *testing.T) {
	t.Parallel()

	prior := model.PreferenceRecord{
		ClientName:   "Ana",
		LocationCity: "Quezon City",
		BodyType:     "sedan",
		PaymentType:  model.PaymentFinancing,
		Transmission: "automatic",
		Budget:       &model.BudgetSpec{Target: 500000, UpperBound: 500000},
	}

	merged := Merge(prior, model.Extraction{})
	assert.Equal(t, prior, merged)
}

func TestMergeOverlaysNonEmptyValues(t *testing.T) {
	t.Parallel()

	prior := model.PreferenceRecord{BodyType: "sedan"}

	merged := Merge(prior, model.Extraction{
		LocationCity: "QC",
		PaymentType:  "Financing",
		Budget:       "500k",
	})

	assert.Equal(t, "sedan", merged.BodyType)
	assert.Equal(t, "QC", merged.LocationCity)
	assert.Equal(t, model.PaymentFinancing, merged.PaymentType)
	require.NotNil(t, merged.Budget)
	assert.Equal(t, 500000.0, merged.Budget.UpperBound)
}

func TestMergeNormalizesLabels(t *testing.T) {
	t.Parallel()

	merged := Merge(model.PreferenceRecord{}, model.Extraction{
		BodyType:     "  SUV ",
		Transmission: "Automatic",
	})

	assert.Equal(t, "suv", merged.BodyType)
	assert.Equal(t, "automatic", merged.Transmission)
}

func TestMergeUnparseableBudgetStaysUnfilled(t *testing.T) {
	t.Parallel()

	merged := Merge(model.PreferenceRecord{}, model.Extraction{Budget: "abc"})
	assert.Nil(t, merged.Budget)

	prior := model.PreferenceRecord{Budget: &model.BudgetSpec{Target: 300000, UpperBound: 300000}}
	merged = Merge(prior, model.Extraction{Budget: "abc"})
	require.NotNil(t, merged.Budget)
	assert.Equal(t, 300000.0, merged.Budget.Target)
}

func TestNormalizePayment(t *testing.T) {
	t.Parallel()

	pt, ok := NormalizePayment("Cash")
	require.True(t, ok)
	assert.Equal(t, model.PaymentCash, pt)

	pt, ok = NormalizePayment(" financing ")
	require.True(t, ok)
	assert.Equal(t, model.PaymentFinancing, pt)

	_, ok = NormalizePayment("barter")
	assert.False(t, ok)
}

func TestResolveMalformedExtractionKeepsPrior(t *testing.T) {
	t.Parallel()

	prior := model.PreferenceRecord{BodyType: "sedan", LocationCity: "QC"}

	updated, complete, reply := Resolve(prior, nil, "")
	assert.Equal(t, prior, updated)
	assert.False(t, complete)
	assert.Equal(t, RetryReply, reply)
}

func TestResolvePassesProposedReplyWhileIncomplete(t *testing.T) {
	t.Parallel()

	updated, complete, reply := Resolve(model.PreferenceRecord{},
		&model.Extraction{BodyType: "sedan"},
		"Saan po kayo nakatira?",
	)
	assert.False(t, complete)
	assert.Equal(t, "Saan po kayo nakatira?", reply)
	assert.Equal(t, "sedan", updated.BodyType)
}

func TestResolveCompletenessRequiresAllFiveFields(t *testing.T) {
	t.Parallel()

	full := model.PreferenceRecord{
		LocationCity: "QC",
		BodyType:     "sedan",
		PaymentType:  model.PaymentCash,
		Transmission: "automatic",
		Budget:       &model.BudgetSpec{Target: 500000, UpperBound: 500000},
	}
	assert.True(t, full.Complete())

	// Client name alone never flips completeness.
	partial := full
	partial.Budget = nil
	partial.ClientName = "Ana"
	assert.False(t, partial.Complete())

	_, complete, _ := Resolve(partial, &model.Extraction{Budget: "500k"}, "done")
	assert.True(t, complete)
}

func TestMissingFieldsCanonicalOrder(t *testing.T) {
	t.Parallel()

	missing := MissingFields(model.PreferenceRecord{})
	assert.Equal(t, []model.Field{
		model.FieldBodyType,
		model.FieldLocationCity,
		model.FieldPaymentType,
		model.FieldBudget,
		model.FieldTransmission,
	}, missing)

	next, ok := NextField(model.PreferenceRecord{BodyType: "sedan"})
	require.True(t, ok)
	assert.Equal(t, model.FieldLocationCity, next)

	_, ok = NextField(model.PreferenceRecord{
		LocationCity: "QC",
		BodyType:     "sedan",
		PaymentType:  model.PaymentCash,
		Transmission: "automatic",
		Budget:       &model.BudgetSpec{Target: 1, UpperBound: 1},
	})
	assert.False(t, ok)
}

// Feeds the five answers of a typical conversation one turn at a time and
// checks the record only completes on the final turn.
func TestResolveTurnByTurn(t *testing.T) {
	t.Parallel()

	turns := []model.Extraction{
		{BodyType: "sedan", Message: "Saan po kayo?"},
		{LocationCity: "QC", Message: "Cash o financing po?"},
		{PaymentType: "financing", Message: "Magkano po ang budget?"},
		{Budget: "400k-450k", Message: "Automatic o manual po?"},
		{Transmission: "automatic", Message: "Sige po, hahanapan ko kayo ng units!"},
	}

	rec := model.PreferenceRecord{}
	for i, ex := range turns {
		var complete bool
		rec, complete, _ = Resolve(rec, &ex, ex.Message)
		if i < len(turns)-1 {
			assert.False(t, complete, "turn %d", i+1)
		} else {
			assert.True(t, complete)
		}
	}

	require.NotNil(t, rec.Budget)
	assert.Equal(t, 425000.0, rec.Budget.Target)
	assert.Equal(t, 450000.0, rec.Budget.UpperBound)
	assert.Equal(t, model.PaymentFinancing, rec.PaymentType)
}
