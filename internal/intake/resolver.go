// Package intake implements the slot-filling side of the conversation: it
// merges qualifier output into the preference record, decides whether the
// record is complete, and exposes which required fields remain missing.
package intake

import (
	"strings"

	"go.uber.org/zap"

	"github.com/bentacars/salesbot/internal/model"
)

// RetryReply is surfaced when the qualifier output cannot be interpreted.
// The prior record is left untouched so one bad extraction loses nothing.
const RetryReply = "Pasensya na po, pakiulit ng sagot?"

// Resolve merges one turn's extraction into the prior record and gates the
// transition to matching. The proposed reply is produced by the qualifier
// collaborator and passed through unchanged when the record is incomplete;
// wording is the collaborator's job, gating is ours.
func Resolve(prior model.PreferenceRecord, extracted *model.Extraction, proposed string) (model.PreferenceRecord, bool, string) {
	if extracted == nil {
		zap.L().Warn("intake: extraction missing or malformed, keeping prior record")
		return prior, false, RetryReply
	}

	updated := Merge(prior, *extracted)

	if !updated.Complete() {
		reply := proposed
		if reply == "" {
			reply = RetryReply
		}
		zap.L().Debug("intake: record incomplete",
			zap.Any("missing", MissingFields(updated)),
		)
		return updated, false, reply
	}

	return updated, true, proposed
}

// Merge overlays non-empty extracted values onto the prior record. Empty
// extraction fields never clear previously filled ones, so a user can answer
// several questions in one message without losing earlier answers.
func Merge(prior model.PreferenceRecord, ex model.Extraction) model.PreferenceRecord {
	out := prior

	if v := strings.TrimSpace(ex.ClientName); v != "" {
		out.ClientName = v
	}
	if v := strings.TrimSpace(ex.LocationCity); v != "" {
		out.LocationCity = v
	}
	if v := NormalizeLabel(ex.BodyType); v != "" {
		out.BodyType = v
	}
	if v := NormalizeLabel(ex.Transmission); v != "" {
		out.Transmission = v
	}
	if pt, ok := NormalizePayment(ex.PaymentType); ok {
		out.PaymentType = pt
	}
	if spec, ok := ParseBudget(ex.Budget); ok {
		out.Budget = &spec
	}

	return out
}

// NormalizeLabel lowercases and trims a free-form label like "Sedan " so
// comparisons downstream are exact, not fuzzy.
func NormalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePayment maps common phrasings onto the two payment types.
// Unrecognized text leaves the field unfilled rather than guessing.
func NormalizePayment(s string) (model.PaymentType, bool) {
	switch NormalizeLabel(s) {
	case "cash":
		return model.PaymentCash, true
	case "financing", "finance", "financed", "loan", "installment", "hulugan":
		return model.PaymentFinancing, true
	}
	return "", false
}

// MissingFields returns the still-unfilled required fields in canonical ask
// order. ClientName is optional and never reported.
func MissingFields(rec model.PreferenceRecord) []model.Field {
	var missing []model.Field
	for _, f := range model.RequiredFields {
		switch f {
		case model.FieldBodyType:
			if rec.BodyType == "" {
				missing = append(missing, f)
			}
		case model.FieldLocationCity:
			if rec.LocationCity == "" {
				missing = append(missing, f)
			}
		case model.FieldPaymentType:
			if rec.PaymentType == "" {
				missing = append(missing, f)
			}
		case model.FieldBudget:
			if rec.Budget == nil {
				missing = append(missing, f)
			}
		case model.FieldTransmission:
			if rec.Transmission == "" {
				missing = append(missing, f)
			}
		}
	}
	return missing
}

// NextField returns the single field the next question should target.
func NextField(rec model.PreferenceRecord) (model.Field, bool) {
	missing := MissingFields(rec)
	if len(missing) == 0 {
		return "", false
	}
	return missing[0], true
}
