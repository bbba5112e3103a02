// Package nlu is the boundary to the language-model collaborator: it turns
// dialogue history into a structured extraction plus a proposed reply, and
// ranked match results into a short summary. The decision logic in intake
// and match never talks to a model directly.
package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/bentacars/salesbot/internal/model"
)

// Extractor is the NLU/NLG collaborator contract.
//
// Qualify returns the structured extraction for the latest turn. A nil
// extraction with a nil error means the model replied with something that
// could not be validated; callers fall back to the intake retry path rather
// than guessing field values. Summarize writes the closing prose for a set
// of ranked matches.
type Extractor interface {
	Qualify(ctx context.Context, history []model.DialogueTurn) (*model.Extraction, error)
	Summarize(ctx context.Context, prefs model.PreferenceRecord, cards []model.VehicleCard) (string, error)
}

// DecodeExtraction validates raw model output against the exact qualifier
// shape. Fenced code blocks and surrounding prose are tolerated; unknown
// keys or non-JSON content are not.
func DecodeExtraction(raw string) (*model.Extraction, bool) {
	payload, ok := extractJSON(raw)
	if !ok {
		zap.L().Warn("nlu: qualifier output contains no JSON object")
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()

	var ex model.Extraction
	if err := dec.Decode(&ex); err != nil {
		zap.L().Warn("nlu: qualifier output failed strict decode", zap.Error(err))
		return nil, false
	}
	return &ex, true
}

// extractJSON slices the first balanced-looking JSON object out of model
// output, skipping markdown fences.
func extractJSON(raw string) ([]byte, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	return []byte(s[start : end+1]), true
}
