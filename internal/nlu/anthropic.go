package nlu

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/bentacars/salesbot/internal/model"
	"github.com/bentacars/salesbot/pkg/anthropic"
)

// qualifierSystem is the slot-collection prompt. The JSON shape is the
// contract DecodeExtraction validates against; keep them in sync.
const qualifierSystem = `You are the BentaCars Consultant — friendly, expert, and helpful. Keep replies short, Taglish, and natural.

GOAL — collect:
- body_type
- location_city
- payment_type (cash or financing)
- budget
- transmission
- (optional) client_name if the user gives it

RULES:
1) Ask ONLY for the next missing field (no checklist).
2) If the user gives multiple answers at once, parse and fill all you can.
3) If unclear, ask one polite follow-up.
4) When ALL required fields are filled, say you'll check the best 2 units.

ALWAYS return pure JSON in this exact shape (no extra keys, no surrounding text):
{
  "message": "<what to say to the user>",
  "client_name": "",
  "location_city": "",
  "body_type": "",
  "transmission": "",
  "budget": "",
  "payment_type": ""
}
(Leave "" for any field not yet collected.)`

// summarySystem constrains the closing message: short, no raw data, and it
// must introduce exactly as many vehicles as were matched.
const summarySystem = `You are the BentaCars Consultant wrapping up a search. Write ONE short, friendly Taglish message introducing exactly the vehicles listed — no more, no fewer. Do not include raw JSON, links, or price tables; the cards are sent separately. If zero vehicles are listed, apologize briefly and offer to look again with a different budget or body type. Return only the message text.`

// AnthropicExtractor implements Extractor on the Claude messages API.
type AnthropicExtractor struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicExtractor builds an extractor for the given model ID.
func NewAnthropicExtractor(client anthropic.Client, modelID string) *AnthropicExtractor {
	return &AnthropicExtractor{
		client:      client,
		model:       modelID,
		maxTokens:   1500,
		temperature: 0.3,
	}
}

// Qualify runs the qualifier agent over the full dialogue history.
// Transport errors surface as errors; unvalidatable output returns a nil
// extraction so the caller can fall back without losing record state.
func (e *AnthropicExtractor) Qualify(ctx context.Context, history []model.DialogueTurn) (*model.Extraction, error) {
	if len(history) == 0 {
		return nil, eris.New("nlu: empty dialogue history")
	}

	temp := e.temperature
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System: []anthropic.SystemBlock{
			{Text: qualifierSystem, CacheControl: &anthropic.CacheControl{TTL: "5m"}},
		},
		Messages:    toMessages(history),
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "nlu: qualify")
	}
	resp.Usage.LogCost(e.model, "qualifier")

	ex, ok := DecodeExtraction(resp.Text())
	if !ok {
		return nil, nil
	}
	return ex, nil
}

// Summarize asks the model for the closing prose over the ranked cards.
func (e *AnthropicExtractor) Summarize(ctx context.Context, prefs model.PreferenceRecord, cards []model.VehicleCard) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Buyer: %s buyer in %s looking for a %s %s, budget around %.0f.\n",
		prefs.PaymentType, prefs.LocationCity, prefs.Transmission, prefs.BodyType, prefs.Budget.Target)
	fmt.Fprintf(&b, "Matched vehicles (%d):\n", len(cards))
	for i, c := range cards {
		fmt.Fprintf(&b, "%d. %d %s %s %s, %d km, %s\n",
			i+1, c.Year, c.Brand, c.Model, c.Variant, c.Mileage, c.City)
	}

	temp := 0.2
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 300,
		System: []anthropic.SystemBlock{
			{Text: summarySystem},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: b.String()},
		},
		Temperature: &temp,
	})
	if err != nil {
		return "", eris.Wrap(err, "nlu: summarize")
	}
	resp.Usage.LogCost(e.model, "summary")

	return strings.TrimSpace(resp.Text()), nil
}

func toMessages(history []model.DialogueTurn) []anthropic.Message {
	out := make([]anthropic.Message, len(history))
	for i, turn := range history {
		role := "user"
		if turn.Role == model.RoleAssistant {
			role = "assistant"
		}
		out[i] = anthropic.Message{Role: role, Content: turn.Text}
	}
	return out
}
