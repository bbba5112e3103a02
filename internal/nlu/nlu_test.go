package nlu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bentacars/salesbot/internal/model"
	"github.com/bentacars/salesbot/pkg/anthropic"
)

func TestDecodeExtraction(t *testing.T) {
	t.Parallel()

	t.Run("plain json", func(t *testing.T) {
		t.Parallel()
		ex, ok := DecodeExtraction(`{"message":"Saan po kayo?","client_name":"","location_city":"","body_type":"sedan","transmission":"","budget":"","payment_type":""}`)
		require.True(t, ok)
		assert.Equal(t, "sedan", ex.BodyType)
		assert.Equal(t, "Saan po kayo?", ex.Message)
	})

	t.Run("fenced json", func(t *testing.T) {
		t.Parallel()
		ex, ok := DecodeExtraction("```json\n{\"message\":\"ok\",\"budget\":\"500k\"}\n```")
		require.True(t, ok)
		assert.Equal(t, "500k", ex.Budget)
	})

	t.Run("json embedded in prose", func(t *testing.T) {
		t.Parallel()
		ex, ok := DecodeExtraction("Here you go: {\"message\":\"ok\"} hope that helps")
		require.True(t, ok)
		assert.Equal(t, "ok", ex.Message)
	})

	t.Run("unknown keys rejected", func(t *testing.T) {
		t.Parallel()
		_, ok := DecodeExtraction(`{"message":"ok","surprise":"field"}`)
		assert.False(t, ok)
	})

	t.Run("non-json rejected", func(t *testing.T) {
		t.Parallel()
		_, ok := DecodeExtraction("sorry, I can't do that")
		assert.False(t, ok)
	})
}

// fakeClient returns canned responses in order.
type fakeClient struct {
	responses []string
	requests  []anthropic.MessageRequest
	err       error
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	text := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}, nil
}

func TestQualifyDecodesResponse(t *testing.T) {
	t.Parallel()

	client := &fakeClient{responses: []string{
		`{"message":"Cash o financing po?","client_name":"","location_city":"QC","body_type":"","transmission":"","budget":"","payment_type":""}`,
	}}
	ex := NewAnthropicExtractor(client, "claude-haiku-4-5-20251001")

	got, err := ex.Qualify(context.Background(), []model.DialogueTurn{
		{Role: model.RoleUser, Text: "taga QC ako"},
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "QC", got.LocationCity)

	// Full history goes to the model, user role preserved.
	require.Len(t, client.requests, 1)
	require.Len(t, client.requests[0].Messages, 1)
	assert.Equal(t, "user", client.requests[0].Messages[0].Role)
}

func TestQualifyMalformedOutputReturnsNilExtraction(t *testing.T) {
	t.Parallel()

	client := &fakeClient{responses: []string{"not json at all"}}
	ex := NewAnthropicExtractor(client, "claude-haiku-4-5-20251001")

	got, err := ex.Qualify(context.Background(), []model.DialogueTurn{
		{Role: model.RoleUser, Text: "hello"},
	})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestQualifyEmptyHistoryErrors(t *testing.T) {
	t.Parallel()

	ex := NewAnthropicExtractor(&fakeClient{}, "m")
	_, err := ex.Qualify(context.Background(), nil)
	require.Error(t, err)
}

func TestSummarizeSendsRankedCards(t *testing.T) {
	t.Parallel()

	client := &fakeClient{responses: []string{"May dalawa akong nahanap para sa inyo!"}}
	ex := NewAnthropicExtractor(client, "claude-haiku-4-5-20251001")

	prefs := model.PreferenceRecord{
		LocationCity: "QC",
		BodyType:     "sedan",
		PaymentType:  model.PaymentFinancing,
		Transmission: "automatic",
		Budget:       &model.BudgetSpec{Target: 425000, UpperBound: 450000},
	}
	cards := []model.VehicleCard{
		{Year: 2020, Brand: "Toyota", Model: "Vios", City: "QC"},
		{Year: 2019, Brand: "Honda", Model: "City", City: "Makati"},
	}

	summary, err := ex.Summarize(context.Background(), prefs, cards)
	require.NoError(t, err)
	assert.Equal(t, "May dalawa akong nahanap para sa inyo!", summary)

	require.Len(t, client.requests, 1)
	prompt := client.requests[0].Messages[0].Content
	assert.Contains(t, prompt, "Matched vehicles (2)")
	assert.Contains(t, prompt, "Toyota Vios")
}
