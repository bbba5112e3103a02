// Package messenger speaks the Facebook Messenger Platform: webhook
// verification, event payload decoding, and the Send API.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bentacars/salesbot/internal/model"
)

// graphAPIBase is the Graph API endpoint the Send API lives under.
const graphAPIBase = "https://graph.facebook.com/v17.0"

// WebhookEvent is the page-level payload Meta POSTs to the webhook.
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one page entry; Messaging usually carries a single event.
type Entry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging"`
}

// MessagingEvent is one inbound event: a text message or a postback.
type MessagingEvent struct {
	Sender    Participant `json:"sender"`
	Recipient Participant `json:"recipient"`
	Timestamp int64       `json:"timestamp"`
	Message   *Message    `json:"message,omitempty"`
	Postback  *Postback   `json:"postback,omitempty"`
}

// Participant identifies a page-scoped user or the page itself.
type Participant struct {
	ID string `json:"id"`
}

// Message is an inbound text message.
type Message struct {
	MID  string `json:"mid"`
	Text string `json:"text"`
}

// Postback is a button tap; the payload is treated as user text.
type Postback struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// Text returns the user-authored text of the event: the message text, or
// the postback payload for button taps. Empty means unsupported event.
func (e MessagingEvent) Text() string {
	if e.Message != nil {
		return e.Message.Text
	}
	if e.Postback != nil {
		return e.Postback.Payload
	}
	return ""
}

// MessageID returns the Messenger message ID used for de-duplication, or
// empty for postbacks.
func (e MessagingEvent) MessageID() string {
	if e.Message != nil {
		return e.Message.MID
	}
	return ""
}

// VerifyChallenge checks the hub.* query parameters of Meta's subscription
// handshake and returns the challenge to echo back, or an error when the
// token does not match.
func VerifyChallenge(query url.Values, verifyToken string) (string, error) {
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode != "subscribe" || token != verifyToken {
		return "", eris.Errorf("messenger: webhook verification failed (mode=%q)", mode)
	}
	return challenge, nil
}

// Sender delivers replies to a Messenger user.
type Sender interface {
	SendText(ctx context.Context, recipientID, text string) error
	SendCards(ctx context.Context, recipientID string, cards []model.VehicleCard) error
	SendTyping(ctx context.Context, recipientID string, on bool) error
}

// Client calls the Send API with a page access token.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	pageToken  string
	baseURL    string
	maxRetries int
}

// ClientOption tweaks Client construction.
type ClientOption func(*Client)

// WithBaseURL overrides the Graph API base; tests point it at httptest.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) { c.baseURL = base }
}

// NewClient builds a Send API client.
func NewClient(pageToken string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		// Messenger allows bursts but sustained sends should stay polite.
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		pageToken:  pageToken,
		baseURL:    graphAPIBase,
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sendRequest struct {
	Recipient     Participant     `json:"recipient"`
	Message       json.RawMessage `json:"message,omitempty"`
	SenderAction  string          `json:"sender_action,omitempty"`
	MessagingType string          `json:"messaging_type,omitempty"`
}

// SendText sends a plain text reply.
func (c *Client) SendText(ctx context.Context, recipientID, text string) error {
	msg, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return eris.Wrap(err, "messenger: marshal text")
	}
	return c.send(ctx, sendRequest{
		Recipient:     Participant{ID: recipientID},
		Message:       msg,
		MessagingType: "RESPONSE",
	})
}

// genericElement is one card in a generic template carousel.
type genericElement struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Buttons  []struct {
		Type  string `json:"type"`
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"buttons,omitempty"`
}

// SendCards sends vehicle cards as a generic template carousel.
func (c *Client) SendCards(ctx context.Context, recipientID string, cards []model.VehicleCard) error {
	if len(cards) == 0 {
		return nil
	}

	elements := make([]genericElement, 0, len(cards))
	for _, card := range cards {
		el := genericElement{
			Title:    fmt.Sprintf("%d %s %s %s", card.Year, card.Brand, card.Model, card.Variant),
			Subtitle: cardSubtitle(card),
			ImageURL: card.Image1,
		}
		if card.DriveLink != "" {
			el.Buttons = append(el.Buttons, struct {
				Type  string `json:"type"`
				URL   string `json:"url"`
				Title string `json:"title"`
			}{Type: "web_url", URL: card.DriveLink, Title: "More Photos"})
		}
		elements = append(elements, el)
	}

	msg, err := json.Marshal(map[string]any{
		"attachment": map[string]any{
			"type": "template",
			"payload": map[string]any{
				"template_type": "generic",
				"elements":      elements,
			},
		},
	})
	if err != nil {
		return eris.Wrap(err, "messenger: marshal cards")
	}
	return c.send(ctx, sendRequest{
		Recipient:     Participant{ID: recipientID},
		Message:       msg,
		MessagingType: "RESPONSE",
	})
}

func cardSubtitle(card model.VehicleCard) string {
	return fmt.Sprintf("%s · %s km · %s\nSRP ₱%s · All-in ₱%s",
		card.Transmission,
		formatThousands(card.Mileage),
		card.City,
		formatThousands(int(card.SRP)),
		formatThousands(int(card.AllIn)),
	)
}

func formatThousands(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, byte(r))
	}
	return string(out)
}

// SendTyping toggles the typing indicator while the model thinks.
func (c *Client) SendTyping(ctx context.Context, recipientID string, on bool) error {
	action := "typing_on"
	if !on {
		action = "typing_off"
	}
	return c.send(ctx, sendRequest{
		Recipient:    Participant{ID: recipientID},
		SenderAction: action,
	})
}

func (c *Client) send(ctx context.Context, payload sendRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "messenger: marshal send request")
	}

	endpoint := fmt.Sprintf("%s/me/messages?access_token=%s", c.baseURL, url.QueryEscape(c.pageToken))

	var lastErr error
	for attempt := range c.maxRetries {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "messenger: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "messenger: create request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			zap.L().Warn("messenger: send failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = eris.Errorf("messenger: send api status %d: %s", resp.StatusCode, respBody)
			zap.L().Warn("messenger: retryable status",
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return eris.Errorf("messenger: send api status %d: %s", resp.StatusCode, respBody)
		}
		return nil
	}
	return eris.Wrap(lastErr, "messenger: send retries exhausted")
}
