package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bentacars/salesbot/internal/engine"
	"github.com/bentacars/salesbot/internal/model"
	"github.com/bentacars/salesbot/internal/session"
	"github.com/bentacars/salesbot/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// stubExtractor always asks for the body type.
type stubExtractor struct{}

func (stubExtractor) Qualify(_ context.Context, _ []model.DialogueTurn) (*model.Extraction, error) {
	return &model.Extraction{Message: "Anong body type po ang hanap ninyo?"}, nil
}

func (stubExtractor) Summarize(_ context.Context, _ model.PreferenceRecord, _ []model.VehicleCard) (string, error) {
	return "summary", nil
}

// stubStore is an empty store; conversation logging is exercised elsewhere.
type stubStore struct{ store.Store }

func (stubStore) ListVehicles(_ context.Context) ([]model.Vehicle, error) { return nil, nil }
func (stubStore) CreateConversation(_ context.Context, senderID string) (*store.Conversation, error) {
	return &store.Conversation{ID: "conv-1", SenderID: senderID}, nil
}
func (stubStore) AppendTurn(_ context.Context, _ string, _ model.DialogueTurn) error { return nil }

// recordingSender captures outbound sends.
type recordingSender struct {
	texts  []string
	cards  int
	typing int
}

func (s *recordingSender) SendText(_ context.Context, _ string, text string) error {
	s.texts = append(s.texts, text)
	return nil
}

func (s *recordingSender) SendCards(_ context.Context, _ string, cards []model.VehicleCard) error {
	s.cards += len(cards)
	return nil
}

func (s *recordingSender) SendTyping(_ context.Context, _ string, _ bool) error {
	s.typing++
	return nil
}

func testEnv() *botEnv {
	return &botEnv{
		Engine:   engine.New(stubExtractor{}, stubStore{}),
		Sessions: session.NewManager(0),
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	router := newRouter(testEnv(), &recordingSender{}, "secret")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestWebhookVerification(t *testing.T) {
	t.Parallel()
	router := newRouter(testEnv(), &recordingSender{}, "secret")

	t.Run("valid token echoes challenge", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/webhook?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=4242", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "4242", rec.Body.String())
	})

	t.Run("invalid token forbidden", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=4242", nil))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestWebhookMessageEvent(t *testing.T) {
	t.Parallel()
	env := testEnv()
	sender := &recordingSender{}
	router := newRouter(env, sender, "secret")

	payload := `{
		"object": "page",
		"entry": [{
			"id": "page-1",
			"messaging": [{
				"sender": {"id": "psid-1"},
				"message": {"mid": "mid.1", "text": "sedan po"}
			}]
		}]
	}`

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "EVENT_RECEIVED", rec.Body.String())
	require.Len(t, sender.texts, 1)
	assert.Equal(t, "Anong body type po ang hanap ninyo?", sender.texts[0])
	assert.Equal(t, 2, sender.typing) // on, then off
	assert.Equal(t, 1, env.Sessions.Len())
}

func TestWebhookRedeliveredMessageSkipped(t *testing.T) {
	t.Parallel()
	env := testEnv()
	sender := &recordingSender{}
	router := newRouter(env, sender, "secret")

	payload := `{
		"object": "page",
		"entry": [{
			"messaging": [{
				"sender": {"id": "psid-1"},
				"message": {"mid": "mid.1", "text": "sedan po"}
			}]
		}]
	}`

	for range 2 {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload)))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Len(t, sender.texts, 1)
}

func TestWebhookNonPageObject(t *testing.T) {
	t.Parallel()
	router := newRouter(testEnv(), &recordingSender{}, "secret")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(`{"object":"user","entry":[]}`)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookBadBody(t *testing.T) {
	t.Parallel()
	router := newRouter(testEnv(), &recordingSender{}, "secret")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
