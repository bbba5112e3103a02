// Package engine orchestrates one conversation turn: qualify the latest
// message, merge it into the buyer's record, and once the record is complete
// run the match and summarize the results. The serve and chat commands both
// drive it; it holds no state of its own.
package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bentacars/salesbot/internal/intake"
	"github.com/bentacars/salesbot/internal/match"
	"github.com/bentacars/salesbot/internal/model"
	"github.com/bentacars/salesbot/internal/nlu"
	"github.com/bentacars/salesbot/internal/session"
	"github.com/bentacars/salesbot/internal/store"
)

// noMatchReply is the fallback for a zero-match turn when the summary
// collaborator is unavailable.
const noMatchReply = "Pasensya na po, wala po kaming exact match sa ngayon. " +
	"Pwede po nating luwagan ang budget o ibang body type para may maipakita ako."

// Reply is the outbound side of one turn.
type Reply struct {
	Text  string
	Cards []model.VehicleCard
	// Matched reports that this turn crossed into matching.
	Matched bool
}

// Engine wires the per-turn pipeline together.
type Engine struct {
	extractor nlu.Extractor
	store     store.Store
}

// New builds an Engine.
func New(extractor nlu.Extractor, st store.Store) *Engine {
	return &Engine{extractor: extractor, store: st}
}

// HandleTurn processes one inbound user message against the sender's session
// and returns the reply. The session is mutated in place: history grows by
// the user and assistant turns and the record accumulates extracted fields.
// The session lock is held for the whole turn so concurrent deliveries for
// one sender run one at a time, each seeing the previous turn's output.
func (e *Engine) HandleTurn(ctx context.Context, sess *session.Session, text string) (Reply, error) {
	sess.Lock()
	defer sess.Unlock()

	sess.AppendTurn(model.RoleUser, text)
	e.logTurn(ctx, sess, model.RoleUser, text)

	extraction, err := e.extractor.Qualify(ctx, sess.History)
	if err != nil {
		return Reply{}, eris.Wrap(err, "engine: qualify")
	}

	var proposed string
	if extraction != nil {
		proposed = extraction.Message
	}

	record, complete, reply := intake.Resolve(sess.Record, extraction, proposed)
	sess.Record = record

	if !complete {
		sess.AppendTurn(model.RoleAssistant, reply)
		e.logTurn(ctx, sess, model.RoleAssistant, reply)
		return Reply{Text: reply}, nil
	}

	out, err := e.runMatch(ctx, sess)
	if err != nil {
		return Reply{}, err
	}
	sess.AppendTurn(model.RoleAssistant, out.Text)
	e.logTurn(ctx, sess, model.RoleAssistant, out.Text)
	return out, nil
}

func (e *Engine) runMatch(ctx context.Context, sess *session.Session) (Reply, error) {
	catalog, err := e.store.ListVehicles(ctx)
	if err != nil {
		return Reply{}, eris.Wrap(err, "engine: load catalog")
	}

	result, err := match.Match(sess.Record, catalog)
	if err != nil {
		return Reply{}, eris.Wrap(err, "engine: match")
	}

	zap.L().Info("engine: matched",
		zap.String("sender", sess.SenderID),
		zap.Int("catalog", len(catalog)),
		zap.Int("matches", len(result.TopMatches)),
	)

	// The collaborator writes the closing prose for whatever count came
	// back, zero included; its prompt apologizes and offers to widen the
	// search when the list is empty.
	summary, err := e.extractor.Summarize(ctx, sess.Record, result.TopMatches)
	if err != nil {
		// Any ranked cards are still worth sending; only the prose failed.
		zap.L().Warn("engine: summarize failed, using fallback", zap.Error(err))
		summary = "Eto po ang pinaka-swak sa hinahanap ninyo:"
		if len(result.TopMatches) == 0 {
			summary = noMatchReply
		}
	}

	return Reply{Text: summary, Cards: result.TopMatches, Matched: true}, nil
}

// logTurn appends the turn to the store's conversation log, creating the
// conversation on first write. Log failures never block the reply.
func (e *Engine) logTurn(ctx context.Context, sess *session.Session, role model.DialogueRole, text string) {
	if sess.ConversationID == "" {
		conv, err := e.store.CreateConversation(ctx, sess.SenderID)
		if err != nil {
			zap.L().Warn("engine: create conversation failed", zap.Error(err))
			return
		}
		sess.ConversationID = conv.ID
	}
	if err := e.store.AppendTurn(ctx, sess.ConversationID, model.DialogueTurn{Role: role, Text: text}); err != nil {
		zap.L().Warn("engine: append turn failed",
			zap.String("conversation", sess.ConversationID),
			zap.Error(err))
	}
}
