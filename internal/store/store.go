// Package store persists the catalog snapshot and conversation logs behind
// a driver-agnostic interface with SQLite and Postgres backends.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/bentacars/salesbot/internal/model"
)

// Conversation is one logged Messenger conversation.
type Conversation struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines persistence for the sales assistant.
//
// ListVehicles returns rows in their original catalog order; the match
// engine's residual tie-break depends on it.
type Store interface {
	// Catalog snapshot
	ReplaceVehicles(ctx context.Context, vehicles []model.Vehicle) (int, error)
	UpsertVehicles(ctx context.Context, vehicles []model.Vehicle) (int, error)
	ListVehicles(ctx context.Context) ([]model.Vehicle, error)
	CountVehicles(ctx context.Context) (int, error)

	// Conversation log (audit trail; live session state stays in memory)
	CreateConversation(ctx context.Context, senderID string) (*Conversation, error)
	AppendTurn(ctx context.Context, conversationID string, turn model.DialogueTurn) error
	GetTurns(ctx context.Context, conversationID string) ([]model.DialogueTurn, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open builds a Store for the configured driver. The pool config only
// applies to the postgres driver and may be nil.
func Open(ctx context.Context, driver, dsn string, pool *PoolConfig) (Store, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, pool)
	}
	return nil, eris.Errorf("store: unknown driver %q", driver)
}
