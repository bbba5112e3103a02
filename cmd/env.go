package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/bentacars/salesbot/internal/engine"
	"github.com/bentacars/salesbot/internal/nlu"
	"github.com/bentacars/salesbot/internal/session"
	"github.com/bentacars/salesbot/internal/store"
	anthropicpkg "github.com/bentacars/salesbot/pkg/anthropic"
)

// botEnv holds the initialized store, engine, and session manager shared by
// the serve and chat commands.
type botEnv struct {
	Store    store.Store
	Engine   *engine.Engine
	Sessions *session.Manager
}

// Close releases resources held by the environment.
func (e *botEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv sets up the store, the Anthropic-backed extractor, and the turn
// engine. Callers should defer env.Close().
func initEnv(ctx context.Context) (*botEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic key is required (BENTA_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	client := anthropicpkg.NewClient(cfg.Anthropic.Key)
	extractor := nlu.NewAnthropicExtractor(client, cfg.Anthropic.Model)

	return &botEnv{
		Store:    st,
		Engine:   engine.New(extractor, st),
		Sessions: session.NewManager(cfg.Session.TTL()),
	}, nil
}
