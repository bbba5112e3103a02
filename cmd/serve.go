package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bentacars/salesbot/internal/messenger"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Messenger webhook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Messenger.VerifyToken == "" {
			return eris.New("messenger verify token is required (BENTA_MESSENGER_VERIFY_TOKEN)")
		}
		if cfg.Messenger.PageToken == "" {
			return eris.New("messenger page token is required (BENTA_MESSENGER_PAGE_TOKEN)")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		go env.Sessions.Janitor(ctx, time.Hour)

		sender := messenger.NewClient(cfg.Messenger.PageToken)
		router := newRouter(env, sender, cfg.Messenger.VerifyToken)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(env *botEnv, sender messenger.Sender, verifyToken string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Get("/webhook", func(w http.ResponseWriter, r *http.Request) {
		challenge, err := messenger.VerifyChallenge(r.URL.Query(), verifyToken)
		if err != nil {
			zap.L().Warn("webhook verification failed", zap.Error(err))
			w.WriteHeader(http.StatusForbidden)
			return
		}
		zap.L().Info("webhook verified")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
	})

	r.Post("/webhook", func(w http.ResponseWriter, r *http.Request) {
		var event messenger.WebhookEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if event.Object != "page" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		for _, entry := range event.Entry {
			for _, msg := range entry.Messaging {
				handleMessagingEvent(r.Context(), env, sender, msg)
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("EVENT_RECEIVED"))
	})

	return r
}

func handleMessagingEvent(ctx context.Context, env *botEnv, sender messenger.Sender, msg messenger.MessagingEvent) {
	senderID := msg.Sender.ID
	text := msg.Text()
	if senderID == "" || text == "" {
		zap.L().Debug("skipping unsupported event")
		return
	}
	sess, _ := env.Sessions.Get(senderID)
	if env.Sessions.Seen(senderID, msg.MessageID()) {
		zap.L().Debug("skipping redelivered message",
			zap.String("sender", senderID),
			zap.String("mid", msg.MessageID()))
		return
	}

	_ = sender.SendTyping(ctx, senderID, true)
	reply, err := env.Engine.HandleTurn(ctx, sess, text)
	_ = sender.SendTyping(ctx, senderID, false)
	if err != nil {
		zap.L().Error("turn failed",
			zap.String("sender", senderID),
			zap.Error(err))
		return
	}

	if err := sender.SendText(ctx, senderID, reply.Text); err != nil {
		zap.L().Error("send reply failed", zap.String("sender", senderID), zap.Error(err))
		return
	}
	if len(reply.Cards) > 0 {
		if err := sender.SendCards(ctx, senderID, reply.Cards); err != nil {
			zap.L().Error("send cards failed", zap.String("sender", senderID), zap.Error(err))
		}
	}
	if reply.Matched {
		// The funnel is done for this buyer; a fresh message starts over.
		env.Sessions.Drop(senderID)
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
