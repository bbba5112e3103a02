package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bentacars/salesbot/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant on stdin/stdout",
	Long:  "Runs the same turn engine the webhook uses, against a local session. Type /quit to exit.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sess := &session.Session{SenderID: "local"}
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("salesbot chat — /quit to exit")
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if text == "/quit" || text == "/exit" {
				break
			}

			reply, err := env.Engine.HandleTurn(ctx, sess, text)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				continue
			}

			fmt.Println(reply.Text)
			for _, card := range reply.Cards {
				encoded, err := json.MarshalIndent(card, "", "  ")
				if err != nil {
					continue
				}
				fmt.Println(string(encoded))
			}
			if reply.Matched {
				// Same as Messenger: a finished funnel starts a new session.
				sess = &session.Session{SenderID: "local"}
				fmt.Println("--- new conversation ---")
			}
		}
		return scanner.Err()
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
