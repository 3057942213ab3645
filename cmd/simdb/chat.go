package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"simdb/internal/chat"
	"simdb/internal/query"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the simulation database",
	Long: `Start an interactive chat session. The assistant answers questions
about imported simulations by calling the same query operations the CLI
exposes. Requires OPENAI_API_KEY in the environment.

Session commands:
  reset        start a fresh conversation
  quit, exit   leave the session`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	db, cfg := mustGetDB(logger)
	defer db.Close()

	client, err := chat.NewClient(cfg.OpenAI, logger)
	if err != nil {
		return err
	}

	session := chat.NewSession(client, query.NewService(db, logger), logger)
	fmt.Printf("simdb chat (model %s). Type 'quit' to leave, 'reset' to start over.\n", cfg.OpenAI.Model)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "reset":
			session.Reset()
			fmt.Println("Conversation reset.")
			continue
		}

		answer, err := session.Send(context.Background(), input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		fmt.Println(answer)
	}
}
