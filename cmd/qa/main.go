// Command qa asks filing questions and manages conversations from the terminal.
//
// It uses the same configuration as the API server (environment and .env).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"filing_qa/pkg/app"
	"filing_qa/pkg/core/config"
	"filing_qa/pkg/core/filing"
	"filing_qa/pkg/core/logger"
	"filing_qa/pkg/core/qa"
	"filing_qa/pkg/core/store"

	"github.com/spf13/cobra"
)

var application *app.App

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if application != nil {
		application.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "qa",
	Short:         "Ask questions about SEC filings",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().Int64("user", 0, "user id the command acts for")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	askCmd.Flags().Int64("conversation", 0, "continue this conversation")
	askCmd.Flags().String("title", "", "use (or create) the conversation with this title")
	askCmd.Flags().String("source", "raw", "context source: raw, summaries or scoped")
	askCmd.Flags().Int64Slice("filing-id", nil, "filing ids for scoped questions")
	conversationsCmd.Flags().Int("limit", 20, "maximum conversations to list")
	schemaCmd.Flags().Bool("apply", false, "execute the schema against DATABASE_URL")

	rootCmd.AddCommand(askCmd, conversationsCmd, messagesCmd, renameCmd, deleteCmd, purgeCacheCmd, schemaCmd)
}

// loadApp builds the application once, on first use.
func loadApp(cmd *cobra.Command) (*app.App, error) {
	if application != nil {
		return application, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	level, _ := cmd.Flags().GetString("log-level")
	log := logger.New(logger.Config{Level: level, Pretty: true})

	a, err := app.New(cmd.Context(), cfg, log, app.Options{})
	if err != nil {
		return nil, err
	}
	application = a
	return a, nil
}

func userFlag(cmd *cobra.Command) (int64, error) {
	id, _ := cmd.Flags().GetInt64("user")
	if id <= 0 {
		return 0, fmt.Errorf("--user is required")
	}
	return id, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var askCmd = &cobra.Command{
	Use:   "ask \"[TICKER] question\"",
	Short: "Ask a question about a company's filings",
	Example: `  qa ask --user 1 "[AMZN] How did revenue grow in 2024?"
  qa ask --user 1 --source scoped --filing-id 12 --filing-id 15 "[AAPL] What are the key risks?"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := userFlag(cmd)
		if err != nil {
			return err
		}
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}

		source, _ := cmd.Flags().GetString("source")
		title, _ := cmd.Flags().GetString("title")
		ids, _ := cmd.Flags().GetInt64Slice("filing-id")
		req := qa.AskRequest{
			UserID:            userID,
			Question:          args[0],
			ConversationTitle: title,
			Source:            filing.ContextSource(source),
			FilingIDs:         ids,
		}
		if conv, _ := cmd.Flags().GetInt64("conversation"); conv > 0 {
			req.ConversationID = &conv
		}

		res, err := a.QA.Ask(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Println(res.Answer)
		fmt.Fprintf(os.Stderr, "\nconversation %d, question %d, cached=%t\n", res.ConversationID, res.QuestionID, res.IsCached)
		if res.DownloadTicket != "" {
			fmt.Fprintf(os.Stderr, "filing download requested (ticket %s)\n", res.DownloadTicket)
		}
		return nil
	},
}

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List recent conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := userFlag(cmd)
		if err != nil {
			return err
		}
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		list, err := a.QA.Conversations(cmd.Context(), userID, limit)
		if err != nil {
			return err
		}
		return printJSON(list)
	},
}

var messagesCmd = &cobra.Command{
	Use:   "messages <conversation-id>",
	Short: "Show a conversation thread, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, convID, err := userAndConversation(cmd, args[0])
		if err != nil {
			return err
		}
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		msgs, err := a.QA.Messages(cmd.Context(), convID, userID)
		if err != nil {
			return err
		}
		return printJSON(msgs)
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <conversation-id> <title>",
	Short: "Rename a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, convID, err := userAndConversation(cmd, args[0])
		if err != nil {
			return err
		}
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		return a.QA.Rename(cmd.Context(), convID, userID, args[1])
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a conversation and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, convID, err := userAndConversation(cmd, args[0])
		if err != nil {
			return err
		}
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		return a.QA.Delete(cmd.Context(), convID, userID)
	},
}

var purgeCacheCmd = &cobra.Command{
	Use:   "purge-cache",
	Short: "Delete expired cached answers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		n, err := a.PurgeCache(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("purged %d expired answers\n", n)
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print (or apply) the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		apply, _ := cmd.Flags().GetBool("apply")
		if !apply {
			fmt.Print(store.Schema)
			return nil
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		pool, err := store.Open(cmd.Context(), store.PoolConfig{URL: cfg.DatabaseURL})
		if err != nil {
			return err
		}
		defer pool.Close()
		if _, err := pool.Exec(cmd.Context(), store.Schema); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		fmt.Println("schema applied")
		return nil
	},
}

func userAndConversation(cmd *cobra.Command, raw string) (int64, int64, error) {
	userID, err := userFlag(cmd)
	if err != nil {
		return 0, 0, err
	}
	convID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || convID <= 0 {
		return 0, 0, fmt.Errorf("invalid conversation id %q", raw)
	}
	return userID, convID, nil
}
