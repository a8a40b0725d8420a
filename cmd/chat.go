package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/leadflow/internal/config"
	"github.com/nextlevelbuilder/leadflow/internal/engine"
	"github.com/nextlevelbuilder/leadflow/internal/providers"
	"github.com/nextlevelbuilder/leadflow/internal/store"
	"github.com/nextlevelbuilder/leadflow/internal/store/memory"
	"github.com/nextlevelbuilder/leadflow/internal/topics"
)

func chatCmd() *cobra.Command {
	var pageID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive harness: talk to a page's bot from the terminal",
		Long:  "Runs the qualification pipeline against the live completion service with an in-memory session, printing the reply plus the stage, score and CRM decision for each turn. Nothing touches Redis or the CRM.",
		Run: func(cmd *cobra.Command, args []string) {
			runChat(pageID)
		},
	}
	cmd.Flags().StringVar(&pageID, "page", "", "page ID to impersonate (picker shown when omitted)")
	return cmd
}

func runChat(pageID string) {
	setupLogging()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Provider.APIKey == "" {
		slog.Error("no completion API key configured, set LEADFLOW_PROVIDER_API_KEY")
		os.Exit(1)
	}
	if len(cfg.Topics.Pages) == 0 {
		slog.Error("no pages mapped in topics config")
		os.Exit(1)
	}

	if pageID == "" {
		pageID, err = pickPage(cfg.Topics.Pages)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	resolver := topics.NewResolver(cfg.Topics.Dir, cfg.Topics.Pages)
	pack, err := resolver.Resolve(pageID)
	if err != nil {
		slog.Error("cannot load topic pack", "page", pageID, "error", err)
		os.Exit(1)
	}

	sessions := memory.New(cfg.Sessions.HistoryMax)
	eng := engine.New(sessions)
	provider := providers.NewOpenAI(cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Provider.Model,
		time.Duration(cfg.Provider.TimeoutSec)*time.Second)
	userID := "chat-" + uuid.NewString()[:8]

	fmt.Fprintf(os.Stderr, "\nLeadFlow Chat Harness\n")
	fmt.Fprintf(os.Stderr, "Page: %s (%s) | Model: %s\n", pack.Brand(), pageID, cfg.Provider.Model)
	fmt.Fprintf(os.Stderr, "Type \"exit\" to quit\n\n")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nGoodbye!")
			return
		default:
		}

		fmt.Fprint(os.Stderr, "You: ")
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Fprintln(os.Stderr, "Goodbye!")
			return
		}

		if err := chatTurn(ctx, sessions, eng, provider, pack, userID, input, cfg.Sessions.HistoryWindow); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}

func chatTurn(ctx context.Context, sessions store.SessionStore, eng *engine.Engine, provider providers.Provider, pack *topics.Pack, userID, input string, window int) error {
	sess, err := sessions.Get(ctx, userID)
	if err != nil {
		return err
	}
	history, err := sessions.History(ctx, userID, window)
	if err != nil {
		return err
	}

	msgs := make([]providers.Message, 0, len(history)+1)
	for _, h := range history {
		msgs = append(msgs, providers.Message{Role: h.Role, Content: h.Content})
	}
	msgs = append(msgs, providers.Message{Role: "user", Content: input})

	var sessionData string
	if len(sess.Data) > 0 {
		if b, err := json.Marshal(sess.Data); err == nil {
			sessionData = string(b)
		}
	}

	comp, err := provider.Generate(ctx, providers.Request{
		History:      msgs,
		SystemPrompt: pack.SystemPrompt,
		SessionData:  sessionData,
	})
	if err != nil {
		return err
	}

	out, err := eng.Process(ctx, userID, input, comp, pack)
	if err != nil {
		return err
	}

	if err := sessions.AppendHistory(ctx, userID,
		store.HistoryEntry{Role: "user", Content: input},
		store.HistoryEntry{Role: "model", Content: out.Reply},
	); err != nil {
		return err
	}

	fmt.Printf("Bot: %s\n", out.Reply)
	fmt.Fprintf(os.Stderr, "  [stage=%s score=%d action=%s", out.Stage, out.Lead.Score, out.Action)
	if out.Lead.Phone != "" {
		fmt.Fprintf(os.Stderr, " phone=%s", out.Lead.Phone)
	}
	if out.Lead.Email != "" {
		fmt.Fprintf(os.Stderr, " email=%s", out.Lead.Email)
	}
	fmt.Fprintln(os.Stderr, "]")
	return nil
}

func pickPage(pages map[string]string) (string, error) {
	ids := make([]string, 0, len(pages))
	for id := range pages {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	opts := make([]huh.Option[string], 0, len(ids))
	for _, id := range ids {
		opts = append(opts, huh.NewOption(fmt.Sprintf("%s (%s)", id, pages[id]), id))
	}

	var choice string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Which page do you want to chat as?").
			Options(opts...).
			Value(&choice),
	))
	if err := form.Run(); err != nil {
		return "", err
	}
	return choice, nil
}
