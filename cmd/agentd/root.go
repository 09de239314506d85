package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/driftworks/agentd/internal/agent"
	"github.com/driftworks/agentd/internal/browser"
	"github.com/driftworks/agentd/internal/config"
	"github.com/driftworks/agentd/internal/controller"
	"github.com/driftworks/agentd/internal/delegate"
	"github.com/driftworks/agentd/internal/eventbus"
	"github.com/driftworks/agentd/internal/llm"
	"github.com/driftworks/agentd/internal/logging"
	"github.com/driftworks/agentd/internal/runtime"
	"github.com/driftworks/agentd/internal/state"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "agentd",
	Short: "agentd runs autonomous LLM agent sessions",
	Long: `agentd drives an LLM agent through a control loop: the agent plans,
runs shell commands and code cells, browses, and delegates subtasks,
while every event is recorded, streamed, and persisted per session.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		logging.SetLevelName(cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func openDB() (*sql.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return state.Open(cfg.DBPath)
}

// newController wires a session controller with all collaborators.
// The store and bus are shared with anything else observing the
// session, such as the live event feed.
func newController(store *state.Store, bus *eventbus.Bus, sessionID, agentName string, log *slog.Logger) (*controller.Controller, error) {
	client, err := llm.NewOpenAIClient(llm.Config{
		Model:         cfg.LLMModel,
		APIKey:        cfg.LLMAPIKey,
		BaseURL:       cfg.LLMBaseURL,
		ContextWindow: cfg.ContextWindow,
		MaxTokens:     cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}

	c, err := buildSession(client, store, bus, sessionID, agentName, log)
	if err != nil {
		return nil, err
	}
	c.Delegate = &delegate.Runner{
		Log: log,
		NewSession: func(id, name string) (*controller.Controller, error) {
			if name == "BrowsingAgent" {
				child := controller.New(id, name, &browser.Agent{Fetcher: browser.New()}, log)
				child.Store = store
				child.Bus = bus
				child.MaxIterations = cfg.MaxIterations
				return child, nil
			}
			return buildSession(client, store, bus, id, name, log)
		},
	}
	return c, nil
}

func buildSession(client llm.Completer, store *state.Store, bus *eventbus.Bus, sessionID, agentName string, log *slog.Logger) (*controller.Controller, error) {
	workdir := filepath.Join(cfg.WorkspaceDir, sessionID)
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	c := controller.New(sessionID, agentName, agent.New(agentName, client), log)
	c.Commands = runtime.NewSandbox(workdir)
	c.Cells = runtime.NewCellRunner(workdir)
	c.Store = store
	c.Bus = bus
	c.MaxIterations = cfg.MaxIterations
	c.MaxChars = cfg.MaxChars
	return c, nil
}
