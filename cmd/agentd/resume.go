package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/driftworks/agentd/internal/eventbus"
	"github.com/driftworks/agentd/internal/logging"
	"github.com/driftworks/agentd/internal/state"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Resume a persisted session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		store := state.NewStore(db)
		bus := eventbus.NewBus(db)

		log := logging.WithModule("controller")
		c, err := newController(store, bus, sessionID, cfg.Agent, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := c.Restore(ctx); err != nil {
			return err
		}
		return finish(cmd, c, c.Resume(ctx))
	},
}
