package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/driftworks/agentd/internal/controller"
	"github.com/driftworks/agentd/internal/eventbus"
	"github.com/driftworks/agentd/internal/idgen"
	"github.com/driftworks/agentd/internal/logging"
	"github.com/driftworks/agentd/internal/state"
	"github.com/driftworks/agentd/internal/stream"
)

var (
	runTask      string
	runTaskFile  string
	runSessionID string
	runAgent     string
	runMaxIter   int
	runMaxChars  int64
	runServeAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an agent session on a task",
	Long: `Run starts a fresh session. The task comes from --task, --file, or
standard input, in that order of preference.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		task, err := readTask(cmd.InOrStdin())
		if err != nil {
			return err
		}

		if runAgent != "" {
			cfg.Agent = runAgent
		}
		if runMaxIter > 0 {
			cfg.MaxIterations = runMaxIter
		}
		if runMaxChars > 0 {
			cfg.MaxChars = runMaxChars
		}

		sessionID := runSessionID
		if sessionID == "" {
			sessionID = idgen.New()
		} else if err := idgen.ValidateSessionID(sessionID); err != nil {
			return err
		}

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

		fmt.Fprintf(cmd.OutOrStdout(), "session %s\n", sessionID)

		if runServeAddr == "" {
			return finish(cmd, c, c.Start(ctx, task))
		}

		// The feed must share the controller's bus: broadcast fan-out
		// is in-memory, so a separate instance would only ever see the
		// persisted backlog.
		srv := &stream.Server{
			Bus:       bus,
			Store:     store,
			StartedAt: time.Now().UTC(),
		}
		listener, err := net.Listen("tcp", runServeAddr)
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		httpServer := &http.Server{
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logging.GetLogger().Info("event feed listening", "addr", listener.Addr().String())
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		var runErr error
		g.Go(func() error {
			runErr = c.Start(gctx, task)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
			return nil
		})
		if err := g.Wait(); err != nil {
			return err
		}
		return finish(cmd, c, runErr)
	},
}

func finish(cmd *cobra.Command, c *controller.Controller, err error) error {
	fmt.Fprintf(cmd.OutOrStdout(), "session ended in state %s after %d records\n", c.State(), c.History().Len())
	if errors.Is(err, context.Canceled) {
		// Interrupted sessions persist as paused and can be resumed.
		return nil
	}
	return err
}

func readTask(stdin io.Reader) (string, error) {
	if runTask != "" {
		return runTask, nil
	}
	if runTaskFile != "" {
		data, err := os.ReadFile(runTaskFile)
		if err != nil {
			return "", fmt.Errorf("read task file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read task from stdin: %w", err)
	}
	task := strings.TrimSpace(string(data))
	if task == "" {
		return "", fmt.Errorf("no task given: use --task, --file, or stdin")
	}
	return task, nil
}

func init() {
	runCmd.Flags().StringVarP(&runTask, "task", "t", "", "task description")
	runCmd.Flags().StringVarP(&runTaskFile, "file", "f", "", "file containing the task description")
	runCmd.Flags().StringVar(&runSessionID, "session", "", "session id (generated if empty)")
	runCmd.Flags().StringVar(&runAgent, "agent", "", "agent name (default from AGENTD_AGENT)")
	runCmd.Flags().IntVar(&runMaxIter, "max-iterations", 0, "iteration ceiling")
	runCmd.Flags().Int64Var(&runMaxChars, "max-chars", 0, "history character budget")
	runCmd.Flags().StringVar(&runServeAddr, "serve", "", "serve the live event feed on this address while running")
}
