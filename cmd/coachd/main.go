// coachd runs a single voice-coaching session against a local terminal
// stand-in for the real-time transport: each input line is one capability
// invocation. The real deployment attaches the same controller to a live
// audio room; nothing in the session core knows the difference.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"voicecoach/internal/config"
	"voicecoach/internal/logging"
	"voicecoach/internal/reasoning"
	"voicecoach/internal/session"
	"voicecoach/internal/store"
)

var (
	configPath string
	userID     string
	seedDemo   bool
)

var rootCmd = &cobra.Command{
	Use:   "coachd",
	Short: "voicecoach - real-time voice coaching session orchestrator",
	Long: `coachd orchestrates one voice-coaching session end to end: it preloads
the user's plan snapshot, serves capability calls from the interaction
layer, delegates complex questions to specialist reasoners, and persists
logged activity in the background without ever blocking the conversation.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run one interactive session on stdin/stdout",
	Long: `Starts a session for the given user and reads capability invocations
from stdin, one per line:

  get_todays_workout
  log_set {"exercise": "bench press", "reps": 8, "weight_kg": 80}
  ask_specialist {"specialist": "diet", "query": "how much protein do I need?"}

EOF or SIGINT ends the session and drains the persistence queue.`,
	RunE: runServe,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the demo user profile into the store",
	RunE:  runSeed,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "coach.yaml", "path to config file")
	serveCmd.Flags().StringVarP(&userID, "user", "u", "demo", "user to start the session for")
	serveCmd.Flags().BoolVar(&seedDemo, "seed", false, "seed the demo profile before starting")
	seedCmd.Flags().StringVarP(&userID, "user", "u", "demo", "user id to seed")
	rootCmd.AddCommand(serveCmd, seedCmd)
}

func setup() (*config.Config, *store.SQLStore, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := logging.Initialize(logging.Config{
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
		Categories: cfg.Logging.Categories,
		Path:       cfg.Logging.Path,
	}); err != nil {
		return nil, nil, err
	}

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	_, st, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SeedDemoUser(cmd.Context(), userID); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	fmt.Printf("Seeded profile for %q\n", userID)
	return nil
}

// terminalHandle is the stdin stand-in for a real-time room handle.
type terminalHandle struct{}

func (terminalHandle) ID() string { return "terminal" }

func runServe(cmd *cobra.Command, args []string) error {
	cfg, st, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := cfg.Validate(); err != nil {
		return err
	}

	if seedDemo {
		if err := st.SeedDemoUser(cmd.Context(), userID); err != nil {
			return fmt.Errorf("seed failed: %w", err)
		}
	}

	reasoner, err := reasoning.New(reasoning.Config{
		Provider: reasoning.Provider(cfg.Reasoning.Provider),
		APIKey:   cfg.Reasoning.APIKey,
		Model:    cfg.Reasoning.Model,
		BaseURL:  cfg.Reasoning.BaseURL,
		Timeout:  cfg.GetReasoningTimeout(),
	})
	if err != nil {
		return fmt.Errorf("reasoning setup failed: %w", err)
	}

	ctrl, err := session.New(st, st, reasoner, session.Options{
		UserID:            userID,
		DelegationTimeout: cfg.GetDelegationTimeout(),
		QueueCapacity:     cfg.Session.QueueCapacity,
		DrainGrace:        cfg.GetDrainGrace(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Fatal-init: abort before attaching anything.
	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("session start failed: %w", err)
	}
	defer ctrl.Close()

	if err := ctrl.Attach(terminalHandle{}); err != nil {
		return err
	}

	fmt.Printf("Session %s active for %q. One invocation per line, EOF to end.\n", ctrl.ID(), userID)

	g, gctx := errgroup.WithContext(ctx)
	lines := make(chan string)

	g.Go(func() error {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-gctx.Done():
				return nil
			}
		}
		return scanner.Err()
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				serveLine(gctx, ctrl, line)
			}
		}
	})

	err = g.Wait()
	ctrl.OnDetach()

	m := ctrl.GetMetrics()
	fmt.Printf("Session over. Persisted %d events (%d dropped, %d failed).\n",
		m.Queue.Persisted, m.Queue.Dropped, m.Queue.Failed)
	return err
}

// serveLine parses "capability {json args}" and prints the reply.
func serveLine(ctx context.Context, ctrl *session.Controller, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	name, rest, _ := strings.Cut(line, " ")
	args := map[string]any{}
	if rest = strings.TrimSpace(rest); rest != "" {
		if err := json.Unmarshal([]byte(rest), &args); err != nil {
			fmt.Printf("  bad arguments: %v\n", err)
			return
		}
	}

	res, err := ctrl.Invoke(ctx, name, args)
	if err != nil {
		fmt.Printf("  error: %v\n", err)
		return
	}
	fmt.Printf("  %s\n", res.Reply)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
