package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/remdev/internal/config"
	"github.com/soyeahso/remdev/internal/gateway"
	"github.com/soyeahso/remdev/internal/hooks"
	"github.com/soyeahso/remdev/internal/logging"
	"github.com/soyeahso/remdev/internal/reconcile"
	"github.com/soyeahso/remdev/internal/store"
)

func newGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Manage the remdev gateway server",
	}

	cmd.AddCommand(newGatewayRunCmd())
	return cmd
}

func newGatewayRunCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			if issues := config.Validate(&cfg); len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return errValidation(len(issues))
			}

			// The gateway honours the configured log sink unless the flag
			// overrides the level.
			level := cfg.Logging.Level
			if logLevel != "" {
				level = logLevel
			}
			glog, closer, err := logging.NewFromConfig(cfg.Logging.ConsoleStyle, level, cfg.Logging.File)
			if err != nil {
				return err
			}
			defer closer.Close()
			log = glog

			// Load raw config for RPC access
			raw, err := config.LoadRaw(paths.Config)
			if err != nil {
				raw = make(map[string]any)
			}

			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			agents := store.NewAgentStore(db)
			workspaces := store.NewWorkspaceStore(db)

			hookMgr := hooks.NewManager(log)
			for _, event := range hooks.RegisterCommands(hookMgr, hookCommands(cfg.Hooks)) {
				log.Warn().Str("event", event).Msg("ignoring hooks for unknown event")
			}

			pipeline := reconcile.NewPipeline(
				reconcile.Transactional(workspaces.WithinTx),
				log,
				reconcile.WithHooks(hookMgr),
			)

			srv := gateway.New(cfg, log,
				gateway.WithConfigRaw(raw),
				gateway.WithHooks(hookMgr),
				gateway.WithAgents(agents),
				gateway.WithWorkspaces(workspaces),
				gateway.WithReconciler(pipeline),
			)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = srv.Start(ctx)
			// Let hooks from the last polls finish before the process exits.
			pipeline.Wait()
			return err
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (auto, lan, loopback, custom, tailnet)")

	return cmd
}

// hookCommands converts configured hook entries into command specs.
func hookCommands(cfg config.HooksConfig) map[string][]hooks.CommandSpec {
	out := make(map[string][]hooks.CommandSpec)
	for event, entries := range cfg.ByEvent() {
		for _, e := range entries {
			out[event] = append(out[event], hooks.CommandSpec{
				Command: e.Command,
				Timeout: time.Duration(e.Timeout) * time.Millisecond,
			})
		}
	}
	return out
}
