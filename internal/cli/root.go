package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/remdev/internal/config"
	"github.com/soyeahso/remdev/internal/logging"
	"github.com/soyeahso/remdev/internal/store"
)

var (
	cfgFile  string
	logLevel string

	// loaded at init time
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remdev",
		Short: "remdev: remote development workspace control plane",
		Long: "remdev keeps development workspaces on remote clusters in their desired state.\n" +
			"Cluster agents poll the gateway with what they observe and get back the\n" +
			"workspaces they need to act on.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			level := logLevel
			if level == "" {
				level = "info"
			}
			log = logging.New(nil, level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file, YAML or TOML (default ~/.remdev/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newGatewayCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newAgentCmd())
	cmd.AddCommand(newWorkspaceCmd())
	cmd.AddCommand(newReconcileCmd())
	cmd.AddCommand(newPollCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "remdev:", err)
	}
	return err
}

// loadValidConfig loads the config file and fails on validation issues.
func loadValidConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, errValidation(len(issues))
	}
	return cfg, nil
}

func errValidation(n int) error {
	return fmt.Errorf("config validation failed with %d issue(s)", n)
}

// openStore opens the configured database.
func openStore(cfg config.Config) (*store.DB, error) {
	path := paths.DatabasePath(cfg)
	var opts []store.Option
	if cfg.Store.BusyTimeoutMs > 0 {
		opts = append(opts, store.WithBusyTimeout(time.Duration(cfg.Store.BusyTimeoutMs)*time.Millisecond))
	}
	db, err := store.Open(path, log, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	return db, nil
}
