package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/remdev/internal/config"
	"github.com/soyeahso/remdev/internal/domain"
	"github.com/soyeahso/remdev/internal/store"
	"github.com/soyeahso/remdev/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show remdev status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "remdev %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:  %s\n", paths.Config)
			fmt.Fprintf(out, "Data:    %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:    %s\n", paths.Logs)
			fmt.Fprintln(out)

			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:  not found (using defaults)")
			}
			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:  error loading: %v\n", err)
				return nil
			}

			printConfigSummary(out, cfg)
			printStoreSummary(cmd.Context(), out, cfg)

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}

func printConfigSummary(out io.Writer, cfg config.Config) {
	auth := cfg.Gateway.Auth.Mode
	if auth == "" {
		auth = "none"
	}
	fmt.Fprintf(out, "Gateway: port=%d bind=%s auth=%s tls=%v\n",
		cfg.Gateway.Port, cfg.Gateway.Bind, auth, cfg.Gateway.TLS.Enabled)

	if cfg.Gateway.API.Disabled {
		fmt.Fprintln(out, "API:     disabled")
	} else {
		base := cfg.Gateway.API.BasePath
		if base == "" {
			base = "/api/v1"
		}
		fmt.Fprintf(out, "API:     %s\n", base)
	}

	fmt.Fprintf(out, "Store:   %s busyTimeout=%dms\n", paths.DatabasePath(cfg), cfg.Store.BusyTimeoutMs)
	fmt.Fprintf(out, "Workspaces: defaultMaxHours=%d\n", cfg.Workspaces.DefaultMaxHoursBeforeTermination)

	style := cfg.Logging.ConsoleStyle
	if style == "" {
		style = "pretty"
	}
	logFile := cfg.Logging.File
	if logFile == "" {
		logFile = "-"
	}
	fmt.Fprintf(out, "Logging: level=%s style=%s file=%s\n", cfg.Logging.Level, style, logFile)

	var hookInfo []string
	for event, entries := range cfg.Hooks.ByEvent() {
		if len(entries) > 0 {
			hookInfo = append(hookInfo, fmt.Sprintf("%s=%d", event, len(entries)))
		}
	}
	if len(hookInfo) > 0 {
		slices.Sort(hookInfo)
		fmt.Fprintf(out, "Hooks:   %s\n", strings.Join(hookInfo, " "))
	} else {
		fmt.Fprintln(out, "Hooks:   (none)")
	}
}

// printStoreSummary reports agent and workspace counts if the database exists.
// It never creates the database.
func printStoreSummary(ctx context.Context, out io.Writer, cfg config.Config) {
	dbPath := paths.DatabasePath(cfg)
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintln(out, "Database: not created yet")
		return
	}
	db, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(out, "Database: %v\n", err)
		return
	}
	defer db.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	agents, err := store.NewAgentStore(db).List(ctx)
	if err != nil {
		fmt.Fprintf(out, "Database: %v\n", err)
		return
	}
	workspaces, err := store.NewWorkspaceStore(db).List(ctx)
	if err != nil {
		fmt.Fprintf(out, "Database: %v\n", err)
		return
	}

	byState := make(map[domain.DesiredState]int)
	for _, ws := range workspaces {
		byState[ws.DesiredState]++
	}
	var parts []string
	for state, n := range byState {
		parts = append(parts, fmt.Sprintf("%s=%d", state, n))
	}
	slices.Sort(parts)
	fmt.Fprintf(out, "Database: agents=%d workspaces=%d %s\n", len(agents), len(workspaces), strings.Join(parts, " "))
}
