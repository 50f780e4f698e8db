package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/soyeahso/remdev/internal/domain"
	"github.com/soyeahso/remdev/internal/store"
)

func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage workspaces",
	}

	cmd.AddCommand(newWorkspaceCreateCmd())
	cmd.AddCommand(newWorkspaceListCmd())
	cmd.AddCommand(newWorkspaceSetStateCmd())
	return cmd
}

func newWorkspaceCreateCmd() *cobra.Command {
	var (
		agentName string
		namespace string
		owner     string
		maxHours  int
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a workspace on an agent's cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig()
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := context.Background()
			agent, err := store.NewAgentStore(db).GetByName(ctx, agentName)
			if err != nil {
				return fmt.Errorf("agent %q: %w", agentName, err)
			}

			if maxHours == 0 {
				maxHours = cfg.Workspaces.DefaultMaxHoursBeforeTermination
			}
			if namespace == "" {
				namespace = args[0]
			}

			ws, err := store.NewWorkspaceStore(db).CreateWorkspace(ctx, domain.Workspace{
				AgentID:                   agent.ID,
				Name:                      args[0],
				Namespace:                 namespace,
				Owner:                     owner,
				MaxHoursBeforeTermination: maxHours,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created workspace %d (%s) on %s, terminates at %s\n",
				ws.ID, ws.Name, agent.Name, ws.TerminatesAt().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "name of the agent that hosts the workspace")
	cmd.Flags().StringVar(&namespace, "namespace", "", "cluster namespace (default: workspace name)")
	cmd.Flags().StringVar(&owner, "owner", "", "owning user")
	cmd.Flags().IntVar(&maxHours, "max-hours", 0, "hours before the workspace is terminated (default from config)")
	_ = cmd.MarkFlagRequired("agent")

	return cmd
}

func newWorkspaceListCmd() *cobra.Command {
	var (
		agentName string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig()
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := context.Background()
			workspaces := store.NewWorkspaceStore(db)

			var list []domain.Workspace
			if agentName != "" {
				agent, err := store.NewAgentStore(db).GetByName(ctx, agentName)
				if err != nil {
					return fmt.Errorf("agent %q: %w", agentName, err)
				}
				list, err = workspaces.FindAll(ctx, agent.ID)
				if err != nil {
					return err
				}
			} else {
				list, err = workspaces.List(ctx)
				if err != nil {
					return err
				}
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			printWorkspaces(cmd.OutOrStdout(), list)
			return nil
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "only show this agent's workspaces")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}

func newWorkspaceSetStateCmd() *cobra.Command {
	states := []string{
		string(domain.DesiredStateRunning),
		string(domain.DesiredStateStopped),
		string(domain.DesiredStateRestartRequested),
		string(domain.DesiredStateTerminated),
	}

	return &cobra.Command{
		Use:       "set-state <id> <state>",
		Short:     "Request a desired state (" + strings.Join(states, ", ") + ")",
		Args:      cobra.ExactArgs(2),
		ValidArgs: states,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid workspace id %q", args[0])
			}

			cfg, err := loadValidConfig()
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			state := domain.DesiredState(strings.ToUpper(args[1]))
			ws, err := store.NewWorkspaceStore(db).SetDesiredState(context.Background(), id, state, time.Now())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Workspace %d (%s) desired=%s actual=%s\n",
				ws.ID, ws.Name, ws.DesiredState, ws.ActualState)
			return nil
		},
	}
}

func printWorkspaces(w io.Writer, list []domain.Workspace) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No workspaces.")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "NAME", "NAMESPACE", "DESIRED", "ACTUAL", "TERMINATES"})
	for _, ws := range list {
		t.AppendRow(table.Row{
			ws.ID, ws.Name, ws.Namespace, ws.DesiredState, ws.ActualState,
			ws.TerminatesAt().Local().Format("2006-01-02 15:04"),
		})
	}
	t.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
