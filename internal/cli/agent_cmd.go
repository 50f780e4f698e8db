package cli

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/soyeahso/remdev/internal/store"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage cluster agents",
	}

	cmd.AddCommand(newAgentRegisterCmd())
	cmd.AddCommand(newAgentListCmd())
	return cmd
}

func newAgentRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <name>",
		Short: "Register an agent and print its connection token",
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

			agent, token, err := store.NewAgentStore(db).Register(context.Background(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Agent:  %s\n", agent.Name)
			fmt.Fprintf(out, "ID:     %s\n", agent.ID)
			fmt.Fprintf(out, "Token:  %s\n", token)
			fmt.Fprintln(out, "\nThe token is shown once. Configure the agent with it now.")
			return nil
		},
	}
}

func newAgentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered agents",
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

			agents, err := store.NewAgentStore(db).List(context.Background())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(agents) == 0 {
				fmt.Fprintln(out, "No agents registered.")
				return nil
			}
			t := newTable(out)
			t.AppendHeader(table.Row{"ID", "NAME", "REGISTERED"})
			for _, a := range agents {
				t.AppendRow(table.Row{a.ID, a.Name, a.CreatedAt.Local().Format("2006-01-02 15:04")})
			}
			t.Render()
			return nil
		},
	}
}
