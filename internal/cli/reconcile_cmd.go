package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soyeahso/remdev/internal/domain"
	"github.com/soyeahso/remdev/internal/hooks"
	"github.com/soyeahso/remdev/internal/reconcile"
	"github.com/soyeahso/remdev/internal/store"
)

// reportFile is the document form of a report file. A bare list of
// workspaces is accepted too.
type reportFile struct {
	UpdateType          string                      `yaml:"updateType"`
	WorkspaceAgentInfos []domain.WorkspaceAgentInfo `yaml:"workspaceAgentInfos"`
}

// readReports parses a YAML or JSON report file.
func readReports(r io.Reader) (reportFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return reportFile{}, err
	}

	var list []domain.WorkspaceAgentInfo
	if err := yaml.Unmarshal(data, &list); err == nil {
		return reportFile{WorkspaceAgentInfos: list}, nil
	}

	var doc reportFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return reportFile{}, fmt.Errorf("parsing reports: %w", err)
	}
	return doc, nil
}

type transitionOutput struct {
	WorkspaceID int64                      `json:"workspaceId"`
	Name        string                     `json:"name"`
	From        domain.DesiredState        `json:"from"`
	To          domain.DesiredState        `json:"to"`
	Reason      reconcile.TransitionReason `json:"reason"`
}

type reconcileOutput struct {
	Agent       string             `json:"agent"`
	UpdateType  domain.UpdateType  `json:"updateType"`
	Workspaces  []domain.Workspace `json:"workspaces"`
	Orphans     []string           `json:"orphans,omitempty"`
	Transitions []transitionOutput `json:"transitions,omitempty"`
	Watermark   *time.Time         `json:"watermark,omitempty"`
}

func newReconcileOutput(rc reconcile.Context) reconcileOutput {
	out := reconcileOutput{
		Agent:      rc.Agent.Name,
		UpdateType: rc.UpdateType,
		Workspaces: rc.WorkspacesToBeReturned,
	}
	if out.Workspaces == nil {
		out.Workspaces = []domain.Workspace{}
	}
	for _, o := range rc.Orphans {
		out.Orphans = append(out.Orphans, o.Name)
	}
	for _, t := range rc.Transitions {
		out.Transitions = append(out.Transitions, transitionOutput(t))
	}
	if !rc.Watermark.IsZero() {
		w := rc.Watermark
		out.Watermark = &w
	}
	return out
}

func newReconcileCmd() *cobra.Command {
	var (
		agentName string
		file      string
		mode      string
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation for an agent against the local database",
		Long: "Applies a report file as if the agent had polled, and prints the\n" +
			"workspaces the agent would be told about. The file is YAML or JSON: either\n" +
			"a list of {name, namespace, actualState, deploymentResourceVersion} or a\n" +
			"document with updateType and workspaceAgentInfos. Use - for stdin.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			reports, err := readReports(in)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("mode") && reports.UpdateType != "" {
				mode = reports.UpdateType
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

			ctx := context.Background()
			agent, err := store.NewAgentStore(db).GetByName(ctx, agentName)
			if err != nil {
				return fmt.Errorf("agent %q: %w", agentName, err)
			}

			hookMgr := hooks.NewManager(log)
			hooks.RegisterCommands(hookMgr, hookCommands(cfg.Hooks))

			workspaces := store.NewWorkspaceStore(db)
			pipeline := reconcile.NewPipeline(
				reconcile.Transactional(workspaces.WithinTx),
				log,
				reconcile.WithHooks(hookMgr),
			)
			defer pipeline.Wait()

			rc, err := pipeline.Run(ctx, reconcile.Request{
				Agent:      agent,
				UpdateType: mode,
				Infos:      reports.WorkspaceAgentInfos,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), newReconcileOutput(rc))
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "agent name")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "report file (YAML or JSON), - for stdin")
	cmd.Flags().StringVar(&mode, "mode", string(domain.UpdateTypePartial), "update type: FULL or PARTIAL")
	_ = cmd.MarkFlagRequired("agent")

	return cmd
}
