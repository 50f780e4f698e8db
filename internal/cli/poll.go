package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/remdev/internal/config"
	"github.com/soyeahso/remdev/internal/domain"
	"github.com/soyeahso/remdev/internal/gateway"
)

func newPollCmd() *cobra.Command {
	var (
		url      string
		token    string
		file     string
		mode     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Connect to a gateway as an agent and send a report",
		Long: "Acts as a cluster agent: connects over WebSocket with an agent token,\n" +
			"sends the report file and prints the workspaces to act on. With --interval\n" +
			"it keeps polling, sending FULL first and PARTIAL afterwards.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("REMDEV_AGENT_TOKEN")
			}
			if token == "" {
				return errors.New("agent token required (--token or REMDEV_AGENT_TOKEN)")
			}
			if url == "" {
				cfg, err := config.Load(paths.Config)
				if err != nil {
					return err
				}
				scheme := "ws"
				if cfg.Gateway.TLS.Enabled {
					scheme = "wss"
				}
				url = fmt.Sprintf("%s://127.0.0.1:%d/ws", scheme, cfg.Gateway.Port)
			}

			var reports reportFile
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				reports, err = readReports(f)
				f.Close()
				if err != nil {
					return err
				}
			}
			if !cmd.Flags().Changed("mode") && reports.UpdateType != "" {
				mode = reports.UpdateType
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			conn, err := gateway.DialAgent(dialCtx, url, token, "remdev-cli")
			cancel()
			if err != nil {
				return err
			}
			defer conn.Close()
			conn.OnEvent = func(f gateway.Frame) {
				log.Info().Str("event", f.Event).Msg("gateway event")
			}
			log.Info().Str("agent", conn.Agent.Name).Str("url", url).Msg("connected")

			for {
				if err := pollOnce(ctx, cmd, conn, mode, reports.WorkspaceAgentInfos); err != nil {
					return err
				}
				if interval <= 0 {
					return nil
				}
				mode = string(domain.UpdateTypePartial)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(interval):
				}
			}
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "gateway WebSocket URL (default from config, ws://127.0.0.1:<port>/ws)")
	cmd.Flags().StringVar(&token, "token", "", "agent token (default $REMDEV_AGENT_TOKEN)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "report file (YAML or JSON)")
	cmd.Flags().StringVar(&mode, "mode", string(domain.UpdateTypeFull), "update type of the first poll: FULL or PARTIAL")
	cmd.Flags().DurationVar(&interval, "interval", 0, "keep polling at this interval")

	return cmd
}

func pollOnce(ctx context.Context, cmd *cobra.Command, conn *gateway.AgentConn, mode string, infos []domain.WorkspaceAgentInfo) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := conn.Reconcile(ctx, gateway.ReconcileParams{
		UpdateType:          mode,
		WorkspaceAgentInfos: infos,
	})
	if err != nil {
		var rpcErr *gateway.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Shape.Retryable {
			log.Warn().Err(err).Int("retryAfterMs", rpcErr.Shape.RetryAfter).Msg("gateway busy; poll again later")
			return nil
		}
		return err
	}
	for _, name := range res.Orphans {
		log.Warn().Str("workspace", name).Msg("gateway does not know this workspace")
	}
	return writeJSON(cmd.OutOrStdout(), res)
}
