package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/remdev/internal/gateway"
	"github.com/soyeahso/remdev/internal/version"
)

type versionOutput struct {
	Version  string `json:"version"`
	Commit   string `json:"commit"`
	Date     string `json:"date"`
	Protocol int    `json:"protocol"`
}

func newVersionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version of remdev and its gateway protocol",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), versionOutput{
					Version:  version.Version,
					Commit:   version.Commit,
					Date:     version.Date,
					Protocol: gateway.ProtocolVersion,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
			fmt.Fprintf(cmd.OutOrStdout(), "gateway protocol %d\n", gateway.ProtocolVersion)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
