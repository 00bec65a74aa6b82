// Package cli wires the rfpwatch commands: serve the MCP surface, or run
// one reconcile pass over the outbox.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
}

// NewRootCommand creates the root command for the rfpwatch CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rfpwatch",
		Short: "Procurement monitoring persistence core",
		Long: `rfpwatch maintains RFP and site-configuration collections as versioned
JSON documents in a git-backed file host, exposes them to dashboard
clients over MCP, and reconciles mutations queued while the host was
unreachable.`,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))

	return cmd
}
