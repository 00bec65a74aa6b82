package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rfpwatch/rfpwatch/internal/reconcile"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	MaxBatch int
	Document string
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Drain pending outbox entries against the store",
		Long: `Replay mutations queued while the backing store was unreachable.

Each pending entry is applied through the same mutation path the live
system uses. Structural failures are marked failed and never retried;
transient failures stay pending for the next run. Exits non-zero when
any entry failed.

Example:
  rfpwatch reconcile --max-batch=20
  rfpwatch reconcile --document=data/rfps.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.MaxBatch, "max-batch", reconcile.DefaultMaxBatch, "maximum entries to replay in this run")
	cmd.Flags().StringVar(&opts.Document, "document", "", "only replay entries targeting this document key")

	return cmd
}

func runReconcile(opts *ReconcileOptions, cmd *cobra.Command) error {
	app, err := buildApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer app.Close()

	rec := reconcile.New(reconcile.Config{
		Queue: app.queue,
		Appliers: map[string]reconcile.BatchApplier{
			app.cfg.Documents.RFPs:  app.rfps,
			app.cfg.Documents.Sites: app.sites,
		},
		Sites:     app.sites,
		MaxBatch:  opts.MaxBatch,
		KeyFilter: opts.Document,
		Logger:    app.logger,
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stats, err := rec.Drain(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "drain aborted", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "applied=%d failed=%d still_pending=%d\n",
		stats.Applied, stats.Failed, stats.StillPending)

	if stats.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d outbox entries failed", stats.Failed))
	}
	return nil
}
