package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/JaimeStill/verdict/internal/store"
)

type resumeCommand struct {
	runID           string
	retryErrorsOnly bool
}

func newResumeCommand() *cobra.Command {
	rc := &resumeCommand{}

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Continue an interrupted run",
		Long: `Resume continues a run from its last committed batch using the classifier
configuration recorded when the run started. Completed runs are rejected.

With --retry-errors-only, only records whose last attempt failed are
classified again.`,
		Args: cobra.NoArgs,
		RunE: rc.run,
	}

	cmd.Flags().StringVar(&rc.runID, "run-id", "", "Run to resume")
	cmd.Flags().BoolVar(&rc.retryErrorsOnly, "retry-errors-only", false, "Reprocess only errored records")
	_ = cmd.MarkFlagRequired("run-id")

	return cmd
}

func (rc *resumeCommand) run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ctrl.ValidateResume(ctx, rc.runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if res.Warning != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", res.Warning)
	}

	mode := store.ModeMissing
	if rc.retryErrorsOnly {
		mode = store.ModeRetryErrors
	}

	rctx, err := a.ctrl.Load(ctx, rc.runID, mode)
	if err != nil {
		return err
	}

	preview, err := a.ctrl.Preview(ctx, rctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Resuming run %s (%s)\n", res.Run.RunID, res.Run.Name)
	fmt.Fprintf(out, "Remaining: %s of %s (%.1f%% done)\n",
		humanize.Comma(int64(preview.Remaining)),
		humanize.Comma(int64(preview.Total)),
		preview.Percent(),
	)
	if preview.ETA != nil {
		fmt.Fprintf(out, "Estimated completion: %s\n", when(preview.ETA))
	}

	return a.execute(ctx, out, rctx)
}
