package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/verdict/internal/archive"
	"github.com/JaimeStill/verdict/internal/store"
	"github.com/JaimeStill/verdict/pkg/pagination"
)

type statusCommand struct {
	runID string
}

func newStatusCommand() *cobra.Command {
	sc := &statusCommand{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a run's progress and outcome",
		Args:  cobra.NoArgs,
		RunE:  sc.run,
	}

	cmd.Flags().StringVar(&sc.runID, "run-id", "", "Run to show")
	_ = cmd.MarkFlagRequired("run-id")

	return cmd
}

func (sc *statusCommand) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.store.FindRun(ctx, sc.runID)
	if err != nil {
		return err
	}
	stats, err := a.store.Stats(ctx, sc.runID)
	if err != nil {
		return err
	}

	printRun(cmd.OutOrStdout(), run, stats)
	return nil
}

type runsCommand struct {
	status   string
	source   string
	search   string
	sort     string
	page     int
	pageSize int
}

func newRunsCommand() *cobra.Command {
	rc := &runsCommand{}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs",
		Long: `Runs lists runs newest first. --sort accepts a comma-separated list of
fields with an optional "-" prefix for descending order, for example
"Status,-StartedAt".`,
		Args: cobra.NoArgs,
		RunE: rc.run,
	}

	cmd.Flags().StringVar(&rc.status, "status", "", "Filter by status (running, completed, failed, cancelled)")
	cmd.Flags().StringVar(&rc.source, "source", "", "Filter by source name")
	cmd.Flags().StringVar(&rc.search, "search", "", "Match run name or id")
	cmd.Flags().StringVar(&rc.sort, "sort", "", "Sort fields")
	cmd.Flags().IntVar(&rc.page, "page", 1, "Page number")
	cmd.Flags().IntVar(&rc.pageSize, "page-size", 0, "Page size (defaults to the configured size)")

	return cmd
}

func (rc *runsCommand) run(cmd *cobra.Command, _ []string) error {
	var filters store.RunFilters
	if rc.status != "" {
		status := store.Status(rc.status)
		switch status {
		case store.StatusRunning, store.StatusCompleted, store.StatusFailed, store.StatusCancelled:
		default:
			return fmt.Errorf("unknown status %q", rc.status)
		}
		filters.Status = &status
	}
	if rc.source != "" {
		filters.SourceName = &rc.source
	}

	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	req := pagination.NewPageRequest(rc.page, rc.pageSize, rc.search, rc.sort, a.cfg.Pagination)
	result, err := a.store.ListRuns(ctx, req, filters)
	if err != nil {
		return err
	}

	printRuns(cmd.OutOrStdout(), result.Data, result.Page, result.TotalPages, result.Total)
	return nil
}

type finalizeCommand struct {
	runID string
}

func newFinalizeCommand() *cobra.Command {
	fc := &finalizeCommand{}

	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Recompute a run's metrics from its stored results",
		Long: `Finalize aggregates every stored result of a run with the evaluation
recorded when it started and marks the run completed. It can be repeated.`,
		Args: cobra.NoArgs,
		RunE: fc.run,
	}

	cmd.Flags().StringVar(&fc.runID, "run-id", "", "Run to finalize")
	_ = cmd.MarkFlagRequired("run-id")

	return cmd
}

func (fc *finalizeCommand) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	metrics, err := a.ctrl.Finalize(ctx, fc.runID)
	if err != nil {
		return err
	}

	printMetrics(cmd.OutOrStdout(), metrics)
	return nil
}

type archiveCommand struct {
	runID string
}

func newArchiveCommand() *cobra.Command {
	ac := &archiveCommand{}

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Export a run's results to blob storage as JSONL",
		Args:  cobra.NoArgs,
		RunE:  ac.run,
	}

	cmd.Flags().StringVar(&ac.runID, "run-id", "", "Run to export")
	_ = cmd.MarkFlagRequired("run-id")

	return cmd
}

func (ac *archiveCommand) run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.infra.Storage == nil {
		return fmt.Errorf("blob storage is not configured; set VERDICT_STORAGE_CONNECTION_STRING")
	}

	m, err := archive.Export(ctx, a.store, a.infra.Storage, ac.runID, a.logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d results of %s to %s\n", m.Results, m.RunID, m.Key)
	return nil
}
