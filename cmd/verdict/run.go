package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/verdict/internal/evaluation"
	"github.com/JaimeStill/verdict/internal/experiment"
	"github.com/JaimeStill/verdict/internal/ingest"
	"github.com/JaimeStill/verdict/internal/store"
)

type runCommand struct {
	name   string
	config string
}

func newRunCommand() *cobra.Command {
	rc := &runCommand{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest an experiment's source and classify every record",
		Long: `Run loads an experiment file, ingests its source (verifying the checksum
against any earlier ingest), creates a new run, and classifies every record.

Interrupting with Ctrl-C flushes the current batch and leaves the run
resumable with "verdict resume --run-id <id>".`,
		Args: cobra.NoArgs,
		RunE: rc.run,
	}

	cmd.Flags().StringVar(&rc.name, "name", "", "Run name (defaults to the experiment name)")
	cmd.Flags().StringVar(&rc.config, "config", "", "Experiment file (YAML)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func (rc *runCommand) run(cmd *cobra.Command, _ []string) error {
	exp, err := experiment.Load(rc.config)
	if err != nil {
		return err
	}
	if rc.name != "" {
		exp.Name = rc.name
	}

	agg, err := evaluation.ForName(exp.Evaluation.Aggregator)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, appOptions{engine: &exp.Engine, aggregator: agg})
	if err != nil {
		return err
	}
	defer a.Close()

	ingested, err := ingest.Ingest(ctx, a.store, exp.Source, a.logger)
	if err != nil {
		return err
	}

	runID, err := a.ctrl.Start(ctx, exp.Name, ingested.SourceName, exp.Classifier)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s started over %s (%d records)\n", runID, ingested.SourceName, ingested.Records)

	rctx, err := a.ctrl.Load(ctx, runID, store.ModeMissing)
	if err != nil {
		return err
	}
	return a.execute(ctx, out, rctx)
}
