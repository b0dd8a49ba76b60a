// Command verdict runs resumable batch classifications over ingested sources.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "verdict",
		Short: "Resumable batch classification engine",
		Long: `verdict classifies every record of an ingested source through a model
provider, committing results in batches so an interrupted run resumes where
it stopped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRunCommand(),
		newResumeCommand(),
		newIngestCommand(),
		newStatusCommand(),
		newRunsCommand(),
		newFinalizeCommand(),
		newArchiveCommand(),
		newVersionCommand(),
	)

	return root
}
