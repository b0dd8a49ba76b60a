package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/verdict/internal/ingest"
)

type ingestCommand struct {
	src       ingest.Source
	format    string
	idColumns string
}

func newIngestCommand() *cobra.Command {
	ic := &ingestCommand{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load a CSV or JSONL file as a named source",
		Long: `Ingest records a source file's checksum on first load and inserts its
records. Loading the same file again is a no-op; loading a modified file
under the same source name is rejected.`,
		Args: cobra.NoArgs,
		RunE: ic.run,
	}

	cmd.Flags().StringVar(&ic.src.Name, "source-name", "", "Source name")
	cmd.Flags().StringVar(&ic.src.Path, "file", "", "Path to the source file")
	cmd.Flags().StringVar(&ic.format, "format", "", "csv or jsonl (detected from the extension when empty)")
	cmd.Flags().StringVar(&ic.idColumns, "id-columns", "", "Comma-separated columns composing the record id")
	cmd.Flags().StringVar(&ic.src.TextColumn, "text-column", "", "Column holding the text to classify")
	cmd.Flags().StringVar(&ic.src.LabelColumn, "label-column", "", "Column holding the ground truth label")
	_ = cmd.MarkFlagRequired("source-name")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func (ic *ingestCommand) run(cmd *cobra.Command, _ []string) error {
	ic.src.Format = ingest.Format(ic.format)
	if ic.idColumns != "" {
		for col := range strings.SplitSeq(ic.idColumns, ",") {
			if col = strings.TrimSpace(col); col != "" {
				ic.src.IDColumns = append(ic.src.IDColumns, col)
			}
		}
	}
	if err := ic.src.Finalize(); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := ingest.Ingest(ctx, a.store, ic.src, a.logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Source %s: %d records, %d new (sha256 %s)\n",
		res.SourceName, res.Records, res.Inserted, res.Checksum)
	return nil
}
