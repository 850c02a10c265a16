package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/pipeline"
)

func newIndexCmd(a *app) *cobra.Command {
	var corpusPath, out string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the field index from a JSONL corpus and persist it",
		Long: `Read a JSONL corpus of {"id","title","text","keywords"} records, analyse
every field and write the field index as a segment file.

Malformed lines are counted and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				out = a.cfg.Index.SegmentPath()
			}
			p := pipeline.New(a.cfg, pipeline.Options{Metrics: a.metrics})
			_, report, err := p.IndexCorpus(cmd.Context(), corpusPath, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"indexed %d documents (%d malformed lines, %d skipped) in %s\nsegment: %s\n",
				report.Build.Indexed, report.Read.Malformed, report.Build.Skipped,
				report.Duration.Round(time.Millisecond), report.Segment)
			return nil
		},
	}

	cmd.Flags().StringVar(&corpusPath, "corpus", "", "JSONL corpus to index")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Segment output path (default <index.dataDir>/index.seg)")
	_ = cmd.MarkFlagRequired("corpus")
	return cmd
}
