package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/evaluation"
)

func newEvaluateCmd(a *app) *cobra.Command {
	var run, qrels string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a submission CSV against relevance judgements",
		Long: `Compute MAP, NDCG, NDCG@k, Recall@k and P@10 (k from ranker.evalAt) of a
submission file. Zero padding on numeric ids is ignored on both sides.
Queries without any relevant judgement are left out of the averages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, report, err := dataset.ReadSubmissionFile(run)
			if err != nil {
				return err
			}
			logSkipped("submission", run, report)

			judgements, err := readQrels(qrels)
			if err != nil {
				return err
			}
			for i := range judgements {
				judgements[i].QueryID = dataset.Unpad(judgements[i].QueryID)
				judgements[i].DocID = dataset.Unpad(judgements[i].DocID)
			}
			q, _, err := evaluation.FromRows(judgements)
			if err != nil {
				return err
			}

			result := evaluation.Evaluate(dataset.RunOf(rows), q, a.cfg.Ranker.EvalAt)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&run, "run", "", "Submission CSV (QueryId,EntityId)")
	cmd.Flags().StringVar(&qrels, "qrels", "", "Judgements CSV (QueryId,EntityId,Relevance)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	_ = cmd.MarkFlagRequired("run")
	_ = cmd.MarkFlagRequired("qrels")
	return cmd
}
