package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/pipeline"
)

type rankOptions struct {
	src      indexSource
	queries  string
	model    string
	out      string
	baseline bool
	qrels    string
	persist  bool
	noHeader bool
	queryPad int
	docPad   int
}

func newRankCmd(a *app) *cobra.Command {
	var opts rankOptions
	defaults := dataset.DefaultSubmissionOptions()

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank a queries file into a submission CSV",
		Long: `Retrieve, featurize and score every query with the trained model, optionally
rerank the head with the cross-encoder, and write the top retrieval.outputK
entities per query as QueryId,EntityId rows.

With --baseline the first-stage scorer order is written and no model is
needed. With --qrels the run is evaluated before exiting; with --persist
it is stored in Postgres.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRank(cmd, a, opts)
		},
	}

	opts.src.register(cmd)
	cmd.Flags().StringVarP(&opts.queries, "queries", "q", "", "Queries CSV (QueryId,Query)")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model path (default ranker.modelPath)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "submission.csv", "Submission output path")
	cmd.Flags().BoolVar(&opts.baseline, "baseline", false, "Rank by the primary first-stage scorer only")
	cmd.Flags().StringVar(&opts.qrels, "qrels", "", "Evaluate the run against this judgements CSV")
	cmd.Flags().BoolVar(&opts.persist, "persist", false, "Store the run and its results in Postgres")
	cmd.Flags().BoolVar(&opts.noHeader, "no-header", false, "Omit the CSV header row")
	cmd.Flags().IntVar(&opts.queryPad, "query-pad", defaults.QueryPad, "Zero-pad numeric query ids to this width (0 disables)")
	cmd.Flags().IntVar(&opts.docPad, "doc-pad", defaults.DocPad, "Zero-pad numeric entity ids to this width (0 disables)")
	_ = cmd.MarkFlagRequired("queries")
	return cmd
}

func runRank(cmd *cobra.Command, a *app, opts rankOptions) error {
	ctx := cmd.Context()
	queries, err := readQueries(opts.queries)
	if err != nil {
		return err
	}
	p, texts, err := a.openPipeline(ctx, opts.src, pipeline.Options{})
	if err != nil {
		return err
	}

	var rankings []pipeline.Ranking
	if opts.baseline {
		rankings, err = p.RankBaseline(ctx, queries)
	} else {
		if opts.model == "" {
			opts.model = a.cfg.Ranker.ModelPath
		}
		if _, err := p.LoadModel(opts.model); err != nil {
			return err
		}
		a.installReranker(p, texts)
		rankings, err = p.Rank(ctx, queries)
	}
	if err != nil {
		return err
	}

	rows := p.Emit(rankings)
	err = dataset.WriteSubmissionFile(opts.out, rows, dataset.SubmissionOptions{
		QueryPad: opts.queryPad,
		DocPad:   opts.docPad,
		NoHeader: opts.noHeader,
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ranked %d queries, %d rows -> %s\n", len(rankings), len(rows), opts.out)

	var report *evaluation.Report
	if opts.qrels != "" {
		judgements, err := readQrels(opts.qrels)
		if err != nil {
			return err
		}
		r, err := p.Evaluate(rankings, judgements)
		if err != nil {
			return err
		}
		report = &r
		fmt.Fprintf(out, "evaluation  %s\n", r)
	}

	if !opts.persist {
		return nil
	}
	st, db, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	version := ""
	if len(rankings) > 0 {
		version = rankings[0].ModelVersion
	}
	runID, err := st.SaveRun(ctx, version, report, pipeline.StoreResults(rankings))
	if err != nil {
		return err
	}
	slog.Info("run stored", "run_id", runID, "model_version", version)
	return nil
}
