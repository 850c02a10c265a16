package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/pipeline"
	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

type trainOptions struct {
	src         indexSource
	queries     string
	qrels       string
	qrelsFromDB bool
	saveQrels   bool
	model       string
	report      string
}

// trainSummary is the JSON written by --report.
type trainSummary struct {
	ModelVersion  string             `json:"model_version"`
	Trees         int                `json:"trees"`
	BestIteration int                `json:"best_iteration"`
	StoppedEarly  bool               `json:"stopped_early"`
	TrainQueries  int                `json:"train_queries"`
	ValQueries    int                `json:"val_queries"`
	TrainRows     int                `json:"train_rows"`
	Excluded      int                `json:"excluded_candidates"`
	Train         evaluation.Report  `json:"train"`
	Validation    *evaluation.Report `json:"validation,omitempty"`
	Baseline      *evaluation.Report `json:"first_stage,omitempty"`
}

func newTrainCmd(a *app) *cobra.Command {
	var opts trainOptions

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the LambdaMART ranker on judged queries",
		Long: `Retrieve candidates for every judged query, fuse scorer features, split
queries into train and validation sets (ranker.validationRatio, seeded by
ranker.seed) and fit a LambdaMART model with early stopping on validation
NDCG. The model is written as JSON to --model.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, a, opts)
		},
	}

	opts.src.register(cmd)
	cmd.Flags().StringVarP(&opts.queries, "queries", "q", "", "Queries CSV (QueryId,Query)")
	cmd.Flags().StringVar(&opts.qrels, "qrels", "", "Judgements CSV (QueryId,EntityId,Relevance)")
	cmd.Flags().BoolVar(&opts.qrelsFromDB, "qrels-from-db", false, "Load judgements from Postgres instead of --qrels")
	cmd.Flags().BoolVar(&opts.saveQrels, "save-qrels", false, "Store the --qrels judgements in Postgres")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model output path (default ranker.modelPath)")
	cmd.Flags().StringVar(&opts.report, "report", "", "Write a JSON training summary to this path")
	_ = cmd.MarkFlagRequired("queries")
	return cmd
}

func runTrain(cmd *cobra.Command, a *app, opts trainOptions) error {
	const op = "cmd.train"
	ctx := cmd.Context()
	if opts.qrels == "" && !opts.qrelsFromDB {
		return apperrors.New(apperrors.ErrInvalidInput, op, "one of --qrels or --qrels-from-db is required")
	}
	if opts.model == "" {
		opts.model = a.cfg.Ranker.ModelPath
	}

	queries, err := readQueries(opts.queries)
	if err != nil {
		return err
	}
	judgements, err := loadJudgements(cmd, a, opts)
	if err != nil {
		return err
	}

	p, _, err := a.openPipeline(ctx, opts.src, pipeline.Options{})
	if err != nil {
		return err
	}
	result, err := p.Train(ctx, queries, judgements)
	if err != nil {
		return err
	}
	if err := p.SaveModel(opts.model); err != nil {
		return err
	}

	summary := trainSummary{
		ModelVersion:  result.Model.Version(),
		Trees:         result.Model.NumTrees(),
		BestIteration: result.Report.BestIteration,
		StoppedEarly:  result.Report.StoppedEarly,
		TrainQueries:  len(result.TrainQueries),
		ValQueries:    len(result.ValQueries),
		TrainRows:     result.Dataset.Rows,
		Excluded:      result.Dataset.Excluded,
		Train:         result.TrainEval,
		Validation:    result.Validation,
		Baseline:      result.Baseline,
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "model %s: %d trees (best iteration %d) -> %s\n",
		summary.ModelVersion, summary.Trees, summary.BestIteration, opts.model)
	fmt.Fprintf(out, "train       %s\n", result.TrainEval)
	if result.Validation != nil {
		fmt.Fprintf(out, "validation  %s\n", result.Validation)
		fmt.Fprintf(out, "first-stage %s\n", result.Baseline)
	}
	if opts.report == "" {
		return nil
	}
	f, err := os.Create(opts.report)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	return errors.Join(writeJSON(f, summary), f.Close())
}

func loadJudgements(cmd *cobra.Command, a *app, opts trainOptions) ([]evaluation.Qrel, error) {
	ctx := cmd.Context()
	if !opts.qrelsFromDB && !opts.saveQrels {
		return readQrels(opts.qrels)
	}
	st, db, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	if opts.qrelsFromDB {
		return st.LoadQrels(ctx)
	}
	judgements, err := readQrels(opts.qrels)
	if err != nil {
		return nil, err
	}
	if err := st.SaveQrels(ctx, judgements); err != nil {
		return nil, err
	}
	return judgements, nil
}
