package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/features"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/ltr"
	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

type TrainResult struct {
	Model        *ltr.Model
	Report       ltr.TrainReport
	Dataset      ltr.DatasetReport
	TrainQueries []string
	ValQueries   []string
	// TrainEval and Validation score the trained model on each side of the
	// split; Baseline scores first-stage retrieval on the validation side.
	TrainEval  evaluation.Report
	Validation *evaluation.Report
	Baseline   *evaluation.Report
}

// Train retrieves and featurizes every judged query, splits queries into
// train and validation sets, fits a model and publishes it to the slot.
func (p *Pipeline) Train(ctx context.Context, queries []dataset.Query, judgements []evaluation.Qrel) (TrainResult, error) {
	const op = "pipeline.Train"
	ctx, span, end := p.span(ctx, "pipeline.train")
	defer end()
	var result TrainResult

	qrels, overridden, err := evaluation.FromRows(judgements)
	if err != nil {
		return result, err
	}
	if overridden > 0 {
		p.logger.Warn("duplicate judgements, keeping the last label", "overridden", overridden)
	}

	judged := make([]dataset.Query, 0, len(queries))
	ids := make([]string, 0, len(queries))
	for _, q := range queries {
		if _, ok := qrels[q.ID]; ok {
			judged = append(judged, q)
			ids = append(ids, q.ID)
		}
	}
	if len(judged) == 0 {
		return result, apperrors.New(apperrors.ErrInvalidInput, op, "no query has relevance judgements")
	}

	result.TrainQueries, result.ValQueries = ltr.SplitQueries(ids, p.cfg.Ranker.ValidationRatio, p.cfg.Ranker.Seed)
	trainQrels, valQrels := qrels.Partition(result.ValQueries)
	p.logger.Info("queries split",
		"train_queries", len(result.TrainQueries),
		"val_queries", len(result.ValQueries),
		"train_judgements", trainQrels.Len(),
		"val_judgements", valQrels.Len(),
	)

	b, err := p.retrieve(ctx, judged)
	if err != nil {
		return result, err
	}
	if err := p.featurize(ctx, b); err != nil {
		return result, err
	}

	var flat []features.Vector
	for _, vs := range b.vectors {
		flat = append(flat, vs...)
	}
	ds, dsReport, err := ltr.NewDataset(b.names, flat, qrels)
	result.Dataset = dsReport
	if err != nil {
		return result, err
	}
	if dsReport.Excluded > 0 {
		p.metrics.LabelMismatchesTotal.Add(float64(dsReport.Excluded))
		p.logger.Warn("candidates without judgements excluded from training",
			"excluded", dsReport.Excluded,
			"example", dsReport.Mismatches[0],
		)
	}
	trainSet, valSet := ltr.SplitDataset(ds, result.ValQueries)
	if trainSet.Rows() == 0 {
		return result, apperrors.New(apperrors.ErrInvalidInput, op, "no judged candidate was retrieved for the training queries")
	}

	params := ltr.ParamsFromConfig(p.cfg.Ranker)
	params.Workers = p.cfg.Retrieval.Workers
	model, report, err := p.slot.Train(ctx, trainSet, valSet, params, ltr.TrainOptions{
		Logger: p.logger,
		OnIteration: func(it ltr.Iteration) {
			p.metrics.TrainingIterations.Inc()
			if !math.IsNaN(it.ValidNDCG) {
				p.metrics.ValidationNDCG.Set(it.ValidNDCG)
			}
		},
	})
	if err != nil {
		return result, fmt.Errorf("training ranker: %w", err)
	}
	result.Model, result.Report = model, report
	p.advance(StageTrained, b.ids()...)
	span.SetAttr("trees", model.NumTrees())
	span.SetAttr("model_version", model.Version())

	rankings, err := p.score(ctx, model, b)
	if err != nil {
		return result, err
	}
	run := RunOf(rankings)
	result.TrainEval = evaluation.Evaluate(run, trainQrels, p.cfg.Ranker.EvalAt)
	if len(result.ValQueries) > 0 {
		val := evaluation.Evaluate(run, valQrels, p.cfg.Ranker.EvalAt)
		base := evaluation.Evaluate(RunOf(p.firstStage(b)), valQrels, p.cfg.Ranker.EvalAt)
		result.Validation, result.Baseline = &val, &base
		p.logger.Info("validation", "model", val.String(), "first_stage", base.String())
	}
	return result, nil
}
