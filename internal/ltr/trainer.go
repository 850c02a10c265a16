package ltr

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

// Params are the LambdaMART hyper-parameters. MaxDepth 0 leaves depth
// unbounded; EarlyStoppingRounds 0 disables early stopping.
type Params struct {
	NumIterations       int     `json:"num_iterations"`
	LearningRate        float64 `json:"learning_rate"`
	NumLeaves           int     `json:"num_leaves"`
	MaxDepth            int     `json:"max_depth"`
	MinDataInLeaf       int     `json:"min_data_in_leaf"`
	MinSumHessianInLeaf float64 `json:"min_sum_hessian_in_leaf"`
	MaxBin              int     `json:"max_bin"`
	Subsample           float64 `json:"subsample"`
	ColsampleByTree     float64 `json:"colsample_bytree"`
	RegAlpha            float64 `json:"reg_alpha"`
	RegLambda           float64 `json:"reg_lambda"`
	Sigma               float64 `json:"sigma"`
	TruncationLevel     int     `json:"truncation_level"`
	EvalAt              []int   `json:"eval_at"`
	EarlyStoppingRounds int     `json:"early_stopping_rounds"`
	Seed                uint64  `json:"seed"`
	Workers             int     `json:"-"`
}

func ParamsFromConfig(cfg config.RankerConfig) Params {
	return Params{
		NumIterations:       cfg.NumIterations,
		LearningRate:        cfg.LearningRate,
		NumLeaves:           cfg.NumLeaves,
		MaxDepth:            cfg.MaxDepth,
		MinDataInLeaf:       cfg.MinDataInLeaf,
		MinSumHessianInLeaf: cfg.MinSumHessianInLeaf,
		MaxBin:              cfg.MaxBin,
		Subsample:           cfg.Subsample,
		ColsampleByTree:     cfg.ColsampleByTree,
		RegAlpha:            cfg.RegAlpha,
		RegLambda:           cfg.RegLambda,
		Sigma:               cfg.Sigma,
		TruncationLevel:     cfg.TruncationLevel,
		EvalAt:              append([]int(nil), cfg.EvalAt...),
		EarlyStoppingRounds: cfg.EarlyStoppingRounds,
		Seed:                cfg.Seed,
	}
}

func (p Params) validate() error {
	switch {
	case p.NumIterations <= 0:
		return fmt.Errorf("num_iterations must be positive")
	case p.LearningRate <= 0:
		return fmt.Errorf("learning_rate must be positive")
	case p.NumLeaves < 2:
		return fmt.Errorf("num_leaves must be at least 2")
	case p.Sigma <= 0:
		return fmt.Errorf("sigma must be positive")
	case p.RegLambda < 0 || p.RegAlpha < 0:
		return fmt.Errorf("regularisation must be non-negative")
	}
	return nil
}

// evalK is the cutoff for validation NDCG.
func (p Params) evalK() int {
	if len(p.EvalAt) > 0 && p.EvalAt[0] > 0 {
		return p.EvalAt[0]
	}
	return 10
}

func (p Params) truncation() int {
	if p.TruncationLevel > 0 {
		return p.TruncationLevel
	}
	return math.MaxInt
}

// Iteration is passed to TrainOptions.OnIteration after every boosting
// round. ValidNDCG is NaN without a validation set.
type Iteration struct {
	Index     int
	TrainNDCG float64
	ValidNDCG float64
	Leaves    int
}

type TrainOptions struct {
	Logger      *slog.Logger
	OnIteration func(Iteration)
}

type TrainReport struct {
	Iterations    int
	BestIteration int
	BestNDCG      float64
	TrainNDCG     float64
	StoppedEarly  bool
	NoSplit       bool
	Duration      time.Duration
	History       []Iteration
}

// Train fits a LambdaMART model. When val has groups, validation
// NDCG@EvalAt[0] drives early stopping and the returned model is truncated
// to its best iteration. Training stops early when a tree cannot split.
func Train(ctx context.Context, train, val Dataset, p Params, opts TrainOptions) (*Model, TrainReport, error) {
	const op = "ltr.Train"
	start := time.Now()
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	var report TrainReport

	if err := p.validate(); err != nil {
		return nil, report, apperrors.New(apperrors.ErrInvalidInput, op, err.Error())
	}
	if train.Rows() == 0 {
		return nil, report, apperrors.New(apperrors.ErrInvalidInput, op, "training set is empty")
	}
	nf := train.NumFeatures()
	if nf == 0 {
		return nil, report, apperrors.New(apperrors.ErrInvalidInput, op, "training set has no features")
	}
	if len(val.Groups) > 0 && val.NumFeatures() != nf {
		return nil, report, apperrors.Newf(apperrors.ErrInvalidInput, op,
			"validation has %d features, training has %d", val.NumFeatures(), nf)
	}

	tr := flatten(train)
	va := flatten(val)
	matrix := newBinnedMatrix(tr.rows, nf, p.MaxBin)
	rng := newRand(p.Seed)

	model := &Model{FeatureNames: append([]string(nil), train.FeatureNames...), Params: p}
	grad := make([]float64, len(tr.rows))
	hess := make([]float64, len(tr.rows))
	k := p.evalK()
	bestNDCG := math.Inf(-1)
	bestIter := -1

	for it := 0; it < p.NumIterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, report, fmt.Errorf("%s: %w", op, err)
		}
		if err := tr.lambdas(ctx, grad, hess, p); err != nil {
			return nil, report, fmt.Errorf("%s: %w", op, err)
		}

		gr := &grower{
			p:        p,
			m:        &matrix,
			features: sampleIndices(rng, nf, p.ColsampleByTree),
			grad:     grad,
			hess:     hess,
		}
		tree, ok := gr.grow(sampleIndices(rng, len(tr.rows), p.Subsample))
		if !ok {
			report.NoSplit = true
			log.Info("no leaf meets the split requirements, stopping", "iteration", it)
			break
		}
		model.Trees = append(model.Trees, tree)
		tr.apply(tree)
		va.apply(tree)

		step := Iteration{Index: it, TrainNDCG: tr.ndcg(k), ValidNDCG: math.NaN(), Leaves: tree.NumLeaves()}
		if len(va.groups) > 0 {
			step.ValidNDCG = va.ndcg(k)
			if step.ValidNDCG > bestNDCG {
				bestNDCG, bestIter = step.ValidNDCG, it
			}
		}
		report.History = append(report.History, step)
		report.Iterations = it + 1
		if opts.OnIteration != nil {
			opts.OnIteration(step)
		}
		log.Debug("boosting round",
			"iteration", it,
			"leaves", step.Leaves,
			"train_ndcg", step.TrainNDCG,
			"valid_ndcg", step.ValidNDCG,
		)

		if len(va.groups) > 0 && p.EarlyStoppingRounds > 0 && it-bestIter >= p.EarlyStoppingRounds {
			report.StoppedEarly = true
			log.Info("early stopping", "iteration", it, "best_iteration", bestIter, "best_ndcg", bestNDCG)
			break
		}
	}

	if bestIter >= 0 {
		model.Trees = model.Trees[:bestIter+1]
		report.BestIteration = bestIter
		report.BestNDCG = bestNDCG
	} else {
		report.BestIteration = len(model.Trees) - 1
		report.BestNDCG = math.NaN()
	}
	model.BestIteration = report.BestIteration
	if n := report.BestIteration; n >= 0 && n < len(report.History) {
		report.TrainNDCG = report.History[n].TrainNDCG
	}
	report.Duration = time.Since(start)
	log.Info("training finished",
		"trees", len(model.Trees),
		"best_iteration", report.BestIteration,
		"best_ndcg", report.BestNDCG,
		"duration", report.Duration,
	)
	return model, report, nil
}

// flat keeps one dataset's rows contiguous with group offsets.
type flat struct {
	rows   [][]float64
	labels []float64
	scores []float64
	groups [][2]int
}

func flatten(d Dataset) *flat {
	f := &flat{}
	for _, g := range d.Groups {
		start := len(f.rows)
		f.rows = append(f.rows, g.Features...)
		f.labels = append(f.labels, g.Labels...)
		f.groups = append(f.groups, [2]int{start, len(f.rows)})
	}
	f.scores = make([]float64, len(f.rows))
	return f
}

func (f *flat) apply(t Tree) {
	for i, row := range f.rows {
		f.scores[i] += t.Predict(row)
	}
}

func (f *flat) ndcg(k int) float64 {
	if len(f.groups) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, g := range f.groups {
		sum += groupNDCG(f.scores[g[0]:g[1]], f.labels[g[0]:g[1]], k)
	}
	return sum / float64(len(f.groups))
}

// lambdas computes gradients per group in parallel; groups own disjoint
// ranges so the result does not depend on scheduling.
func (f *flat) lambdas(ctx context.Context, grad, hess []float64, p Params) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(max(p.Workers, 1))
	for _, grp := range f.groups {
		lo, hi := grp[0], grp[1]
		g.Go(func() error {
			lambdaGroup(f.scores[lo:hi], f.labels[lo:hi], grad[lo:hi], hess[lo:hi], p.Sigma, p.truncation())
			return nil
		})
	}
	return g.Wait()
}
