package ltr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/features"
	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

var toyFeatures = []string{"signal", "noise"}

// toyDataset builds queries whose relevance follows the first feature. The
// most relevant documents come last so the initial ordering is poor. With
// invert the labels run the other way.
func toyDataset(queries, docs int, invert bool) Dataset {
	ds := Dataset{FeatureNames: toyFeatures}
	for q := 0; q < queries; q++ {
		g := Group{QueryID: fmt.Sprintf("q%02d", q)}
		for d := 0; d < docs; d++ {
			signal := float64(d) / float64(docs)
			label := 0.0
			switch {
			case signal >= 0.7:
				label = 2
			case signal >= 0.4:
				label = 1
			}
			if invert {
				label = 2 - label
			}
			g.DocIDs = append(g.DocIDs, fmt.Sprintf("d%02d", d))
			g.Features = append(g.Features, []float64{signal, float64((d*7+q*3)%docs) / float64(docs)})
			g.Labels = append(g.Labels, label)
		}
		ds.Groups = append(ds.Groups, g)
	}
	return ds
}

func testParams() Params {
	return Params{
		NumIterations:       30,
		LearningRate:        0.3,
		NumLeaves:           4,
		MinDataInLeaf:       2,
		MinSumHessianInLeaf: 0,
		MaxBin:              64,
		Subsample:           1,
		ColsampleByTree:     1,
		RegLambda:           1,
		Sigma:               1,
		TruncationLevel:     10,
		EvalAt:              []int{5},
		Seed:                7,
		Workers:             4,
	}
}

func TestBinMapper(t *testing.T) {
	m := newBinMapper([]float64{3, 1, 2, 2, 1}, 255)
	assert.Equal(t, []float64{1.5, 2.5}, m.uppers)
	assert.Equal(t, uint16(0), m.bin(1))
	assert.Equal(t, uint16(1), m.bin(2))
	assert.Equal(t, uint16(2), m.bin(3))
	assert.Equal(t, uint16(2), m.bin(100))

	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i)
	}
	q := newBinMapper(values, 4)
	assert.LessOrEqual(t, q.numBins(), 4)
	assert.IsIncreasing(t, q.uppers)

	constant := newBinMapper([]float64{5, 5, 5}, 16)
	assert.Equal(t, 1, constant.numBins())
}

func TestLambdaGroup(t *testing.T) {
	scores := []float64{0, 0}
	labels := []float64{0, 1}
	grad := make([]float64, 2)
	hess := make([]float64, 2)
	lambdaGroup(scores, labels, grad, hess, 1, 10)
	assert.Greater(t, grad[0], 0.0, "the irrelevant document is pushed down")
	assert.Less(t, grad[1], 0.0, "the relevant document is pushed up")
	assert.InDelta(t, 0, grad[0]+grad[1], 1e-12)
	assert.Greater(t, hess[0], 0.0)

	lambdaGroup(scores, []float64{0, 0}, grad, hess, 1, 10)
	assert.Equal(t, []float64{0, 0}, grad)
	assert.Equal(t, []float64{0, 0}, hess)
}

func TestGroupNDCG(t *testing.T) {
	assert.InDelta(t, 1, groupNDCG([]float64{2, 1}, []float64{1, 0}, 5), 1e-12)
	assert.Less(t, groupNDCG([]float64{1, 2}, []float64{1, 0}, 5), 1.0)
	assert.Equal(t, 1.0, groupNDCG([]float64{1, 2}, []float64{0, 0}, 5))
}

func TestTrainLearnsSeparableData(t *testing.T) {
	train := toyDataset(12, 10, false)
	val := toyDataset(4, 10, false)
	for i := range val.Groups {
		val.Groups[i].QueryID = "v" + val.Groups[i].QueryID
	}

	before := flatten(train).ndcg(5)
	var rounds int
	model, report, err := Train(context.Background(), train, val, testParams(), TrainOptions{
		OnIteration: func(Iteration) { rounds++ },
	})
	require.NoError(t, err)
	require.NotEmpty(t, model.Trees)
	assert.Equal(t, report.Iterations, rounds)
	assert.Greater(t, report.TrainNDCG, before)
	assert.Greater(t, report.BestNDCG, 0.9)

	high, err := model.Predict([]float64{0.9, 0.1})
	require.NoError(t, err)
	low, err := model.Predict([]float64{0.1, 0.1})
	require.NoError(t, err)
	assert.Greater(t, high, low)
}

func TestTrainIsDeterministic(t *testing.T) {
	p := testParams()
	p.Subsample = 0.8
	p.ColsampleByTree = 0.5
	train := toyDataset(10, 10, false)

	a, _, err := Train(context.Background(), train, Dataset{}, p, TrainOptions{})
	require.NoError(t, err)
	b, _, err := Train(context.Background(), train, Dataset{}, p, TrainOptions{})
	require.NoError(t, err)
	assert.Equal(t, a.Version(), b.Version())
}

func TestEarlyStoppingTruncatesModel(t *testing.T) {
	p := testParams()
	p.NumIterations = 60
	p.EarlyStoppingRounds = 3
	train := toyDataset(10, 10, false)
	val := toyDataset(4, 10, true)

	model, report, err := Train(context.Background(), train, val, p, TrainOptions{})
	require.NoError(t, err)
	assert.Less(t, report.Iterations, p.NumIterations)
	assert.Len(t, model.Trees, report.BestIteration+1)
	assert.Equal(t, report.BestIteration, model.BestIteration)
}

func TestTrainRejectsBadInput(t *testing.T) {
	_, _, err := Train(context.Background(), Dataset{FeatureNames: toyFeatures}, Dataset{}, testParams(), TrainOptions{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	p := testParams()
	p.NumLeaves = 1
	_, _, err = Train(context.Background(), toyDataset(2, 5, false), Dataset{}, p, TrainOptions{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = Train(ctx, toyDataset(2, 5, false), Dataset{}, testParams(), TrainOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPredictArityMismatch(t *testing.T) {
	m := &Model{FeatureNames: toyFeatures}
	_, err := m.Predict([]float64{1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	model, _, err := Train(context.Background(), toyDataset(6, 8, false), Dataset{}, testParams(), TrainOptions{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "models", "model.json")
	require.NoError(t, model.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, model.Version(), loaded.Version())
	for _, x := range [][]float64{{0.05, 0.3}, {0.5, 0.9}, {0.95, 0}} {
		want, _ := model.Predict(x)
		got, err := loaded.Predict(x)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"format":"lambdamart/v1","trees":[`), 0o644))
	_, err = Load(bad)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	old := filepath.Join(dir, "old.json")
	require.NoError(t, os.WriteFile(old, []byte(`{"format":"gbdt/v0"}`), 0o644))
	_, err = Load(old)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSlot(t *testing.T) {
	var slot Slot
	_, err := slot.Predict([]float64{1, 2})
	assert.ErrorIs(t, err, apperrors.ErrModelNotTrained)

	_, _, err = slot.Train(context.Background(), Dataset{}, Dataset{}, testParams(), TrainOptions{})
	require.Error(t, err)
	_, err = slot.Model()
	assert.ErrorIs(t, err, apperrors.ErrModelNotTrained, "a failed run publishes nothing")

	m, _, err := slot.Train(context.Background(), toyDataset(4, 6, false), Dataset{}, testParams(), TrainOptions{})
	require.NoError(t, err)
	current, err := slot.Model()
	require.NoError(t, err)
	assert.Same(t, m, current)
}

func TestNewDatasetExcludesUnlabelled(t *testing.T) {
	qrels, _, err := evaluation.FromRows([]evaluation.Qrel{
		{QueryID: "1", DocID: "a", Label: 2},
		{QueryID: "1", DocID: "b", Label: 0},
		{QueryID: "2", DocID: "c", Label: 1},
	})
	require.NoError(t, err)
	vectors := []features.Vector{
		{QueryID: "2", DocID: "c", Features: []float64{1, 1}},
		{QueryID: "1", DocID: "a", Features: []float64{3, 1}},
		{QueryID: "1", DocID: "x", Features: []float64{0, 0}},
		{QueryID: "1", DocID: "b", Features: []float64{1, 0}},
	}

	ds, report, err := NewDataset(toyFeatures, vectors, qrels)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Rows)
	assert.Equal(t, 1, report.Excluded)
	require.Len(t, report.Mismatches, 1)
	assert.ErrorIs(t, report.Mismatches[0], apperrors.ErrLabelMismatch)

	assert.Equal(t, []string{"2", "1"}, ds.QueryIDs(), "groups keep first-seen order")
	assert.Equal(t, []string{"a", "b"}, ds.Groups[1].DocIDs)
	assert.Equal(t, []float64{2, 0}, ds.Groups[1].Labels)

	_, _, err = NewDataset(toyFeatures, []features.Vector{{QueryID: "1", DocID: "a", Features: []float64{1}}}, qrels)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSplitQueries(t *testing.T) {
	ids := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		ids = append(ids, fmt.Sprintf("%d", i))
	}
	ids = append(ids, "3", "7")

	train, val := SplitQueries(ids, 0.2, 42)
	assert.Len(t, val, 10)
	assert.Len(t, train, 40)
	seen := make(map[string]bool)
	for _, id := range append(append([]string(nil), train...), val...) {
		assert.False(t, seen[id], "query %s appears twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, 50)

	train2, val2 := SplitQueries(ids, 0.2, 42)
	assert.Equal(t, train, train2)
	assert.Equal(t, val, val2)

	_, val3 := SplitQueries(ids, 0.2, 43)
	assert.NotEqual(t, val, val3)

	train, val = SplitQueries([]string{"a", "b"}, 0.01, 1)
	assert.Len(t, train, 1)
	assert.Len(t, val, 1)

	train, val = SplitQueries([]string{"a"}, 0.5, 1)
	assert.Equal(t, []string{"a"}, train)
	assert.Empty(t, val)

	train, val = SplitQueries(ids, 0, 1)
	assert.Len(t, train, 50)
	assert.Empty(t, val)
}

func TestSplitDatasetMatchesQrelsPartition(t *testing.T) {
	ds := toyDataset(6, 3, false)
	_, valIDs := SplitQueries(ds.QueryIDs(), 0.34, 9)
	train, val := SplitDataset(ds, valIDs)
	assert.Equal(t, ds.Rows(), train.Rows()+val.Rows())
	assert.ElementsMatch(t, valIDs, val.QueryIDs())
}
