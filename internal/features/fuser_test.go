package features

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/scoring"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

type fixedScorer struct {
	name   string
	scores map[string]float64
}

func (s fixedScorer) Name() string          { return s.name }
func (s fixedScorer) Fields() []index.Field { return index.Fields }
func (s fixedScorer) Score(_ []string, docID string) float64 {
	return s.scores[docID]
}

func TestFuseOneSlotPerScorerInDeclaredOrder(t *testing.T) {
	a := fixedScorer{name: "a", scores: map[string]float64{"d1": 1, "d2": 2}}
	b := fixedScorer{name: "b", scores: map[string]float64{"d1": 10}}
	f, err := NewFuser(a, b)
	require.NoError(t, err)

	got := f.Fuse(retrieval.Query{ID: "q"}, []string{"d2", "d1", "d9"})

	assert.Equal(t, []string{"a", "b"}, f.Names())
	require.Len(t, got, 3, "no candidate is dropped")
	assert.Equal(t, Vector{QueryID: "q", DocID: "d2", Features: []float64{2, 0}}, got[0])
	assert.Equal(t, Vector{QueryID: "q", DocID: "d1", Features: []float64{1, 10}}, got[1])
	assert.Equal(t, []float64{0, 0}, got[2].Features)
}

func TestFuseSwappingScorersSwapsSlots(t *testing.T) {
	idx, _, err := index.Build(context.Background(), []index.Document{
		index.NewDocument("d1", []string{"alpha", "beta"}, nil, []string{"gamma"}),
		index.NewDocument("d2", []string{"beta"}, nil, []string{"alpha", "gamma", "gamma"}),
		index.NewDocument("d3", []string{"delta"}, nil, []string{"epsilon"}),
	}, index.BuildOptions{})
	require.NoError(t, err)
	cfg := config.Default().Scoring
	names := []string{"tfidf", "bm25f", "pl2"}
	scorers, err := scoring.ByNames(names, idx, cfg)
	require.NoError(t, err)

	forward, err := NewFuser(scorers[0], scorers[1], scorers[2])
	require.NoError(t, err)
	swapped, err := NewFuser(scorers[2], scorers[1], scorers[0])
	require.NoError(t, err)

	q := retrieval.Query{ID: "q", Terms: []string{"alpha", "gamma"}}
	fv := forward.Fuse(q, []string{"d1", "d2"})
	sv := swapped.Fuse(q, []string{"d1", "d2"})
	for i := range fv {
		assert.Equal(t, fv[i].Features[0], sv[i].Features[2])
		assert.Equal(t, fv[i].Features[1], sv[i].Features[1])
		assert.Equal(t, fv[i].Features[2], sv[i].Features[0])
	}
	assert.Equal(t, []string{"pl2", "bm25f", "tfidf"}, swapped.Names())
}

func TestFuseSanitisesNonFinite(t *testing.T) {
	bad := fixedScorer{name: "bad", scores: map[string]float64{"d1": math.NaN(), "d2": math.Inf(1)}}
	f, err := NewFuser(bad)
	require.NoError(t, err)

	got := f.Fuse(retrieval.Query{}, []string{"d1", "d2"})
	assert.Equal(t, []float64{0}, got[0].Features)
	assert.Equal(t, []float64{0}, got[1].Features)
}

func TestNewFuserRejectsEmpty(t *testing.T) {
	_, err := NewFuser()
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = NewFuser(nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestFuseAll(t *testing.T) {
	s := fixedScorer{name: "s", scores: map[string]float64{"x": 1, "y": 2}}
	f, err := NewFuser(s)
	require.NoError(t, err)
	queries := []retrieval.Query{{ID: "1"}, {ID: "2"}}
	cands := [][]retrieval.Candidate{
		{{QueryID: "1", DocID: "x"}, {QueryID: "1", DocID: "y"}},
		{},
	}

	got, err := f.FuseAll(context.Background(), queries, cands, 4)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "y", got[0][1].DocID)
	assert.Equal(t, []float64{2}, got[0][1].Features)
	assert.Empty(t, got[1])

	_, err = f.FuseAll(context.Background(), queries, cands[:1], 4)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
