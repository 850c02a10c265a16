// Package features turns a candidate set into learning-to-rank input: one
// vector per (query, candidate) with one slot per scorer, in the order the
// scorers were declared.
package features

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/scoring"
	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

type Vector struct {
	QueryID  string    `json:"query_id"`
	DocID    string    `json:"doc_id"`
	Features []float64 `json:"features"`
}

// Fuser scores candidates with an ordered list of scorers.
type Fuser struct {
	scorers []scoring.Scorer
}

func NewFuser(scorers ...scoring.Scorer) (*Fuser, error) {
	if len(scorers) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "features.NewFuser", "at least one scorer is required")
	}
	for i, s := range scorers {
		if s == nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "features.NewFuser", "scorer %d is nil", i)
		}
	}
	return &Fuser{scorers: append([]scoring.Scorer(nil), scorers...)}, nil
}

// Names returns the scorer names in slot order.
func (f *Fuser) Names() []string {
	names := make([]string, len(f.scorers))
	for i, s := range f.scorers {
		names[i] = s.Name()
	}
	return names
}

func (f *Fuser) Arity() int {
	return len(f.scorers)
}

// Fuse returns one vector per doc id, in input order. A scorer that does not
// cover a document contributes an explicit 0; non-finite scores become 0.
func (f *Fuser) Fuse(q retrieval.Query, docIDs []string) []Vector {
	vectors := make([]Vector, len(docIDs))
	for i, id := range docIDs {
		feats := make([]float64, len(f.scorers))
		for j, s := range f.scorers {
			feats[j] = finite(s.Score(q.Terms, id))
		}
		vectors[i] = Vector{QueryID: q.ID, DocID: id, Features: feats}
	}
	return vectors
}

func (f *Fuser) FuseCandidates(q retrieval.Query, candidates []retrieval.Candidate) []Vector {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.DocID
	}
	return f.Fuse(q, ids)
}

// FuseAll fuses every query's candidates concurrently. candidates[i] belongs
// to queries[i].
func (f *Fuser) FuseAll(ctx context.Context, queries []retrieval.Query, candidates [][]retrieval.Candidate, workers int) ([][]Vector, error) {
	if len(queries) != len(candidates) {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "features.FuseAll", "%d queries but %d candidate sets", len(queries), len(candidates))
	}
	if workers <= 0 {
		workers = 1
	}
	out := make([][]Vector, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("fusing query %s: %w", queries[i].ID, err)
			}
			out[i] = f.FuseCandidates(queries[i], candidates[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
