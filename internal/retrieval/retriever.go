// Package retrieval generates the candidate set for a query: the union of
// the postings of every query term over the fields a scorer reads, scored
// and cut to the best N.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/scoring"
	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

// Query is an analysed query. Terms keeps duplicates.
type Query struct {
	ID    string
	Text  string
	Terms []string
}

type Candidate struct {
	QueryID string  `json:"query_id"`
	DocID   string  `json:"doc_id"`
	Score   float64 `json:"score"`
}

// SortCandidates orders by score descending, then doc id ascending.
func SortCandidates(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool { return worse(cs[j], cs[i]) })
}

// Search retrieves at most topN candidates for q from idx. A query without
// terms, or whose terms match nothing, yields an empty result and no error.
func Search(ctx context.Context, idx *index.FieldIndex, q Query, scorer scoring.Scorer, topN int) ([]Candidate, error) {
	if idx == nil || idx.TotalDocs() == 0 {
		return nil, apperrors.New(apperrors.ErrEmptyIndex, "retrieval.Search", "no documents to retrieve from")
	}
	if topN <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "retrieval.Search", "topN must be positive, got %d", topN)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matched := make(map[string]struct{})
	seenTerm := make(map[string]struct{}, len(q.Terms))
	for _, term := range q.Terms {
		if _, dup := seenTerm[term]; dup || term == "" {
			continue
		}
		seenTerm[term] = struct{}{}
		for _, f := range scorer.Fields() {
			for _, p := range idx.Lookup(term, f) {
				matched[p.DocID] = struct{}{}
			}
		}
	}
	if len(matched) == 0 {
		return []Candidate{}, nil
	}

	docIDs := make([]string, 0, len(matched))
	for id := range matched {
		docIDs = append(docIDs, id)
	}
	sort.Strings(docIDs)

	top := newTopN(topN)
	for i, id := range docIDs {
		if i%1024 == 1023 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		top.offer(Candidate{QueryID: q.ID, DocID: id, Score: scorer.Score(q.Terms, id)})
	}
	return top.sorted(), nil
}

// SearchAll runs Search for every query with at most workers in flight.
// Results are positional.
func SearchAll(ctx context.Context, idx *index.FieldIndex, queries []Query, scorer scoring.Scorer, topN, workers int) ([][]Candidate, error) {
	if workers <= 0 {
		workers = 1
	}
	results := make([][]Candidate, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, q := range queries {
		g.Go(func() error {
			cs, err := Search(gctx, idx, q, scorer, topN)
			if err != nil {
				return fmt.Errorf("query %s: %w", q.ID, err)
			}
			results[i] = cs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ScorerFunc binds a scorer to an index snapshot.
type ScorerFunc func(stats scoring.Stats) (scoring.Scorer, error)

type bound struct {
	idx    *index.FieldIndex
	scorer scoring.Scorer
}

// Retriever serves queries against whatever index is currently published in
// a Holder. The scorer is rebuilt once per newly published index.
type Retriever struct {
	holder  *index.Holder
	scorer  ScorerFunc
	workers int
	logger  *slog.Logger
	current atomic.Pointer[bound]
}

func New(holder *index.Holder, scorer ScorerFunc, workers int) *Retriever {
	if workers <= 0 {
		workers = 1
	}
	return &Retriever{
		holder:  holder,
		scorer:  scorer,
		workers: workers,
		logger:  slog.Default().With("component", "retriever"),
	}
}

// Snapshot pins the published index together with a scorer bound to it.
func (r *Retriever) Snapshot() (*index.FieldIndex, scoring.Scorer, error) {
	idx, err := r.holder.Current()
	if err != nil {
		return nil, nil, err
	}
	if b := r.current.Load(); b != nil && b.idx == idx {
		return b.idx, b.scorer, nil
	}
	s, err := r.scorer(idx)
	if err != nil {
		return nil, nil, fmt.Errorf("binding scorer: %w", err)
	}
	r.current.Store(&bound{idx: idx, scorer: s})
	r.logger.Debug("scorer bound to index", "scorer", s.Name(), "docs", idx.TotalDocs())
	return idx, s, nil
}

func (r *Retriever) Retrieve(ctx context.Context, q Query, topN int) ([]Candidate, error) {
	idx, s, err := r.Snapshot()
	if err != nil {
		return nil, err
	}
	return Search(ctx, idx, q, s, topN)
}

func (r *Retriever) RetrieveAll(ctx context.Context, queries []Query, topN int) ([][]Candidate, error) {
	idx, s, err := r.Snapshot()
	if err != nil {
		return nil, err
	}
	return SearchAll(ctx, idx, queries, s, topN, r.workers)
}
