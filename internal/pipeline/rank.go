package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/ltr"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/logger"
)

// Ranking is the final ordered result list of one query.
type Ranking struct {
	QueryID      string                `json:"query_id"`
	ModelVersion string                `json:"model_version"`
	Results      []retrieval.Candidate `json:"results"`
	Reranked     bool                  `json:"reranked"`
	Cached       bool                  `json:"cached"`
}

func (r Ranking) DocIDs() []string {
	ids := make([]string, len(r.Results))
	for i, c := range r.Results {
		ids[i] = c.DocID
	}
	return ids
}

// score orders every candidate of the batch by model prediction. Ties break
// on doc id.
func (p *Pipeline) score(ctx context.Context, model *ltr.Model, b *batch) ([]Ranking, error) {
	_, span, end := p.span(ctx, "pipeline.score")
	defer end()
	start := time.Now()

	version := model.Version()
	rankings := make([]Ranking, len(b.queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.cfg.Retrieval.Workers, 1))
	for i := range b.queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			qstart := time.Now()
			vs := b.vectors[i]
			results := make([]retrieval.Candidate, len(vs))
			for j, v := range vs {
				s, err := model.Predict(v.Features)
				if err != nil {
					return fmt.Errorf("query %s doc %s: %w", v.QueryID, v.DocID, err)
				}
				results[j] = retrieval.Candidate{QueryID: v.QueryID, DocID: v.DocID, Score: s}
			}
			retrieval.SortCandidates(results)
			rankings[i] = Ranking{QueryID: b.queries[i].ID, ModelVersion: version, Results: results}
			p.observeQuery("score", time.Since(qstart))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	p.observeBatch("score", time.Since(start))
	span.SetAttr("model_version", version)
	p.advance(StageScored, b.ids()...)
	return rankings, nil
}

// firstStage turns retrieval output into rankings without a model.
func (p *Pipeline) firstStage(b *batch) []Ranking {
	rankings := make([]Ranking, len(b.queries))
	for i, q := range b.queries {
		rankings[i] = Ranking{
			QueryID:      q.ID,
			ModelVersion: "first-stage:" + p.cfg.Retrieval.Primary,
			Results:      b.candidates[i],
		}
	}
	return rankings
}

// rerank applies the cross-encoder to each ranking. A failed query keeps its
// model order; the failure is logged and counted, not returned.
func (p *Pipeline) rerank(ctx context.Context, b *batch, rankings []Ranking) error {
	p.mu.RLock()
	rr := p.reranker
	p.mu.RUnlock()
	if rr == nil {
		return nil
	}
	ctx, _, end := p.span(ctx, "pipeline.rerank")
	defer end()
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.cfg.Retrieval.Workers, 1))
	for i := range rankings {
		g.Go(func() error {
			qctx := logger.WithQueryID(gctx, rankings[i].QueryID)
			qstart := time.Now()
			out, err := rr.Rerank(qctx, b.queries[i].Text, rankings[i].Results)
			p.observeQuery("rerank", time.Since(qstart))
			if err != nil {
				return ctx.Err()
			}
			rankings[i].Results = out
			rankings[i].Reranked = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	p.observeBatch("rerank", time.Since(start))
	return nil
}

func (p *Pipeline) cut(rankings []Ranking, k int) {
	if k <= 0 {
		k = p.cfg.Retrieval.OutputK
	}
	for i := range rankings {
		if len(rankings[i].Results) > k {
			rankings[i].Results = rankings[i].Results[:k]
		}
	}
}

func (p *Pipeline) count(rankings ...Ranking) {
	for _, r := range rankings {
		label := "ranked"
		if len(r.Results) == 0 {
			label = "zero_result"
		}
		p.metrics.QueriesTotal.WithLabelValues(label).Inc()
	}
}

// Rank produces the final top OutputK ranking of every query with the
// published model. It fails with ErrModelNotTrained before doing any work
// when no model is available.
func (p *Pipeline) Rank(ctx context.Context, queries []dataset.Query) ([]Ranking, error) {
	model, err := p.slot.Model()
	if err != nil {
		return nil, err
	}
	ctx, span, end := p.span(ctx, "pipeline.rank")
	defer end()

	b, err := p.retrieve(ctx, queries)
	if err != nil {
		return nil, err
	}
	if err := p.featurize(ctx, b); err != nil {
		return nil, err
	}
	rankings, err := p.score(ctx, model, b)
	if err != nil {
		return nil, err
	}
	if err := p.rerank(ctx, b, rankings); err != nil {
		return nil, err
	}
	p.cut(rankings, 0)
	p.count(rankings...)
	span.SetAttr("queries", len(rankings))
	p.advance(StageRanked, b.ids()...)
	return rankings, nil
}

// RankBaseline ranks by the primary scorer alone.
func (p *Pipeline) RankBaseline(ctx context.Context, queries []dataset.Query) ([]Ranking, error) {
	ctx, _, end := p.span(ctx, "pipeline.rank_baseline")
	defer end()
	b, err := p.retrieve(ctx, queries)
	if err != nil {
		return nil, err
	}
	rankings := p.firstStage(b)
	p.cut(rankings, 0)
	p.count(rankings...)
	p.advance(StageRanked, b.ids()...)
	return rankings, nil
}

// RankQuery ranks a single query for online callers, returning at most k
// results (OutputK when k <= 0). Rankings are cached per model, index and
// ranking settings when a cache is configured. A query with no terms after
// analysis ranks to an empty result.
func (p *Pipeline) RankQuery(ctx context.Context, queryID, text string, k int) (Ranking, error) {
	model, err := p.slot.Model()
	if err != nil {
		p.metrics.QueriesTotal.WithLabelValues("error").Inc()
		return Ranking{}, err
	}
	if k <= 0 {
		k = p.cfg.Retrieval.OutputK
	}
	ctx = logger.WithQueryID(ctx, queryID)
	start := time.Now()
	defer func() { p.observeQuery("rank_query", time.Since(start)) }()

	ranking := Ranking{QueryID: queryID, ModelVersion: model.Version(), Results: []retrieval.Candidate{}}
	terms, err := p.AnalyzeQuery(text)
	if err != nil {
		p.metrics.QueriesTotal.WithLabelValues("empty_query").Inc()
		logger.FromContext(ctx).Debug("nothing to rank", "error", err)
		p.advance(StageRanked, queryID)
		return ranking, nil
	}

	compute := func() (cache.Ranking, error) {
		b, err := p.retrieve(ctx, []dataset.Query{{ID: queryID, Text: text}})
		if err != nil {
			return cache.Ranking{}, err
		}
		if err := p.featurize(ctx, b); err != nil {
			return cache.Ranking{}, err
		}
		rankings, err := p.score(ctx, model, b)
		if err != nil {
			return cache.Ranking{}, err
		}
		if err := p.rerank(ctx, b, rankings); err != nil {
			return cache.Ranking{}, err
		}
		p.cut(rankings, k)
		return cache.Ranking{Entries: toEntries(rankings[0].Results), Reranked: rankings[0].Reranked}, nil
	}

	var result cache.Ranking
	if p.cache != nil {
		scope := p.cacheScope(ranking.ModelVersion)
		result, ranking.Cached, err = p.cache.GetOrCompute(ctx, scope, terms, k, compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		p.metrics.QueriesTotal.WithLabelValues("error").Inc()
		logger.FromContext(ctx).Error("ranking query failed", "error", err)
		return Ranking{}, err
	}
	ranking.Results = fromEntries(queryID, result.Entries)
	ranking.Reranked = result.Reranked
	p.count(ranking)
	p.advance(StageRanked, queryID)
	return ranking, nil
}

func toEntries(cs []retrieval.Candidate) []cache.Entry {
	out := make([]cache.Entry, len(cs))
	for i, c := range cs {
		out[i] = cache.Entry{DocID: c.DocID, Score: c.Score}
	}
	return out
}

func fromEntries(queryID string, es []cache.Entry) []retrieval.Candidate {
	out := make([]retrieval.Candidate, len(es))
	for i, e := range es {
		out[i] = retrieval.Candidate{QueryID: queryID, DocID: e.DocID, Score: e.Score}
	}
	return out
}
