package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/features"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/scoring"
	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

// batch is one pass of a query set over a single pinned index snapshot, so
// candidates and features always agree on collection statistics.
type batch struct {
	idx        *index.FieldIndex
	queries    []retrieval.Query
	candidates [][]retrieval.Candidate
	vectors    [][]features.Vector
	names      []string
}

func (b *batch) ids() []string {
	ids := make([]string, len(b.queries))
	for i, q := range b.queries {
		ids[i] = q.ID
	}
	return ids
}

func (p *Pipeline) analyze(queries []dataset.Query) []retrieval.Query {
	out := make([]retrieval.Query, len(queries))
	for i, q := range queries {
		out[i] = retrieval.Query{ID: q.ID, Text: q.Text, Terms: p.analyzer.Analyze(q.Text)}
	}
	return out
}

// AnalyzeQuery returns the analysed terms of text, or ErrEmptyQuery when
// nothing survives analysis.
func (p *Pipeline) AnalyzeQuery(text string) ([]string, error) {
	terms := p.analyzer.Analyze(text)
	if len(terms) == 0 {
		return nil, apperrors.New(apperrors.ErrEmptyQuery, "pipeline.AnalyzeQuery",
			fmt.Sprintf("no terms left in %q after analysis", text))
	}
	return terms, nil
}

func (p *Pipeline) observeQuery(stage string, elapsed time.Duration) {
	p.metrics.QueryStageLatency.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (p *Pipeline) observeBatch(stage string, elapsed time.Duration) {
	p.metrics.BatchStageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (p *Pipeline) retrieve(ctx context.Context, queries []dataset.Query) (*batch, error) {
	ctx, span, end := p.span(ctx, "pipeline.retrieve")
	defer end()

	idx, primary, err := p.retriever.Snapshot()
	if err != nil {
		return nil, err
	}
	b := &batch{idx: idx, queries: p.analyze(queries)}
	start := time.Now()
	b.candidates, err = retrieval.SearchAll(ctx, idx, b.queries, primary, p.cfg.Retrieval.TopN, p.cfg.Retrieval.Workers)
	if err != nil {
		return nil, fmt.Errorf("retrieving candidates: %w", err)
	}
	p.observeBatch("retrieve", time.Since(start))

	total := 0
	for i, cs := range b.candidates {
		total += len(cs)
		p.metrics.CandidatesPerQuery.Observe(float64(len(cs)))
		if len(b.queries[i].Terms) == 0 {
			p.metrics.QueriesTotal.WithLabelValues("empty_query").Inc()
		}
	}
	span.SetAttr("queries", len(b.queries))
	span.SetAttr("candidates", total)
	p.advance(StageRetrieved, b.ids()...)
	return b, nil
}

func (p *Pipeline) featurize(ctx context.Context, b *batch) error {
	_, span, end := p.span(ctx, "pipeline.featurize")
	defer end()

	scorers, err := scoring.ByNames(p.cfg.Retrieval.Features, b.idx, p.cfg.Scoring)
	if err != nil {
		return fmt.Errorf("building feature scorers: %w", err)
	}
	fuser, err := features.NewFuser(scorers...)
	if err != nil {
		return err
	}
	start := time.Now()
	b.vectors, err = fuser.FuseAll(ctx, b.queries, b.candidates, p.cfg.Retrieval.Workers)
	if err != nil {
		return fmt.Errorf("fusing features: %w", err)
	}
	p.observeBatch("featurize", time.Since(start))
	b.names = fuser.Names()
	span.SetAttr("features", b.names)
	p.advance(StageFeaturized, b.ids()...)
	return nil
}

// Retrieve returns the first-stage candidates of every query, positionally.
func (p *Pipeline) Retrieve(ctx context.Context, queries []dataset.Query) ([][]retrieval.Candidate, error) {
	b, err := p.retrieve(ctx, queries)
	if err != nil {
		return nil, err
	}
	return b.candidates, nil
}

// Featurize retrieves candidates and returns their feature vectors together
// with the feature names in slot order.
func (p *Pipeline) Featurize(ctx context.Context, queries []dataset.Query) ([][]features.Vector, []string, error) {
	b, err := p.retrieve(ctx, queries)
	if err != nil {
		return nil, nil, err
	}
	if err := p.featurize(ctx, b); err != nil {
		return nil, nil, err
	}
	return b.vectors, b.names, nil
}
