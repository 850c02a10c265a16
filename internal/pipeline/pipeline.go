// Package pipeline wires the ranking stages together: index build, candidate
// retrieval, feature fusion, LambdaMART training and inference, optional
// cross-encoder reranking and submission output.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/index/segment"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/ltr"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/rerank"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/scoring"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/tracing"
)

type Options struct {
	// Analyzer defaults to analysis.NewStandard().
	Analyzer analysis.Analyzer
	Metrics  *metrics.Metrics
	Reranker *rerank.Reranker
	Cache    *cache.RankingCache
	Logger   *slog.Logger
}

type Pipeline struct {
	cfg       *config.Config
	analyzer  analysis.Analyzer
	holder    *index.Holder
	slot      *ltr.Slot
	retriever *retrieval.Retriever
	metrics   *metrics.Metrics
	cache     *cache.RankingCache
	logger    *slog.Logger

	mu       sync.RWMutex
	indexID  string
	reranker *rerank.Reranker
	stage    Stage
	queries  map[string]Stage
}

func New(cfg *config.Config, opts Options) *Pipeline {
	if opts.Analyzer == nil {
		opts.Analyzer = analysis.NewStandard()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewUnregistered()
	}
	if opts.Logger == nil {
		opts.Logger = logger.WithComponent("pipeline")
	}
	holder := &index.Holder{}
	scoringCfg := cfg.Scoring
	primary := cfg.Retrieval.Primary
	return &Pipeline{
		cfg:      cfg,
		analyzer: opts.Analyzer,
		holder:   holder,
		slot:     &ltr.Slot{},
		retriever: retrieval.New(holder, func(stats scoring.Stats) (scoring.Scorer, error) {
			return scoring.ByName(primary, stats, scoringCfg)
		}, cfg.Retrieval.Workers),
		metrics:  opts.Metrics,
		cache:    opts.Cache,
		logger:   opts.Logger,
		reranker: opts.Reranker,
		queries:  make(map[string]Stage),
	}
}

func (p *Pipeline) Holder() *index.Holder { return p.holder }

func (p *Pipeline) Slot() *ltr.Slot { return p.slot }

func (p *Pipeline) Analyzer() analysis.Analyzer { return p.analyzer }

// SetReranker installs or removes (nil) the cross-encoder stage.
func (p *Pipeline) SetReranker(r *rerank.Reranker) {
	p.mu.Lock()
	p.reranker = r
	p.mu.Unlock()
}

// Stage is the furthest stage the pipeline as a whole has reached.
func (p *Pipeline) Stage() Stage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stage
}

// QueryStage reports how far one query has progressed.
func (p *Pipeline) QueryStage(queryID string) Stage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if s, ok := p.queries[queryID]; ok {
		return s
	}
	return p.stage.min(StageIndexed)
}

func (s Stage) min(o Stage) Stage {
	if s < o {
		return s
	}
	return o
}

func (p *Pipeline) advance(to Stage, queryIDs ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if to > p.stage {
		p.stage = to
	}
	for _, id := range queryIDs {
		if to > p.queries[id] {
			p.queries[id] = to
		}
	}
}

// BuildIndex builds a field index from analysed documents and publishes it.
// Queries tracked so far fall back to StageIndexed.
func (p *Pipeline) BuildIndex(ctx context.Context, docs []index.Document) (index.BuildReport, error) {
	ctx, span, end := p.span(ctx, "pipeline.build_index")
	defer end()

	idx, report, err := index.Build(ctx, docs, index.BuildOptions{
		Workers:   p.cfg.Index.Workers,
		BatchSize: p.cfg.Index.BatchSize,
		Logger:    p.logger,
	})
	if err != nil {
		return report, fmt.Errorf("building index: %w", err)
	}
	p.metrics.DocsIndexedTotal.Add(float64(report.Indexed))
	if report.Skipped > 0 {
		p.metrics.DocsSkippedTotal.WithLabelValues("malformed").Add(float64(report.Skipped))
	}
	p.metrics.IndexBuildDuration.Observe(report.Duration.Seconds())
	span.SetAttr("docs", report.Indexed)
	p.PublishIndex(idx)
	return report, nil
}

// PublishIndex swaps in idx for all subsequent queries.
func (p *Pipeline) PublishIndex(idx *index.FieldIndex) {
	id := p.identify(idx)
	p.mu.Lock()
	p.holder.Publish(idx)
	p.indexID = id
	p.stage = StageIndexed
	p.queries = make(map[string]Stage)
	p.mu.Unlock()
	p.metrics.IndexTerms.Set(float64(idx.NumTerms()))
	p.logger.Info("index published", "docs", idx.TotalDocs(), "terms", idx.NumTerms(), "index_id", id)
}

// IndexID identifies the published index by document count and the CRC32 of
// its segment encoding. Equal contents give equal ids across processes.
func (p *Pipeline) IndexID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.indexID
}

func (p *Pipeline) identify(idx *index.FieldIndex) string {
	data, err := segment.Encode(idx)
	if err != nil {
		p.logger.Warn("index not encodable, using a one-off id", "error", err)
		return fmt.Sprintf("%d.t%d", idx.TotalDocs(), time.Now().UnixNano())
	}
	return fmt.Sprintf("%d.%08x", idx.TotalDocs(), crc32.ChecksumIEEE(data))
}

// cacheScope binds cached rankings to the model, the published index and
// every setting that changes the final order.
func (p *Pipeline) cacheScope(version string) cache.Scope {
	p.mu.RLock()
	id, rr := p.indexID, p.reranker
	p.mu.RUnlock()
	rerankSettings := "off"
	if rr != nil {
		rerankSettings = rr.Settings()
	}
	r := p.cfg.Retrieval
	raw := fmt.Sprintf("primary=%s|features=%v|top=%d|scoring=%+v|rerank=%s",
		r.Primary, r.Features, r.TopN, p.cfg.Scoring, rerankSettings)
	sum := sha256.Sum256([]byte(raw))
	return cache.Scope{ModelVersion: version, Index: id, Settings: hex.EncodeToString(sum[:8])}
}

// IndexReport summarises IndexCorpus.
type IndexReport struct {
	Read     corpus.ReadReport
	Build    index.BuildReport
	Segment  string
	Duration time.Duration
}

// IndexCorpus reads a JSONL corpus, builds and publishes the index and, when
// segmentPath is not empty, persists it. The returned store serves raw text
// to the reranker.
func (p *Pipeline) IndexCorpus(ctx context.Context, corpusPath, segmentPath string) (*corpus.Store, IndexReport, error) {
	start := time.Now()
	var report IndexReport

	records, read, err := corpus.ReadFile(ctx, corpusPath, p.logger)
	report.Read = read
	if err != nil {
		return nil, report, err
	}
	if read.Malformed > 0 {
		p.metrics.DocsSkippedTotal.WithLabelValues("unparseable").Add(float64(read.Malformed))
	}
	docs, err := corpus.AnalyzeAll(ctx, records, p.analyzer, p.cfg.Index.Workers)
	if err != nil {
		return nil, report, fmt.Errorf("analysing corpus: %w", err)
	}
	report.Build, err = p.BuildIndex(ctx, docs)
	if err != nil {
		return nil, report, err
	}
	if segmentPath != "" {
		if err := p.SaveIndex(segmentPath); err != nil {
			return nil, report, err
		}
		report.Segment = segmentPath
	}
	report.Duration = time.Since(start)
	return corpus.NewStore(records), report, nil
}

func (p *Pipeline) SaveIndex(path string) error {
	idx, err := p.holder.Current()
	if err != nil {
		return err
	}
	if err := segment.Write(path, idx); err != nil {
		return fmt.Errorf("writing segment: %w", err)
	}
	p.logger.Info("index segment written", "path", path)
	return nil
}

func (p *Pipeline) LoadIndex(path string) error {
	idx, err := segment.Read(path)
	if err != nil {
		return fmt.Errorf("loading segment %s: %w", path, err)
	}
	p.PublishIndex(idx)
	return nil
}

// LoadModel installs a persisted model.
func (p *Pipeline) LoadModel(path string) (*ltr.Model, error) {
	m, err := p.slot.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading model %s: %w", path, err)
	}
	p.logger.Info("model loaded", "path", path, "version", m.Version(), "trees", m.NumTrees())
	return m, nil
}

func (p *Pipeline) SaveModel(path string) error {
	m, err := p.slot.Model()
	if err != nil {
		return err
	}
	if err := m.Save(path); err != nil {
		return err
	}
	p.logger.Info("model saved", "path", path, "version", m.Version())
	return nil
}

// span opens a child span when ctx already carries one, otherwise a root
// span whose tree is logged on end when tracing is enabled.
func (p *Pipeline) span(ctx context.Context, name string) (context.Context, *tracing.Span, func()) {
	if tracing.SpanFromContext(ctx) != nil {
		ctx, s := tracing.StartChildSpan(ctx, name)
		return ctx, s, s.End
	}
	traceID, ok := logger.QueryIDFromContext(ctx)
	if !ok {
		traceID = strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	ctx, s := tracing.StartSpan(ctx, name, traceID)
	return ctx, s, func() {
		s.End()
		if p.cfg.Tracing.Enabled {
			s.Log(p.logger)
		}
	}
}
