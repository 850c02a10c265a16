package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/rerank"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/postgres"
)

// stubEndpoint selects the offline term-overlap encoder instead of HTTP.
const stubEndpoint = "stub"

// indexSource is where a command gets its index from: a corpus to build in
// memory (which also provides document text for reranking) or a persisted
// segment.
type indexSource struct {
	corpus  string
	segment string
}

func (s *indexSource) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.corpus, "corpus", "", "Build the index from this JSONL corpus instead of loading a segment")
	cmd.Flags().StringVar(&s.segment, "index", "", "Index segment to load (default <index.dataDir>/index.seg)")
}

// openPipeline publishes an index into a new pipeline. texts is nil when
// the index came from a segment.
func (a *app) openPipeline(ctx context.Context, src indexSource, opts pipeline.Options) (*pipeline.Pipeline, *corpus.Store, error) {
	opts.Metrics = a.metrics
	p := pipeline.New(a.cfg, opts)
	if src.corpus != "" {
		texts, report, err := p.IndexCorpus(ctx, src.corpus, "")
		if err != nil {
			return nil, nil, err
		}
		slog.Info("corpus indexed",
			"documents", report.Build.Indexed,
			"malformed_lines", report.Read.Malformed,
			"duration", report.Duration,
		)
		return p, texts, nil
	}
	segment := src.segment
	if segment == "" {
		segment = a.cfg.Index.SegmentPath()
	}
	if err := p.LoadIndex(segment); err != nil {
		return nil, nil, err
	}
	return p, nil, nil
}

// installReranker wires the cross-encoder stage when rerank.enabled is set.
// Reranking needs document text, so it is skipped for segment-only runs.
func (a *app) installReranker(p *pipeline.Pipeline, texts *corpus.Store) {
	cfg := a.cfg.Rerank
	if !cfg.Enabled {
		return
	}
	if texts == nil {
		slog.Warn("rerank enabled but no corpus text is loaded; pass --corpus to rerank")
		return
	}
	var enc rerank.CrossEncoder
	if cfg.Endpoint == stubEndpoint {
		enc = rerank.OverlapEncoder{Analyzer: p.Analyzer()}
	} else {
		enc = rerank.NewHTTPEncoder(cfg.Endpoint, cfg.Timeout)
	}
	p.SetReranker(rerank.New(cfg, enc, texts, rerank.WithMetrics(a.metrics)))
	slog.Info("cross-encoder rerank enabled", "encoder", enc.Name(), "depth", cfg.Depth)
}

// openStore connects to Postgres and applies the schema. The caller closes
// the returned client.
func (a *app) openStore(ctx context.Context) (*store.Store, *postgres.Client, error) {
	db, err := postgres.New(ctx, a.cfg.Postgres)
	if err != nil {
		return nil, nil, err
	}
	st := store.New(db)
	if err := st.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return st, db, nil
}

func readQueries(path string) ([]dataset.Query, error) {
	queries, report, err := dataset.ReadQueriesFile(path)
	if err != nil {
		return nil, err
	}
	logSkipped("queries", path, report)
	return queries, nil
}

func readQrels(path string) ([]evaluation.Qrel, error) {
	qrels, report, err := dataset.ReadQrelsFile(path)
	if err != nil {
		return nil, err
	}
	logSkipped("qrels", path, report)
	return qrels, nil
}

func logSkipped(kind, path string, report dataset.Report) {
	if report.Malformed == 0 {
		return
	}
	slog.Warn("malformed rows skipped",
		"file", kind,
		"path", path,
		"rows", report.Rows,
		"malformed", report.Malformed,
		"first_error", report.Errors[0],
	)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
