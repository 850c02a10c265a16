// Package store persists relevance judgements and ranking runs in
// PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/postgres"
)

// Schema creates the tables used by Store. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS qrels (
    query_id  TEXT    NOT NULL,
    doc_id    TEXT    NOT NULL,
    relevance INTEGER NOT NULL,
    PRIMARY KEY (query_id, doc_id)
);
CREATE TABLE IF NOT EXISTS ranking_runs (
    id            BIGSERIAL PRIMARY KEY,
    model_version TEXT        NOT NULL,
    report        JSONB       NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS ranking_results (
    run_id   BIGINT           NOT NULL REFERENCES ranking_runs(id) ON DELETE CASCADE,
    query_id TEXT             NOT NULL,
    rank     INTEGER          NOT NULL,
    doc_id   TEXT             NOT NULL,
    score    DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (run_id, query_id, rank)
);
`

// Result is one ranked document of a run.
type Result struct {
	QueryID string
	Rank    int
	DocID   string
	Score   float64
}

// Run is a stored ranking pass with its evaluation report, if any.
type Run struct {
	ID           int64
	ModelVersion string
	Report       *evaluation.Report
	CreatedAt    time.Time
}

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: logger.WithComponent("run-store"),
	}
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// SaveQrels upserts judgements; a repeated (query, doc) pair takes the new
// relevance.
func (s *Store) SaveQrels(ctx context.Context, rows []evaluation.Qrel) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO qrels (query_id, doc_id, relevance) VALUES ($1, $2, $3)
			ON CONFLICT (query_id, doc_id) DO UPDATE SET relevance = EXCLUDED.relevance`)
		if err != nil {
			return fmt.Errorf("preparing qrel insert: %w", err)
		}
		defer stmt.Close()
		for _, q := range rows {
			if _, err := stmt.ExecContext(ctx, q.QueryID, q.DocID, q.Label); err != nil {
				return fmt.Errorf("inserting qrel %s/%s: %w", q.QueryID, q.DocID, err)
			}
		}
		return nil
	})
}

func (s *Store) LoadQrels(ctx context.Context) ([]evaluation.Qrel, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT query_id, doc_id, relevance FROM qrels ORDER BY query_id, doc_id`)
	if err != nil {
		return nil, fmt.Errorf("querying qrels: %w", err)
	}
	defer rows.Close()

	var out []evaluation.Qrel
	for rows.Next() {
		var q evaluation.Qrel
		if err := rows.Scan(&q.QueryID, &q.DocID, &q.Label); err != nil {
			return nil, fmt.Errorf("scanning qrel row: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// SaveRun stores a run header and all of its results in one transaction and
// returns the run id.
func (s *Store) SaveRun(ctx context.Context, modelVersion string, report *evaluation.Report, results []Result) (int64, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("marshaling report: %w", err)
	}
	var runID int64
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO ranking_runs (model_version, report, created_at) VALUES ($1, $2, $3) RETURNING id`,
			modelVersion, data, time.Now().UTC(),
		).Scan(&runID)
		if err != nil {
			return fmt.Errorf("inserting run: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO ranking_results (run_id, query_id, rank, doc_id, score) VALUES ($1, $2, $3, $4, $5)`)
		if err != nil {
			return fmt.Errorf("preparing result insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range results {
			if _, err := stmt.ExecContext(ctx, runID, r.QueryID, r.Rank, r.DocID, r.Score); err != nil {
				return fmt.Errorf("inserting result %s#%d: %w", r.QueryID, r.Rank, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("run saved", "run_id", runID, "model_version", modelVersion, "results", len(results))
	return runID, nil
}

// LatestRun returns the newest run, or nil when none exists.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	var run Run
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, model_version, report, created_at FROM ranking_runs ORDER BY created_at DESC, id DESC LIMIT 1`,
	).Scan(&run.ID, &run.ModelVersion, &data, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest run: %w", err)
	}
	if string(data) != "null" {
		run.Report = &evaluation.Report{}
		if err := json.Unmarshal(data, run.Report); err != nil {
			return nil, fmt.Errorf("unmarshaling report: %w", err)
		}
	}
	return &run, nil
}

func (s *Store) RunResults(ctx context.Context, runID int64) ([]Result, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT query_id, rank, doc_id, score FROM ranking_results WHERE run_id = $1 ORDER BY query_id, rank`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying run results: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.QueryID, &r.Rank, &r.DocID, &r.Score); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
