// Package stream serves rankings over Kafka: query events are read from the
// queries topic, ranked with the published model and written to the rankings
// topic keyed by query id.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/metrics"
)

// QueryEvent is one ranking request on the queries topic. K <= 0 asks for
// the configured output depth.
type QueryEvent struct {
	QueryID string `json:"query_id"`
	Query   string `json:"query"`
	K       int    `json:"k,omitempty"`
}

type Result struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// RankingEvent is published to the rankings topic for every handled query.
type RankingEvent struct {
	QueryID      string    `json:"query_id"`
	ModelVersion string    `json:"model_version"`
	Results      []Result  `json:"results"`
	Cached       bool      `json:"cached"`
	Reranked     bool      `json:"reranked"`
	RankedAt     time.Time `json:"ranked_at"`
}

var errMissingQueryID = errors.New("query event without query_id")

type Ranker interface {
	RankQuery(ctx context.Context, queryID, text string, k int) (pipeline.Ranking, error)
}

type Publisher interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// NewRankingEvent converts a pipeline ranking to its wire form.
func NewRankingEvent(r pipeline.Ranking, at time.Time) RankingEvent {
	results := make([]Result, len(r.Results))
	for i, c := range r.Results {
		results[i] = Result{DocID: c.DocID, Score: c.Score}
	}
	return RankingEvent{
		QueryID:      r.QueryID,
		ModelVersion: r.ModelVersion,
		Results:      results,
		Cached:       r.Cached,
		Reranked:     r.Reranked,
		RankedAt:     at.UTC(),
	}
}

// HandleMessage returns a Kafka MessageHandler that ranks each query event
// and publishes the result. Undecodable messages are logged and dropped so
// they do not block the partition; ranking and publish failures are returned
// and leave the offset uncommitted.
func HandleMessage(r Ranker, pub Publisher, m *metrics.Metrics) kafka.MessageHandler {
	log := logger.WithComponent("query-stream")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[QueryEvent](value)
		if err == nil && event.QueryID == "" {
			err = errMissingQueryID
		}
		if err != nil {
			log.Error("failed to decode query event",
				"error", err,
				"key", string(key),
			)
			count(m, "malformed")
			return nil
		}

		ctx = logger.WithQueryID(ctx, event.QueryID)
		ranking, err := r.RankQuery(ctx, event.QueryID, event.Query, event.K)
		if err != nil {
			count(m, "failed")
			return fmt.Errorf("ranking query %s: %w", event.QueryID, err)
		}

		out := NewRankingEvent(ranking, time.Now())
		if err := pub.Publish(ctx, kafka.Event{Key: event.QueryID, Value: out}); err != nil {
			count(m, "failed")
			return fmt.Errorf("publishing ranking for query %s: %w", event.QueryID, err)
		}
		count(m, "ranked")
		log.Debug("query ranked",
			slog.String("query_id", event.QueryID),
			slog.Int("results", len(out.Results)),
			slog.Bool("cached", out.Cached),
		)
		return nil
	}
}

func count(m *metrics.Metrics, outcome string) {
	if m != nil {
		m.StreamMessagesTotal.WithLabelValues(outcome).Inc()
	}
}
