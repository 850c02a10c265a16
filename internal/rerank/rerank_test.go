package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/resilience"
)

type mapTexts map[string]string

func (m mapTexts) Text(id string) (string, bool) {
	t, ok := m[id]
	return t, ok
}

type fakeEncoder struct {
	calls  atomic.Int32
	scored atomic.Int32
	err    error
}

func (f *fakeEncoder) Name() string { return "fake" }

// Score uses the text length so the expected order is easy to reason about.
func (f *fakeEncoder) Score(_ context.Context, _ string, docs []string) ([]float64, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	f.scored.Add(int32(len(docs)))
	out := make([]float64, len(docs))
	for i, d := range docs {
		out[i] = float64(len(d))
	}
	return out, nil
}

func candidates(ids ...string) []retrieval.Candidate {
	out := make([]retrieval.Candidate, len(ids))
	for i, id := range ids {
		out[i] = retrieval.Candidate{QueryID: "q", DocID: id, Score: float64(len(ids) - i)}
	}
	return out
}

func ids(cs []retrieval.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.DocID
	}
	return out
}

func fastPolicy() resilience.Policy {
	return resilience.Policy{Name: "test", Retry: resilience.RetryConfig{MaxAttempts: 1}}
}

func TestDocText(t *testing.T) {
	assert.Equal(t, "Title: Paris Body: capital city Keywords: france", DocText("Paris", "capital city", "france"))
	assert.Equal(t, "Title:  Body:  Keywords: ", DocText("", "", ""))
}

func TestRerankSortsHeadAndKeepsTail(t *testing.T) {
	texts := mapTexts{"a": "x", "b": "xxx", "c": "xx", "d": "xxxxxxxx"}
	enc := &fakeEncoder{}
	r := New(config.RerankConfig{Depth: 3}, enc, texts, WithPolicy(fastPolicy()))

	out, err := r.Rerank(context.Background(), "query", candidates("a", "b", "c", "d"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a", "d"}, ids(out))
	assert.Equal(t, 1.0, out[3].Score, "tail keeps its first-stage score")
}

func TestRerankUsesCache(t *testing.T) {
	m := metrics.NewUnregistered()
	enc := &fakeEncoder{}
	r := New(config.RerankConfig{Depth: 10}, enc, mapTexts{"a": "1", "b": "22"},
		WithPolicy(fastPolicy()), WithMetrics(m))

	_, err := r.Rerank(context.Background(), "q", candidates("a", "b"))
	require.NoError(t, err)
	_, err = r.Rerank(context.Background(), "q", candidates("b", "a"))
	require.NoError(t, err)

	assert.Equal(t, int32(1), enc.calls.Load())
	assert.Equal(t, int32(2), enc.scored.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheMissesTotal))

	_, err = r.Rerank(context.Background(), "other query", candidates("a"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), enc.calls.Load(), "the query is part of the cache key")
}

func TestRerankFallsBackOnFailure(t *testing.T) {
	m := metrics.NewUnregistered()
	enc := &fakeEncoder{err: errors.New("boom")}
	r := New(config.RerankConfig{Depth: 10}, enc, mapTexts{}, WithPolicy(fastPolicy()), WithMetrics(m))

	in := candidates("a", "b")
	out, err := r.Rerank(context.Background(), "q", in)
	require.Error(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RerankFailuresTotal.WithLabelValues("error")))
}

func TestRerankBreakerOpens(t *testing.T) {
	m := metrics.NewUnregistered()
	enc := &fakeEncoder{err: errors.New("down")}
	r := New(config.RerankConfig{
		Depth:            5,
		MaxRetries:       1,
		BreakerThreshold: 2,
		BreakerCooldown:  time.Hour,
	}, enc, mapTexts{}, WithMetrics(m))

	for i := 0; i < 2; i++ {
		_, err := r.Rerank(context.Background(), "q", candidates("a"))
		require.Error(t, err)
	}
	_, err := r.Rerank(context.Background(), "q", candidates("a"))
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), enc.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RerankFailuresTotal.WithLabelValues("circuit_open")))
	assert.Equal(t, float64(resilience.StateOpen), testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("cross-encoder")))
}

func TestRerankEmpty(t *testing.T) {
	enc := &fakeEncoder{}
	r := New(config.RerankConfig{Depth: 5}, enc, mapTexts{}, WithPolicy(fastPolicy()))
	out, err := r.Rerank(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, enc.calls.Load())
}

func TestSettings(t *testing.T) {
	r := New(config.RerankConfig{Depth: 5}, &fakeEncoder{}, mapTexts{})
	assert.Equal(t, "fake/depth=5", r.Settings())
	deeper := New(config.RerankConfig{Depth: 20}, &fakeEncoder{}, mapTexts{})
	assert.NotEqual(t, r.Settings(), deeper.Settings())
}

func TestHTTPEncoder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body scoreRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		if body.Query == "fail" {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		if body.Query == "short" {
			_ = json.NewEncoder(w).Encode(scoreResponse{Scores: []float64{1}})
			return
		}
		scores := make([]float64, len(body.Documents))
		for i, d := range body.Documents {
			scores[i] = float64(strings.Count(d, body.Query))
		}
		_ = json.NewEncoder(w).Encode(scoreResponse{Scores: scores})
	}))
	defer srv.Close()

	enc := NewHTTPEncoder(srv.URL, time.Second)
	scores, err := enc.Score(context.Background(), "a", []string{"aa", "b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 0, 1}, scores)

	_, err = enc.Score(context.Background(), "fail", []string{"x"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.True(t, retryable(err))

	_, err = enc.Score(context.Background(), "short", []string{"x", "y"})
	require.Error(t, err)
	assert.False(t, retryable(err))
}

func TestOverlapEncoder(t *testing.T) {
	enc := OverlapEncoder{Analyzer: analysis.NewStandard()}
	scores, err := enc.Score(context.Background(), "capital of france", []string{
		DocText("Paris", "Paris is the capital of France", ""),
		DocText("Lyon", "A city in France", ""),
		DocText("Tokyo", "Japan", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0.5, 0}, scores)
}

func TestRetryable(t *testing.T) {
	assert.False(t, retryable(resilience.ErrCircuitOpen))
	assert.False(t, retryable(context.Canceled))
	assert.False(t, retryable(&StatusError{Code: http.StatusBadRequest}))
	assert.True(t, retryable(&StatusError{Code: http.StatusTooManyRequests}))
	assert.True(t, retryable(errors.New("connection reset")))
}
