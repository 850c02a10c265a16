package rerank

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/resilience"
)

const defaultCacheSize = 10000

// TextSource resolves a document id to the text handed to the encoder.
type TextSource interface {
	Text(docID string) (string, bool)
}

type Reranker struct {
	encoder CrossEncoder
	texts   TextSource
	depth   int
	cache   *lru.Cache[string, float64]
	policy  resilience.Policy
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Reranker)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reranker) { r.metrics = m }
}

// WithPolicy replaces the retry, breaker and timeout policy built from
// config.
func WithPolicy(p resilience.Policy) Option {
	return func(r *Reranker) { r.policy = p }
}

func New(cfg config.RerankConfig, encoder CrossEncoder, texts TextSource, opts ...Option) *Reranker {
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, _ := lru.New[string, float64](size)
	r := &Reranker{
		encoder: encoder,
		texts:   texts,
		depth:   cfg.Depth,
		cache:   cache,
		logger:  logger.WithComponent("rerank"),
	}
	r.policy = resilience.Policy{
		Name:    "cross-encoder",
		Timeout: cfg.Timeout,
		Retry: resilience.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			Retryable:   retryable,
		},
		Breaker: resilience.NewCircuitBreaker("cross-encoder", resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.BreakerThreshold,
			ResetTimeout:     cfg.BreakerCooldown,
			OnStateChange:    r.observeState,
		}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Settings describes what changes the reranked order: the encoder and the
// rerank depth.
func (r *Reranker) Settings() string {
	return fmt.Sprintf("%s/depth=%d", r.encoder.Name(), r.depth)
}

func (r *Reranker) observeState(name string, to resilience.State) {
	if r.metrics != nil {
		r.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
	}
}

// Rerank re-scores the first depth candidates with the encoder and sorts
// them by that score (doc id breaks ties). Candidates past depth keep their
// order and scores. On failure the input is returned unchanged together with
// the error so callers can fall back to it.
func (r *Reranker) Rerank(ctx context.Context, queryText string, ranked []retrieval.Candidate) ([]retrieval.Candidate, error) {
	depth := len(ranked)
	if r.depth > 0 {
		depth = min(depth, r.depth)
	}
	if depth == 0 {
		return ranked, nil
	}
	head := append([]retrieval.Candidate(nil), ranked[:depth]...)

	scores := make([]float64, len(head))
	var missIdx []int
	var missText []string
	for i, c := range head {
		text, ok := r.texts.Text(c.DocID)
		if !ok {
			text = DocText("", "", "")
		}
		key := r.key(queryText, text)
		if s, ok := r.cache.Get(key); ok {
			scores[i] = s
			continue
		}
		missIdx = append(missIdx, i)
		missText = append(missText, text)
	}
	if r.metrics != nil {
		r.metrics.CacheHitsTotal.Add(float64(len(head) - len(missIdx)))
		r.metrics.CacheMissesTotal.Add(float64(len(missIdx)))
	}

	if len(missIdx) > 0 {
		fresh, err := r.score(ctx, queryText, missText)
		if err != nil {
			r.recordFailure(err)
			logger.FromContext(ctx).Warn("cross-encoder rerank failed, keeping first-stage order",
				"candidates", len(head),
				"error", err,
			)
			return ranked, fmt.Errorf("reranking %d candidates: %w", len(head), err)
		}
		for j, i := range missIdx {
			scores[i] = fresh[j]
			r.cache.Add(r.key(queryText, missText[j]), fresh[j])
		}
	}

	for i := range head {
		head[i].Score = scores[i]
	}
	sort.SliceStable(head, func(a, b int) bool {
		if head[a].Score != head[b].Score {
			return head[a].Score > head[b].Score
		}
		return head[a].DocID < head[b].DocID
	})
	return append(head, ranked[depth:]...), nil
}

func (r *Reranker) score(ctx context.Context, query string, docs []string) ([]float64, error) {
	var result atomic.Pointer[[]float64]
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		s, err := r.encoder.Score(ctx, query, docs)
		if err != nil {
			return err
		}
		if len(s) != len(docs) {
			return apperrors.Newf(apperrors.ErrInternal, "rerank.score",
				"encoder returned %d scores for %d documents", len(s), len(docs))
		}
		result.Store(&s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return *result.Load(), nil
}

func (r *Reranker) recordFailure(err error) {
	if r.metrics == nil {
		return
	}
	cause := "error"
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		cause = "circuit_open"
	case errors.Is(err, apperrors.ErrTimeout):
		cause = "timeout"
	}
	r.metrics.RerankFailuresTotal.WithLabelValues(cause).Inc()
}

func (r *Reranker) key(query, text string) string {
	sum := sha256.Sum256([]byte(r.encoder.Name() + "\x00" + query + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// retryable retries transport failures, timeouts and 5xx/429 answers.
func retryable(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return !errors.Is(err, apperrors.ErrInternal)
}
