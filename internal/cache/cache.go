// Package cache memoises final rankings per (model version, index, ranking
// settings, analysed query, depth). The backing Store is Redis in deployments and an in-process LRU
// otherwise.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/metrics"
)

const keyPrefix = "rank:"

// Store is satisfied by *redis.Client and MemoryStore.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

type Entry struct {
	DocID string  `json:"d"`
	Score float64 `json:"s"`
}

// Ranking is the cached value of one query.
type Ranking struct {
	Entries  []Entry `json:"e"`
	Reranked bool    `json:"r"`
}

// Scope names everything besides the query that a ranking depends on. A
// change to any field moves lookups to a fresh key space, so rankings of a
// replaced index or model are never served.
type Scope struct {
	ModelVersion string
	Index        string
	Settings     string
}

type RankingCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(store Store, ttl time.Duration, m *metrics.Metrics) *RankingCache {
	return &RankingCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  logger.WithComponent("ranking-cache"),
	}
}

func (c *RankingCache) Get(ctx context.Context, scope Scope, terms []string, k int) (Ranking, bool) {
	key := buildKey(scope, terms, k)
	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.miss()
		return Ranking{}, false
	}
	if !found {
		c.miss()
		return Ranking{}, false
	}
	var r Ranking
	if err := json.Unmarshal(data, &r); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return Ranking{}, false
	}
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return r, true
}

func (c *RankingCache) Set(ctx context.Context, scope Scope, terms []string, k int, r Ranking) {
	key := buildKey(scope, terms, k)
	data, err := json.Marshal(r)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached ranking or computes it once for all
// concurrent callers asking for the same key. cached reports a store hit.
func (c *RankingCache) GetOrCompute(
	ctx context.Context,
	scope Scope,
	terms []string,
	k int,
	compute func() (Ranking, error),
) (r Ranking, cached bool, err error) {
	if r, ok := c.Get(ctx, scope, terms, k); ok {
		return r, true, nil
	}
	val, err, _ := c.group.Do(buildKey(scope, terms, k), func() (any, error) {
		r, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, scope, terms, k, r)
		return r, nil
	})
	if err != nil {
		return Ranking{}, false, err
	}
	return val.(Ranking), false, nil
}

// Invalidate drops rankings of one model version, or all of them when
// version is empty.
func (c *RankingCache) Invalidate(ctx context.Context, version string) error {
	prefix := keyPrefix
	if version != "" {
		prefix += version + ":"
	}
	deleted, err := c.store.DeletePrefix(ctx, prefix)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "version", version, "keys_deleted", deleted)
	return nil
}

func (c *RankingCache) miss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// buildKey hashes the analysed terms, so queries differing only in case,
// punctuation or stop words share an entry. Term order is kept because
// repeated terms weigh the score. The model version leads the key so
// Invalidate can drop one version by prefix.
func buildKey(scope Scope, terms []string, k int) string {
	raw := fmt.Sprintf("%s|%s|%s|k=%d", scope.Index, scope.Settings, strings.Join(terms, " "), k)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, scope.ModelVersion, hash[:16])
}
