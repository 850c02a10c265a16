package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/stream"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/redis"
)

const (
	memoryCacheSize = 10000
	shutdownTimeout = 10 * time.Second
)

type serveOptions struct {
	src        indexSource
	model      string
	flushCache bool
	checkDB    bool
}

func newServeCmd(a *app) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Rank queries streamed over Kafka",
		Long: `Load the index and model, then consume query events
{"query_id","query","k"} from kafka.topics.queries and publish rankings to
kafka.topics.rankings keyed by query id.

Rankings are cached per model version in Redis when redis.enabled is set,
otherwise in process memory. Prometheus metrics and health probes are
served on metrics.port.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), a, opts)
		},
	}

	opts.src.register(cmd)
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model path (default ranker.modelPath)")
	cmd.Flags().BoolVar(&opts.flushCache, "flush-cache", false, "Drop every cached ranking before serving")
	cmd.Flags().BoolVar(&opts.checkDB, "check-postgres", false, "Report Postgres reachability in the readiness probe")
	return cmd
}

func runServe(ctx context.Context, a *app, opts serveOptions) error {
	cfg := a.cfg
	a.metrics = metrics.New(prometheus.DefaultRegisterer)

	rankCache, closeCache := a.openCache(ctx)
	defer closeCache()
	if opts.flushCache {
		if err := rankCache.Invalidate(ctx, ""); err != nil {
			slog.Warn("cache flush failed", "error", err)
		}
	}

	p, texts, err := a.openPipeline(ctx, opts.src, pipeline.Options{Cache: rankCache})
	if err != nil {
		return err
	}
	if opts.model == "" {
		opts.model = cfg.Ranker.ModelPath
	}
	if _, err := p.LoadModel(opts.model); err != nil {
		return err
	}
	a.installReranker(p, texts)

	checker := health.NewChecker()
	checker.Register("index", func(context.Context) health.ComponentHealth {
		idx, err := p.Holder().Current()
		if err != nil {
			return health.Down(err.Error())
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", idx.TotalDocs())}
	})
	checker.Register("model", func(context.Context) health.ComponentHealth {
		m, err := p.Slot().Model()
		if err != nil {
			return health.Down(err.Error())
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: m.Version()}
	})
	if opts.checkDB {
		_, db, err := a.openStore(ctx)
		if err != nil {
			slog.Warn("postgres unavailable", "error", err)
		} else {
			defer db.Close()
			checker.Register("postgres", health.Ping(db.Ping, false))
		}
	}

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, checker)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Rankings)
	defer producer.Close()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Queries, stream.HandleMessage(p, producer, a.metrics))
	defer consumer.Close()

	slog.Info("ranking service started",
		"queries_topic", cfg.Kafka.Topics.Queries,
		"rankings_topic", cfg.Kafka.Topics.Rankings,
		"brokers", cfg.Kafka.Brokers,
	)
	err = consumer.Start(ctx)
	slog.Info("ranking service stopped")
	return err
}

// openCache prefers Redis when enabled and reachable and otherwise falls
// back to an in-process LRU.
func (a *app) openCache(ctx context.Context) (*cache.RankingCache, func()) {
	cfg := a.cfg.Redis
	if cfg.Enabled {
		client, err := pkgredis.NewClient(ctx, cfg)
		if err == nil {
			slog.Info("ranking cache enabled", "backend", "redis", "addr", cfg.Addr, "ttl", cfg.CacheTTL)
			return cache.New(client, cfg.CacheTTL, a.metrics), func() { client.Close() }
		}
		slog.Warn("redis unavailable, caching rankings in memory", "error", err)
	}
	slog.Info("ranking cache enabled", "backend", "memory", "size", memoryCacheSize, "ttl", cfg.CacheTTL)
	return cache.New(cache.NewMemoryStore(memoryCacheSize, cfg.CacheTTL), cfg.CacheTTL, a.metrics), func() {}
}
