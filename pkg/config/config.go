// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. Every tunable of the ranking pipeline
// (scoring parameters, retrieval depth, LambdaMART settings) lives here so no
// component reads global constants.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Index     IndexConfig     `yaml:"index"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ranker    RankerConfig    `yaml:"ranker"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// IndexConfig controls where index segments live and how the build is
// parallelised.
type IndexConfig struct {
	DataDir   string `yaml:"dataDir"`
	Workers   int    `yaml:"workers"`
	BatchSize int    `yaml:"batchSize"`
}

// SegmentPath is the default location of the persisted field index.
func (c IndexConfig) SegmentPath() string {
	return c.DataDir + "/index.seg"
}

// FieldParams holds the BM25F weight and length normalisation of one field.
type FieldParams struct {
	Weight float64 `yaml:"weight"`
	B      float64 `yaml:"b"`
}

// ScoringConfig holds the parameters shared by the scorer family.
type ScoringConfig struct {
	K1       float64     `yaml:"k1"`
	B        float64     `yaml:"b"`
	PL2C     float64     `yaml:"pl2C"`
	Title    FieldParams `yaml:"title"`
	Keywords FieldParams `yaml:"keywords"`
	Body     FieldParams `yaml:"body"`
}

// RetrievalConfig controls candidate generation and feature extraction.
type RetrievalConfig struct {
	Primary  string   `yaml:"primary"`
	Features []string `yaml:"features"`
	TopN     int      `yaml:"topN"`
	OutputK  int      `yaml:"outputK"`
	Workers  int      `yaml:"workers"`
}

// RankerConfig holds the LambdaMART hyperparameters and the train/validation
// split settings.
type RankerConfig struct {
	NumIterations       int     `yaml:"numIterations"`
	LearningRate        float64 `yaml:"learningRate"`
	NumLeaves           int     `yaml:"numLeaves"`
	MaxDepth            int     `yaml:"maxDepth"`
	MinDataInLeaf       int     `yaml:"minDataInLeaf"`
	MinSumHessianInLeaf float64 `yaml:"minSumHessianInLeaf"`
	MaxBin              int     `yaml:"maxBin"`
	Subsample           float64 `yaml:"subsample"`
	ColsampleByTree     float64 `yaml:"colsampleByTree"`
	RegAlpha            float64 `yaml:"regAlpha"`
	RegLambda           float64 `yaml:"regLambda"`
	Sigma               float64 `yaml:"sigma"`
	TruncationLevel     int     `yaml:"truncationLevel"`
	EvalAt              []int   `yaml:"evalAt"`
	EarlyStoppingRounds int     `yaml:"earlyStoppingRounds"`
	ValidationRatio     float64 `yaml:"validationRatio"`
	Seed                uint64  `yaml:"seed"`
	ModelPath           string  `yaml:"modelPath"`
}

// RerankConfig controls the optional cross-encoder stage.
type RerankConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Endpoint         string        `yaml:"endpoint"`
	Depth            int           `yaml:"depth"`
	Timeout          time.Duration `yaml:"timeout"`
	CacheSize        int           `yaml:"cacheSize"`
	MaxRetries       int           `yaml:"maxRetries"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerCooldown  time.Duration `yaml:"breakerCooldown"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	Queries  string `yaml:"queries"`
	Rankings string `yaml:"rankings"`
}

// RedisConfig holds Redis connection and ranking-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig toggles span logging around pipeline stages.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			DataDir:   "data",
			Workers:   4,
			BatchSize: 1000,
		},
		Scoring: ScoringConfig{
			K1:       1.2,
			B:        0.75,
			PL2C:     1.0,
			Title:    FieldParams{Weight: 3, B: 0.5},
			Keywords: FieldParams{Weight: 1, B: 0.5},
			Body:     FieldParams{Weight: 1, B: 0.5},
		},
		Retrieval: RetrievalConfig{
			Primary:  "bm25f",
			Features: []string{"tfidf", "bm25f", "pl2"},
			TopN:     1000,
			OutputK:  100,
			Workers:  8,
		},
		Ranker: RankerConfig{
			NumIterations:       1000,
			LearningRate:        0.1,
			NumLeaves:           31,
			MaxDepth:            0,
			MinDataInLeaf:       10,
			MinSumHessianInLeaf: 1.0,
			MaxBin:              511,
			Subsample:           0.8,
			ColsampleByTree:     0.8,
			RegAlpha:            0.1,
			RegLambda:           1.0,
			Sigma:               1.0,
			TruncationLevel:     30,
			EvalAt:              []int{1, 3, 5, 10},
			EarlyStoppingRounds: 50,
			ValidationRatio:     0.2,
			Seed:                42,
			ModelPath:           "data/model.json",
		},
		Rerank: RerankConfig{
			Enabled:          false,
			Endpoint:         "http://localhost:8090/score",
			Depth:            100,
			Timeout:          10 * time.Second,
			CacheSize:        10000,
			MaxRetries:       3,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "entityranking",
			User:            "entityranking",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "entityranking-group",
			Topics: KafkaTopics{
				Queries:  "ltr.queries",
				Rankings: "ltr.rankings",
			},
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate reports every out-of-range setting at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, apperrors.Newf(apperrors.ErrInvalidInput, "config.Validate", format, args...))
	}

	s := c.Scoring
	if s.K1 <= 0 {
		bad("scoring.k1 must be positive, got %v", s.K1)
	}
	if s.B < 0 || s.B > 1 {
		bad("scoring.b must be in [0,1], got %v", s.B)
	}
	if s.PL2C <= 0 {
		bad("scoring.pl2C must be positive, got %v", s.PL2C)
	}
	for name, fp := range map[string]FieldParams{"title": s.Title, "keywords": s.Keywords, "body": s.Body} {
		if fp.Weight < 0 {
			bad("scoring.%s.weight must be non-negative, got %v", name, fp.Weight)
		}
		if fp.B < 0 || fp.B > 1 {
			bad("scoring.%s.b must be in [0,1], got %v", name, fp.B)
		}
	}
	if s.Title.Weight+s.Keywords.Weight+s.Body.Weight == 0 {
		bad("scoring: at least one field weight must be positive")
	}

	r := c.Retrieval
	if r.Primary == "" {
		bad("retrieval.primary must name a scorer")
	}
	if len(r.Features) == 0 {
		bad("retrieval.features must list at least one scorer")
	}
	if r.TopN <= 0 {
		bad("retrieval.topN must be positive, got %d", r.TopN)
	}
	if r.OutputK <= 0 {
		bad("retrieval.outputK must be positive, got %d", r.OutputK)
	}
	if r.Workers <= 0 {
		bad("retrieval.workers must be positive, got %d", r.Workers)
	}

	if c.Index.Workers <= 0 {
		bad("index.workers must be positive, got %d", c.Index.Workers)
	}
	if c.Index.BatchSize <= 0 {
		bad("index.batchSize must be positive, got %d", c.Index.BatchSize)
	}

	m := c.Ranker
	if m.NumIterations <= 0 {
		bad("ranker.numIterations must be positive, got %d", m.NumIterations)
	}
	if m.LearningRate <= 0 {
		bad("ranker.learningRate must be positive, got %v", m.LearningRate)
	}
	if m.NumLeaves < 2 {
		bad("ranker.numLeaves must be at least 2, got %d", m.NumLeaves)
	}
	if m.MaxDepth < 0 {
		bad("ranker.maxDepth must be non-negative, got %d", m.MaxDepth)
	}
	if m.MinDataInLeaf < 1 {
		bad("ranker.minDataInLeaf must be at least 1, got %d", m.MinDataInLeaf)
	}
	if m.MinSumHessianInLeaf < 0 {
		bad("ranker.minSumHessianInLeaf must be non-negative, got %v", m.MinSumHessianInLeaf)
	}
	if m.MaxBin < 2 {
		bad("ranker.maxBin must be at least 2, got %d", m.MaxBin)
	}
	if m.Subsample <= 0 || m.Subsample > 1 {
		bad("ranker.subsample must be in (0,1], got %v", m.Subsample)
	}
	if m.ColsampleByTree <= 0 || m.ColsampleByTree > 1 {
		bad("ranker.colsampleByTree must be in (0,1], got %v", m.ColsampleByTree)
	}
	if m.RegAlpha < 0 || m.RegLambda < 0 {
		bad("ranker regularisation must be non-negative, got alpha=%v lambda=%v", m.RegAlpha, m.RegLambda)
	}
	if m.Sigma <= 0 {
		bad("ranker.sigma must be positive, got %v", m.Sigma)
	}
	if m.TruncationLevel < 1 {
		bad("ranker.truncationLevel must be at least 1, got %d", m.TruncationLevel)
	}
	if len(m.EvalAt) == 0 {
		bad("ranker.evalAt must list at least one cutoff")
	}
	for _, k := range m.EvalAt {
		if k <= 0 {
			bad("ranker.evalAt cutoffs must be positive, got %d", k)
		}
	}
	if m.EarlyStoppingRounds < 0 {
		bad("ranker.earlyStoppingRounds must be non-negative, got %d", m.EarlyStoppingRounds)
	}
	if m.ValidationRatio < 0 || m.ValidationRatio >= 1 {
		bad("ranker.validationRatio must be in [0,1), got %v", m.ValidationRatio)
	}

	if c.Rerank.Enabled {
		if c.Rerank.Endpoint == "" {
			bad("rerank.endpoint is required when rerank is enabled")
		}
		if c.Rerank.Depth <= 0 {
			bad("rerank.depth must be positive, got %d", c.Rerank.Depth)
		}
	}

	return errors.Join(errs...)
}

// applyEnvOverrides reads LTR_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LTR_INDEX_DATA_DIR"); v != "" {
		cfg.Index.DataDir = v
	}
	if v := os.Getenv("LTR_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.Workers = n
		}
	}
	if v := os.Getenv("LTR_SCORING_K1"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Scoring.K1 = f
		}
	}
	if v := os.Getenv("LTR_RETRIEVAL_PRIMARY"); v != "" {
		cfg.Retrieval.Primary = v
	}
	if v := os.Getenv("LTR_RETRIEVAL_FEATURES"); v != "" {
		cfg.Retrieval.Features = strings.Split(v, ",")
	}
	if v := os.Getenv("LTR_RETRIEVAL_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retrieval.TopN = n
		}
	}
	if v := os.Getenv("LTR_RETRIEVAL_OUTPUT_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retrieval.OutputK = n
		}
	}
	if v := os.Getenv("LTR_RANKER_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ranker.NumIterations = n
		}
	}
	if v := os.Getenv("LTR_RANKER_VALIDATION_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Ranker.ValidationRatio = f
		}
	}
	if v := os.Getenv("LTR_RANKER_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Ranker.Seed = n
		}
	}
	if v := os.Getenv("LTR_RANKER_MODEL_PATH"); v != "" {
		cfg.Ranker.ModelPath = v
	}
	if v := os.Getenv("LTR_RERANK_ENDPOINT"); v != "" {
		cfg.Rerank.Endpoint = v
	}
	if v := os.Getenv("LTR_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("LTR_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("LTR_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("LTR_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("LTR_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("LTR_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LTR_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LTR_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LTR_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LTR_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LTR_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
