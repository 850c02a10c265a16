package store

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/postgres"
)

// openOrSkip connects to the database named by LTR_TEST_POSTGRES_* and skips
// the test when it is unreachable.
func openOrSkip(t *testing.T) *Store {
	t.Helper()
	port, _ := strconv.Atoi(envOr("LTR_TEST_POSTGRES_PORT", "5432"))
	cfg := config.PostgresConfig{
		Host:            envOr("LTR_TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOr("LTR_TEST_POSTGRES_DB", "ltr_test"),
		User:            envOr("LTR_TEST_POSTGRES_USER", "ltr"),
		Password:        envOr("LTR_TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg)
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := New(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestQrelsRoundTrip(t *testing.T) {
	s := openOrSkip(t)
	ctx := context.Background()
	_, err := s.db.DB.ExecContext(ctx, `TRUNCATE qrels`)
	require.NoError(t, err)

	require.NoError(t, s.SaveQrels(ctx, []evaluation.Qrel{
		{QueryID: "1", DocID: "b", Label: 1},
		{QueryID: "1", DocID: "a", Label: 2},
	}))
	require.NoError(t, s.SaveQrels(ctx, []evaluation.Qrel{{QueryID: "1", DocID: "b", Label: 0}}))

	got, err := s.LoadQrels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []evaluation.Qrel{
		{QueryID: "1", DocID: "a", Label: 2},
		{QueryID: "1", DocID: "b", Label: 0},
	}, got)
}

func TestSaveRun(t *testing.T) {
	s := openOrSkip(t)
	ctx := context.Background()
	report := &evaluation.Report{Queries: 1, MAP: 0.5, NDCGAt: map[int]float64{10: 0.7}}
	results := []Result{
		{QueryID: "1", Rank: 1, DocID: "a", Score: 2.5},
		{QueryID: "1", Rank: 2, DocID: "b", Score: 1.5},
	}
	id, err := s.SaveRun(ctx, "abc123", report, results)
	require.NoError(t, err)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, id, latest.ID)
	assert.Equal(t, "abc123", latest.ModelVersion)
	require.NotNil(t, latest.Report)
	assert.Equal(t, 0.5, latest.Report.MAP)

	got, err := s.RunResults(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, results, got)
}
