package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/evaluation"
	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

const testConfig = `
index:
  workers: 2
  batchSize: 5
retrieval:
  topN: 50
  outputK: 5
  workers: 2
ranker:
  numIterations: 20
  numLeaves: 4
  minDataInLeaf: 1
  minSumHessianInLeaf: 0
  subsample: 1
  colsampleByTree: 1
  earlyStoppingRounds: 0
  validationRatio: 0.25
  evalAt: [1, 3]
logging:
  level: error
`

type workspace struct {
	dir     string
	config  string
	corpus  string
	queries string
	qrels   string
}

func (w workspace) path(name string) string { return filepath.Join(w.dir, name) }

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	w := workspace{dir: t.TempDir()}
	w.config = w.path("config.yaml")
	w.corpus = w.path("corpus.jsonl")
	w.queries = w.path("queries.csv")
	w.qrels = w.path("qrels.csv")

	var corpus, queries, qrels strings.Builder
	queries.WriteString("QueryId,Query\n")
	qrels.WriteString("QueryId,EntityId,Relevance\n")
	cities := []string{"paris", "tokyo", "berlin", "rome", "madrid", "vienna", "oslo", "lisbon"}
	for i, c := range cities {
		base := (i + 1) * 10
		fmt.Fprintf(&corpus, `{"id":"%d","title":"%s","text":"%s is the capital city of the country","keywords":["capital","city"]}`+"\n", base, c, c)
		fmt.Fprintf(&corpus, `{"id":"%d","title":"%s museum","text":"a museum located in %s","keywords":"museum"}`+"\n", base+1, c, c)
		fmt.Fprintf(&corpus, `{"id":"%d","title":"river","text":"the river flows far from %s"}`+"\n", base+2, c)
		fmt.Fprintf(&queries, "%d,capital %s\n", i+1, c)
		fmt.Fprintf(&qrels, "%d,%d,2\n%d,%d,1\n%d,%d,0\n", i+1, base, i+1, base+1, i+1, base+2)
	}
	corpus.WriteString("{not json}\n")

	require.NoError(t, os.WriteFile(w.config, []byte(testConfig), 0o644))
	require.NoError(t, os.WriteFile(w.corpus, []byte(corpus.String()), 0o644))
	require.NoError(t, os.WriteFile(w.queries, []byte(queries.String()), 0o644))
	require.NoError(t, os.WriteFile(w.qrels, []byte(qrels.String()), 0o644))
	return w
}

func (w workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", w.config}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIndexTrainRankEvaluate(t *testing.T) {
	w := newWorkspace(t)
	seg, model, sub := w.path("index/index.seg"), w.path("model.json"), w.path("out/submission.csv")

	out, err := w.run(t, "index", "--corpus", w.corpus, "--out", seg)
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 24 documents (1 malformed lines")
	assert.FileExists(t, seg)

	report := w.path("train.json")
	out, err = w.run(t, "train", "--index", seg, "--queries", w.queries, "--qrels", w.qrels,
		"--model", model, "--report", report)
	require.NoError(t, err)
	assert.Contains(t, out, "validation")
	assert.FileExists(t, model)

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	var summary trainSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, 6, summary.TrainQueries)
	assert.Equal(t, 2, summary.ValQueries)
	assert.NotEmpty(t, summary.ModelVersion)
	require.NotNil(t, summary.Validation)

	out, err = w.run(t, "rank", "--index", seg, "--queries", w.queries, "--model", model,
		"--out", sub, "--qrels", w.qrels)
	require.NoError(t, err)
	assert.Contains(t, out, "ranked 8 queries")
	assert.Contains(t, out, "evaluation  queries=8")

	data, err = os.ReadFile(sub)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "QueryId,EntityId", lines[0])
	assert.LessOrEqual(t, len(lines)-1, 8*5)
	assert.True(t, strings.HasPrefix(lines[1], "001,00000"), lines[1])

	out, err = w.run(t, "evaluate", "--run", sub, "--qrels", w.qrels, "--json")
	require.NoError(t, err)
	var eval evaluation.Report
	require.NoError(t, json.Unmarshal([]byte(out), &eval))
	assert.Equal(t, 8, eval.Queries)
	assert.Greater(t, eval.NDCG, 0.0)
}

func TestRankBaselineFromCorpus(t *testing.T) {
	w := newWorkspace(t)
	sub := w.path("baseline.csv")
	out, err := w.run(t, "rank", "--corpus", w.corpus, "--queries", w.queries, "--baseline",
		"--out", sub, "--no-header", "--query-pad", "0", "--doc-pad", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "ranked 8 queries")

	data, err := os.ReadFile(sub)
	require.NoError(t, err)
	first := strings.SplitN(string(data), "\n", 2)[0]
	assert.Equal(t, "1,10", first, "the paris main entity matches both query terms")
}

func TestTrainRequiresJudgements(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.run(t, "train", "--corpus", w.corpus, "--queries", w.queries)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, 2, apperrors.ExitCode(err))
}

func TestRankWithoutIndex(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.run(t, "rank", "--index", w.path("missing.seg"), "--queries", w.queries, "--baseline")
	assert.Error(t, err)
}

func TestBadConfig(t *testing.T) {
	w := newWorkspace(t)
	require.NoError(t, os.WriteFile(w.config, []byte("retrieval:\n  topN: 0\n"), 0o644))
	_, err := w.run(t, "index", "--corpus", w.corpus)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
