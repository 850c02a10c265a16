package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

const sample = `{"id":"0000001","title":"Paris","text":"Paris is the capital of France.","keywords":["city","france"]}

{"root":{"id":"0000002","title":"Lyon","text":"A city in France."}}
{"id":"0000003","keywords":"river"}
not json at all
{"title":"no id here"}
{"root":{"title":"wrapped without id"}}
{"id":"0000004","keywords":7}
`

func readAll(t *testing.T, input string) ([]Record, ReadReport) {
	t.Helper()
	var recs []Record
	report, err := ReadJSONL(context.Background(), strings.NewReader(input), func(r Record) error {
		recs = append(recs, r)
		return nil
	})
	require.NoError(t, err)
	return recs, report
}

func TestReadJSONL(t *testing.T) {
	recs, report := readAll(t, sample)

	assert.Equal(t, 8, report.Lines)
	assert.Equal(t, 1, report.Blank)
	assert.Equal(t, 3, report.Records)
	assert.Equal(t, 4, report.Malformed)
	for _, err := range report.Errors {
		assert.ErrorIs(t, err, apperrors.ErrMalformedDocument)
	}

	require.Len(t, recs, 3)
	assert.Equal(t, Keywords{"city", "france"}, recs[0].Keywords)
	assert.Equal(t, "0000002", recs[1].ID, "root wrapper is unwrapped")
	assert.Equal(t, "Lyon", recs[1].Title)
	assert.Equal(t, Keywords{"river"}, recs[2].Keywords)
	assert.Empty(t, recs[2].Title)
}

func TestReadJSONLStopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	report, err := ReadJSONL(context.Background(), strings.NewReader(sample), func(Record) error { return stop })
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, report.Records)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	recs, report, err := ReadFile(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Equal(t, 4, report.Malformed)

	_, _, err = ReadFile(context.Background(), filepath.Join(t.TempDir(), "missing.jsonl"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	err := Record{ID: "  "}.Validate()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "id")
	assert.ErrorIs(t, err, apperrors.ErrMalformedDocument)

	assert.Error(t, Record{ID: strings.Repeat("x", maxIDLength+1)}.Validate())
	assert.NoError(t, Record{ID: "1"}.Validate())
}

func TestAnalyzeAll(t *testing.T) {
	recs, _ := readAll(t, sample)
	docs, err := AnalyzeAll(context.Background(), recs, analysis.NewStandard(), 4)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "0000001", docs[0].ID)
	assert.Equal(t, []string{"pari"}, docs[0].Fields[index.FieldTitle])
	assert.Equal(t, []string{"citi", "franc"}, docs[0].Fields[index.FieldKeywords])
	assert.Equal(t, []string{"pari", "capit", "franc"}, docs[0].Fields[index.FieldBody])
	assert.Empty(t, docs[2].Fields[index.FieldBody])
}

func TestStore(t *testing.T) {
	s := NewStore([]Record{
		{ID: "1", Title: "Paris", Text: "capital", Keywords: Keywords{"city", "france"}},
		{ID: "1", Title: "duplicate"},
	})
	assert.Equal(t, 1, s.Len())

	text, ok := s.Text("1")
	require.True(t, ok)
	assert.Equal(t, "Title: Paris Body: capital Keywords: city france", text)

	_, ok = s.Text("2")
	assert.False(t, ok)
}
