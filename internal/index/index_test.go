package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

func scenarioDocs() []Document {
	return []Document{
		NewDocument("d1", []string{"alpha", "beta"}, nil, []string{"gamma"}),
		NewDocument("d2", []string{"beta"}, nil, []string{"alpha", "gamma", "gamma"}),
		NewDocument("d3", []string{"delta"}, nil, []string{"epsilon"}),
	}
}

func mustBuild(t *testing.T, docs []Document, opts BuildOptions) *FieldIndex {
	t.Helper()
	idx, _, err := Build(context.Background(), docs, opts)
	require.NoError(t, err)
	return idx
}

func TestBuildPostingsAreExact(t *testing.T) {
	idx := mustBuild(t, scenarioDocs(), BuildOptions{})

	assert.Equal(t, PostingList{{DocID: "d1", Frequency: 1, FieldLength: 2}}, idx.Lookup("alpha", FieldTitle))
	assert.Equal(t, PostingList{{DocID: "d2", Frequency: 1, FieldLength: 3}}, idx.Lookup("alpha", FieldBody))
	assert.Equal(t, PostingList{
		{DocID: "d1", Frequency: 1, FieldLength: 1},
		{DocID: "d2", Frequency: 2, FieldLength: 3},
	}, idx.Lookup("gamma", FieldBody))
	assert.Equal(t, PostingList{
		{DocID: "d1", Frequency: 1, FieldLength: 2},
		{DocID: "d2", Frequency: 1, FieldLength: 1},
	}, idx.Lookup("beta", FieldTitle))
	assert.Empty(t, idx.Lookup("gamma", FieldTitle))
	assert.Empty(t, idx.Lookup("zeta", FieldBody))
	assert.Empty(t, idx.Lookup("alpha", Field(7)))
}

func TestBuildStatistics(t *testing.T) {
	idx := mustBuild(t, scenarioDocs(), BuildOptions{})

	assert.Equal(t, 3, idx.TotalDocs())
	assert.Equal(t, 2, idx.DocFreq("alpha"), "alpha appears in d1 title and d2 body")
	assert.Equal(t, 1, idx.FieldDocFreq("alpha", FieldTitle))
	assert.Equal(t, 2, idx.FieldDocFreq("alpha", FieldAll))
	assert.Equal(t, 0, idx.DocFreq("zeta"))

	assert.InDelta(t, 4.0/3.0, idx.AvgFieldLength(FieldTitle), 1e-12)
	assert.InDelta(t, 5.0/3.0, idx.AvgFieldLength(FieldBody), 1e-12)
	assert.Equal(t, 0.0, idx.AvgFieldLength(FieldKeywords))
	assert.InDelta(t, 3.0, idx.AvgFieldLength(FieldAll), 1e-12)

	assert.Equal(t, 2, idx.TermFreq("gamma", "d2", FieldBody))
	assert.Equal(t, 2, idx.TermFreq("gamma", "d2", FieldAll))
	assert.Equal(t, 0, idx.TermFreq("gamma", "d3", FieldBody))
	assert.Equal(t, 3, idx.CollectionFreq("gamma", FieldAll))
	assert.Equal(t, int64(9), idx.TotalTokens(FieldAll))

	lengths, ok := idx.FieldLengths("d2")
	require.True(t, ok)
	assert.Equal(t, Lengths{1, 0, 3}, lengths)
	assert.Equal(t, 4, idx.FieldLength("d2", FieldAll))
	assert.Equal(t, 0, idx.FieldLength("missing", FieldBody))

	assert.Equal(t, []string{"d1", "d2", "d3"}, idx.DocIDs())
	assert.Equal(t, []string{"alpha", "beta", "delta"}, idx.Terms(FieldTitle))
	assert.Equal(t, 5, idx.NumTerms())
}

func TestLookupAllMergesFields(t *testing.T) {
	idx := mustBuild(t, scenarioDocs(), BuildOptions{})

	assert.Equal(t, PostingList{
		{DocID: "d1", Frequency: 1, FieldLength: 3},
		{DocID: "d2", Frequency: 1, FieldLength: 4},
	}, idx.Lookup("alpha", FieldAll))
}

func TestEveryPostingReferencesKnownDoc(t *testing.T) {
	idx := mustBuild(t, generatedDocs(200), BuildOptions{Workers: 4, BatchSize: 17})

	for _, f := range Fields {
		for _, term := range idx.Terms(f) {
			pl := idx.Lookup(term, f)
			require.True(t, pl.sorted(), "%s/%s", f, term)
			for _, p := range pl {
				lengths, ok := idx.FieldLengths(p.DocID)
				require.True(t, ok)
				assert.Equal(t, lengths[f], p.FieldLength)
			}
		}
	}
}

func TestBuildIsDeterministicAcrossPartitioning(t *testing.T) {
	docs := generatedDocs(500)

	serial := mustBuild(t, docs, BuildOptions{Workers: 1, BatchSize: 1000})
	parallel := mustBuild(t, docs, BuildOptions{Workers: 8, BatchSize: 13})
	again := mustBuild(t, docs, BuildOptions{Workers: 3, BatchSize: 64})

	assert.Equal(t, serial, parallel)
	assert.Equal(t, serial, again)
}

func TestBuildSkipsMalformedDocuments(t *testing.T) {
	docs := []Document{
		NewDocument("d1", []string{"a"}, nil, nil),
		NewDocument("", []string{"b"}, nil, nil),
		NewDocument("d1", []string{"c"}, nil, nil),
		{ID: "d2", Fields: map[Field][]string{Field(9): {"x"}}},
		NewDocument("d3", nil, nil, []string{"d"}),
	}

	idx, report, err := Build(context.Background(), docs, BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Indexed)
	assert.Equal(t, 3, report.Skipped)
	require.Len(t, report.Errors, 3)
	for _, e := range report.Errors {
		assert.True(t, errors.Is(e, apperrors.ErrMalformedDocument), e.Error())
	}
	assert.Equal(t, []string{"d1", "d3"}, idx.DocIDs())
	assert.Equal(t, PostingList{{DocID: "d1", Frequency: 1, FieldLength: 1}}, idx.Lookup("a", FieldTitle))
	assert.Empty(t, idx.Lookup("c", FieldTitle), "first occurrence of a duplicate id wins")
}

func TestBuildEmptyCorpus(t *testing.T) {
	idx, report, err := Build(context.Background(), nil, BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, idx.TotalDocs())
	assert.Equal(t, 0, report.Indexed)
	assert.Equal(t, 0.0, idx.AvgFieldLength(FieldTitle))
}

func TestBuildHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Build(ctx, generatedDocs(10), BuildOptions{BatchSize: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAssembleRejectsInconsistentPostings(t *testing.T) {
	docs := map[string]Lengths{"d1": {1, 0, 0}}

	var unknown [NumFields]map[string]PostingList
	unknown[FieldTitle] = map[string]PostingList{"a": {{DocID: "d9", Frequency: 1, FieldLength: 1}}}
	_, err := Assemble(docs, unknown)
	assert.ErrorIs(t, err, apperrors.ErrInternal)

	var badLength [NumFields]map[string]PostingList
	badLength[FieldTitle] = map[string]PostingList{"a": {{DocID: "d1", Frequency: 1, FieldLength: 5}}}
	_, err = Assemble(docs, badLength)
	assert.ErrorIs(t, err, apperrors.ErrInternal)

	two := map[string]Lengths{"d1": {1, 0, 0}, "d2": {1, 0, 0}}
	var unsorted [NumFields]map[string]PostingList
	unsorted[FieldTitle] = map[string]PostingList{"a": {
		{DocID: "d2", Frequency: 1, FieldLength: 1},
		{DocID: "d1", Frequency: 1, FieldLength: 1},
	}}
	_, err = Assemble(two, unsorted)
	assert.ErrorIs(t, err, apperrors.ErrInternal)
}

func TestHolder(t *testing.T) {
	var h Holder
	_, err := h.Current()
	assert.ErrorIs(t, err, apperrors.ErrEmptyIndex)
	assert.Nil(t, h.Load())

	empty := mustBuild(t, nil, BuildOptions{})
	h.Publish(empty)
	_, err = h.Current()
	assert.ErrorIs(t, err, apperrors.ErrEmptyIndex)

	idx := mustBuild(t, scenarioDocs(), BuildOptions{})
	h.Publish(idx)
	got, err := h.Current()
	require.NoError(t, err)
	assert.Same(t, idx, got)
}

func TestHolderConcurrentReaders(t *testing.T) {
	var h Holder
	first := mustBuild(t, scenarioDocs(), BuildOptions{})
	second := mustBuild(t, generatedDocs(20), BuildOptions{})
	h.Publish(first)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				idx, err := h.Current()
				if assert.NoError(t, err) {
					n := idx.TotalDocs()
					assert.True(t, n == 3 || n == 20)
				}
			}
		}()
	}
	h.Publish(second)
	wg.Wait()
}

func TestParseField(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Field
	}{
		{"title", FieldTitle}, {"Keywords", FieldKeywords}, {"body", FieldBody}, {"text", FieldBody}, {"all", FieldAll}, {"", FieldAll},
	} {
		got, err := ParseField(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
	_, err := ParseField("abstract")
	assert.Error(t, err)
	assert.Equal(t, "keywords", FieldKeywords.String())
}

func generatedDocs(n int) []Document {
	vocab := []string{"paris", "france", "city", "river", "seine", "capital", "europe", "art", "museum", "tower"}
	docs := make([]Document, 0, n)
	for i := 0; i < n; i++ {
		title := []string{vocab[i%len(vocab)], vocab[(i*3)%len(vocab)]}
		keywords := []string{vocab[(i*7)%len(vocab)]}
		body := make([]string, 0, i%9+1)
		for j := 0; j <= i%9; j++ {
			body = append(body, vocab[(i+j*j)%len(vocab)])
		}
		docs = append(docs, NewDocument(fmt.Sprintf("doc%04d", (i*7919)%n), title, keywords, body))
	}
	return docs
}

func BenchmarkBuild(b *testing.B) {
	docs := generatedDocs(5000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := Build(context.Background(), docs, BuildOptions{Workers: 4, BatchSize: 500}); err != nil {
			b.Fatal(err)
		}
	}
}
