package segment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

func buildIndex(t testing.TB, n int, workers int) *index.FieldIndex {
	t.Helper()
	words := []string{"einstein", "physics", "relativity", "nobel", "germany", "zurich", "quantum"}
	docs := make([]index.Document, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, index.NewDocument(
			fmt.Sprintf("%07d", i),
			[]string{words[i%len(words)]},
			[]string{words[(i+2)%len(words)], words[(i+5)%len(words)]},
			[]string{words[(i*3)%len(words)], words[(i*5)%len(words)], words[i%len(words)]},
		))
	}
	idx, _, err := index.Build(context.Background(), docs, index.BuildOptions{Workers: workers, BatchSize: 7})
	require.NoError(t, err)
	return idx
}

func TestWriteReadRoundTrip(t *testing.T) {
	idx := buildIndex(t, 60, 4)
	path := filepath.Join(t.TempDir(), "index.seg")

	require.NoError(t, Write(path, idx))
	loaded, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, idx, loaded)
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")
}

func TestRebuildIsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.seg")
	b := filepath.Join(dir, "b.seg")

	require.NoError(t, Write(a, buildIndex(t, 80, 1)))
	require.NoError(t, Write(b, buildIndex(t, 80, 6)))

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestReaderLookup(t *testing.T) {
	idx := buildIndex(t, 30, 2)
	data, err := Encode(idx)
	require.NoError(t, err)

	r, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 30, r.DocCount())

	for _, f := range index.Fields {
		for _, term := range idx.Terms(f) {
			got, err := r.Lookup(term, f)
			require.NoError(t, err)
			assert.Equal(t, idx.Lookup(term, f), got, "%s/%s", f, term)
		}
	}
	missing, err := r.Lookup("absent", index.FieldBody)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDecodeRejectsCorruption(t *testing.T) {
	data, err := Encode(buildIndex(t, 10, 1))
	require.NoError(t, err)

	flipped := append([]byte(nil), data...)
	flipped[HeaderSize+3] ^= 0xFF
	_, err = Decode(flipped)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "checksum")

	badMagic := append([]byte(nil), data...)
	badMagic[0] = 0
	_, err = Decode(badMagic)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = Decode(data[:10])
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestEmptyIndexRoundTrip(t *testing.T) {
	idx, _, err := index.Build(context.Background(), nil, index.BuildOptions{})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "nested", "empty.seg")

	require.NoError(t, Write(path, idx))
	loaded, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.TotalDocs())
}

func BenchmarkRead(b *testing.B) {
	idx := buildIndex(b, 5000, 4)
	path := filepath.Join(b.TempDir(), "bench.seg")
	if err := Write(path, idx); err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Read(path); err != nil {
			b.Fatal(err)
		}
	}
}
