package corpus

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/rerank"
)

const analyzeChunk = 512

func Analyze(rec Record, a analysis.Analyzer) index.Document {
	return index.NewDocument(rec.ID,
		a.Analyze(rec.Title),
		a.Analyze(rec.Keywords.String()),
		a.Analyze(rec.Text),
	)
}

// AnalyzeAll analyses records in parallel chunks. The output keeps input
// order.
func AnalyzeAll(ctx context.Context, records []Record, a analysis.Analyzer, workers int) ([]index.Document, error) {
	docs := make([]index.Document, len(records))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for start := 0; start < len(records); start += analyzeChunk {
		end := min(start+analyzeChunk, len(records))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				docs[i] = Analyze(records[i], a)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// Store keeps raw record text by id for second-stage rerankers. The first
// record for an id wins, matching the index build.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewStore(records []Record) *Store {
	s := &Store{records: make(map[string]Record, len(records))}
	for _, r := range records {
		s.Put(r)
	}
	return s
}

func (s *Store) Put(r Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; ok {
		return false
	}
	s.records[r.ID] = r
	return true
}

func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	return r, ok
}

// Text renders the record in the cross-encoder input layout.
func (s *Store) Text(id string) (string, bool) {
	r, ok := s.Get(id)
	if !ok {
		return "", false
	}
	return rerank.DocText(r.Title, r.Text, r.Keywords.String()), true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
