package index

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

type BuildOptions struct {
	Workers   int
	BatchSize int
	Logger    *slog.Logger
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 1000
	}
	if o.Logger == nil {
		o.Logger = slog.Default().With("component", "index-builder")
	}
	return o
}

// BuildReport summarises a build. Errors holds one ErrMalformedDocument per
// skipped input document.
type BuildReport struct {
	Indexed  int
	Skipped  int
	Errors   []error
	Batches  int
	Duration time.Duration
}

type partial struct {
	postings [NumFields]map[string]PostingList
	lengths  map[string]Lengths
}

// Build indexes docs and returns the finished, immutable index. Malformed
// documents are skipped and reported; the first occurrence of a duplicated
// id wins. Batches are indexed in parallel and merged once at the end, so
// the result does not depend on Workers or BatchSize.
func Build(ctx context.Context, docs []Document, opts BuildOptions) (*FieldIndex, BuildReport, error) {
	opts = opts.withDefaults()
	start := time.Now()
	var report BuildReport

	accepted := make([]Document, 0, len(docs))
	seen := make(map[string]int, len(docs))
	for i, doc := range docs {
		if err := validate(doc); err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Errorf("document %d: %w", i, err))
			continue
		}
		if first, dup := seen[doc.ID]; dup {
			report.Skipped++
			report.Errors = append(report.Errors, apperrors.Newf(apperrors.ErrMalformedDocument, "index.Build",
				"document %d: duplicate id %q (first seen at %d)", i, doc.ID, first))
			continue
		}
		seen[doc.ID] = i
		accepted = append(accepted, doc)
	}

	batches := make([][]Document, 0, len(accepted)/opts.BatchSize+1)
	for lo := 0; lo < len(accepted); lo += opts.BatchSize {
		batches = append(batches, accepted[lo:min(lo+opts.BatchSize, len(accepted))])
	}
	report.Batches = len(batches)

	partials := make([]partial, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, batch := range batches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			partials[i] = indexBatch(batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, report, fmt.Errorf("building index: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, report, fmt.Errorf("building index: %w", err)
	}

	idx, err := Assemble(merge(partials, len(accepted)))
	if err != nil {
		return nil, report, fmt.Errorf("building index: %w", err)
	}
	report.Indexed = len(accepted)
	report.Duration = time.Since(start)

	opts.Logger.Info("index built",
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"terms", idx.NumTerms(),
		"batches", report.Batches,
		"workers", opts.Workers,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return idx, report, nil
}

func validate(doc Document) error {
	if doc.ID == "" {
		return apperrors.New(apperrors.ErrMalformedDocument, "index.Build", "empty document id")
	}
	for f := range doc.Fields {
		if !f.valid() {
			return apperrors.Newf(apperrors.ErrMalformedDocument, "index.Build", "document %q has unknown field %s", doc.ID, f)
		}
	}
	return nil
}

func indexBatch(batch []Document) partial {
	p := partial{lengths: make(map[string]Lengths, len(batch))}
	for f := range NumFields {
		p.postings[f] = make(map[string]PostingList)
	}
	for _, doc := range batch {
		var lengths Lengths
		for f := range NumFields {
			terms := doc.Fields[Field(f)]
			lengths[f] = len(terms)
			if len(terms) == 0 {
				continue
			}
			counts := make(map[string]int, len(terms))
			for _, term := range terms {
				if term != "" {
					counts[term]++
				}
			}
			for term, tf := range counts {
				p.postings[f][term] = append(p.postings[f][term], Posting{
					DocID:       doc.ID,
					Frequency:   tf,
					FieldLength: len(terms),
				})
			}
		}
		p.lengths[doc.ID] = lengths
	}
	return p
}

func merge(partials []partial, docCount int) (map[string]Lengths, [NumFields]map[string]PostingList) {
	docs := make(map[string]Lengths, docCount)
	var postings [NumFields]map[string]PostingList
	for f := range NumFields {
		postings[f] = make(map[string]PostingList)
	}
	for _, p := range partials {
		for id, lengths := range p.lengths {
			docs[id] = lengths
		}
		for f := range NumFields {
			for term, pl := range p.postings[f] {
				postings[f][term] = append(postings[f][term], pl...)
			}
		}
	}
	for f := range NumFields {
		for _, pl := range postings[f] {
			sort.Slice(pl, func(i, j int) bool { return pl[i].DocID < pl[j].DocID })
		}
	}
	return docs, postings
}
