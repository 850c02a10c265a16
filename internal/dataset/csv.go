// Package dataset reads query and relevance-judgement CSV files and writes
// ranked submissions.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/evaluation"
	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

const maxReportErrors = 20

type Query struct {
	ID   string
	Text string
}

// Report counts rows read and rows skipped as malformed.
type Report struct {
	Rows      int
	Malformed int
	Errors    []error
}

func (r *Report) skip(line int, format string, args ...any) {
	r.Malformed++
	if len(r.Errors) < maxReportErrors {
		r.Errors = append(r.Errors, fmt.Errorf("line %d: %w: %s",
			line, apperrors.ErrInvalidInput, fmt.Sprintf(format, args...)))
	}
}

// eachRow walks CSV records, skipping a header whose first cell equals
// header (case-insensitively).
func eachRow(r io.Reader, header string, fn func(line int, rec []string)) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				fn(line, nil)
				continue
			}
			return fmt.Errorf("reading csv: %w", err)
		}
		if line == 1 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), header) {
			continue
		}
		fn(line, rec)
	}
}

// ReadQueries parses "QueryId,Query" rows. Query text may be empty; a row
// without an id is malformed.
func ReadQueries(r io.Reader) ([]Query, Report, error) {
	var queries []Query
	var report Report
	err := eachRow(r, "QueryId", func(line int, rec []string) {
		if len(rec) < 2 {
			report.skip(line, "want 2 columns, got %d", len(rec))
			return
		}
		id := strings.TrimSpace(rec[0])
		if id == "" {
			report.skip(line, "missing query id")
			return
		}
		queries = append(queries, Query{ID: id, Text: strings.TrimSpace(rec[1])})
		report.Rows++
	})
	return queries, report, err
}

// ReadQrels parses "QueryId,EntityId,Relevance" rows.
func ReadQrels(r io.Reader) ([]evaluation.Qrel, Report, error) {
	var qrels []evaluation.Qrel
	var report Report
	err := eachRow(r, "QueryId", func(line int, rec []string) {
		if len(rec) < 3 {
			report.skip(line, "want 3 columns, got %d", len(rec))
			return
		}
		q, d := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
		if q == "" || d == "" {
			report.skip(line, "missing query or entity id")
			return
		}
		label, err := strconv.Atoi(strings.TrimSpace(rec[2]))
		if err != nil || label < 0 {
			report.skip(line, "relevance %q is not a non-negative integer", rec[2])
			return
		}
		qrels = append(qrels, evaluation.Qrel{QueryID: q, DocID: d, Label: label})
		report.Rows++
	})
	return qrels, report, err
}

func ReadQueriesFile(path string) ([]Query, Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Report{}, fmt.Errorf("opening queries: %w", err)
	}
	defer f.Close()
	return ReadQueries(f)
}

func ReadQrelsFile(path string) ([]evaluation.Qrel, Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Report{}, fmt.Errorf("opening qrels: %w", err)
	}
	defer f.Close()
	return ReadQrels(f)
}
