package corpus

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

const (
	maxLineBytes    = 16 << 20
	maxReportErrors = 20
)

// ReadReport counts what happened to each input line.
type ReadReport struct {
	Lines     int
	Records   int
	Blank     int
	Malformed int
	Errors    []error
}

func (r *ReadReport) malformed(line int, err error) {
	r.Malformed++
	if len(r.Errors) < maxReportErrors {
		r.Errors = append(r.Errors, fmt.Errorf("line %d: %w", line, err))
	}
}

// ReadJSONL streams records to fn. Blank lines are ignored; lines that do
// not parse or lack an id are counted as malformed and skipped. An error
// from fn stops the read.
func ReadJSONL(ctx context.Context, r io.Reader, fn func(Record) error) (ReadReport, error) {
	var report ReadReport
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		report.Lines++
		if report.Lines%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return report, err
			}
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			report.Blank++
			continue
		}
		rec, err := decodeLine(line)
		if err != nil {
			report.malformed(report.Lines, err)
			continue
		}
		report.Records++
		if err := fn(rec); err != nil {
			return report, err
		}
	}
	if err := sc.Err(); err != nil {
		return report, fmt.Errorf("reading corpus: %w", err)
	}
	return report, nil
}

// ReadFile loads every valid record of a JSONL file.
func ReadFile(ctx context.Context, path string, logger *slog.Logger) ([]Record, ReadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ReadReport{}, fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()

	var records []Record
	report, err := ReadJSONL(ctx, f, func(rec Record) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, report, err
	}
	if logger != nil {
		logger.Info("corpus read",
			"path", path,
			"lines", report.Lines,
			"records", report.Records,
			"malformed", report.Malformed,
		)
		for _, e := range report.Errors {
			logger.Debug("skipped corpus line", "error", e)
		}
	}
	return records, report, nil
}
