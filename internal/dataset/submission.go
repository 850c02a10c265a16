package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/evaluation"
)

// Row is one (query, entity) line of a submission, in rank order.
type Row struct {
	QueryID string
	DocID   string
}

// SubmissionOptions control presentation only. Numeric ids shorter than the
// pad width are left-padded with zeros; other ids are written as-is.
type SubmissionOptions struct {
	QueryPad int
	DocPad   int
	NoHeader bool
}

// DefaultSubmissionOptions pads query ids to 3 digits and entity ids to 7.
func DefaultSubmissionOptions() SubmissionOptions {
	return SubmissionOptions{QueryPad: 3, DocPad: 7}
}

func WriteSubmission(w io.Writer, rows []Row, opts SubmissionOptions) error {
	cw := csv.NewWriter(w)
	if !opts.NoHeader {
		if err := cw.Write([]string{"QueryId", "EntityId"}); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for _, r := range rows {
		if err := cw.Write([]string{pad(r.QueryID, opts.QueryPad), pad(r.DocID, opts.DocPad)}); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSubmissionFile writes through a temp file and renames it into place.
func WriteSubmissionFile(path string, rows []Row, opts SubmissionOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating submission: %w", err)
	}
	if err := WriteSubmission(f, rows, opts); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing submission: %w", err)
	}
	return os.Rename(tmp, path)
}

// ReadSubmission parses "QueryId,EntityId" rows. Zero padding is removed
// from numeric ids so rows compare equal to unpadded judgements.
func ReadSubmission(r io.Reader) ([]Row, Report, error) {
	var rows []Row
	var report Report
	err := eachRow(r, "QueryId", func(line int, rec []string) {
		if len(rec) < 2 {
			report.skip(line, "want 2 columns, got %d", len(rec))
			return
		}
		q, d := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
		if q == "" || d == "" {
			report.skip(line, "missing query or entity id")
			return
		}
		rows = append(rows, Row{QueryID: Unpad(q), DocID: Unpad(d)})
		report.Rows++
	})
	return rows, report, err
}

func ReadSubmissionFile(path string) ([]Row, Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Report{}, fmt.Errorf("opening submission: %w", err)
	}
	defer f.Close()
	return ReadSubmission(f)
}

// RunOf groups rows by query, preserving row order as rank order.
func RunOf(rows []Row) evaluation.Run {
	run := make(evaluation.Run)
	for _, r := range rows {
		run[r.QueryID] = append(run[r.QueryID], r.DocID)
	}
	return run
}

// Unpad strips leading zeros from a numeric id, keeping at least one digit.
func Unpad(id string) string {
	if !numeric(id) {
		return id
	}
	trimmed := strings.TrimLeft(id, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

func pad(id string, width int) string {
	if width <= 0 || len(id) >= width || !numeric(id) {
		return id
	}
	return strings.Repeat("0", width-len(id)) + id
}

func numeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
