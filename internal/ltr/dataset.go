// Package ltr trains and applies a LambdaMART ranking model: gradient
// boosted regression trees fitted to LambdaRank gradients weighted by the
// NDCG change of swapping two documents.
package ltr

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/features"
	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

// maxReportedMismatches caps the per-row errors kept in a DatasetReport;
// Excluded still counts every row.
const maxReportedMismatches = 20

// Group holds the labelled candidates of one query.
type Group struct {
	QueryID  string
	DocIDs   []string
	Features [][]float64
	Labels   []float64
}

func (g Group) Len() int { return len(g.Labels) }

type Dataset struct {
	FeatureNames []string
	Groups       []Group
}

func (d Dataset) Rows() int {
	n := 0
	for _, g := range d.Groups {
		n += g.Len()
	}
	return n
}

func (d Dataset) NumFeatures() int { return len(d.FeatureNames) }

func (d Dataset) QueryIDs() []string {
	ids := make([]string, len(d.Groups))
	for i, g := range d.Groups {
		ids[i] = g.QueryID
	}
	return ids
}

type DatasetReport struct {
	Rows       int
	Groups     int
	Excluded   int
	Mismatches []error
}

// NewDataset labels feature vectors from qrels and groups them by query in
// first-seen order. A vector without a judgement is excluded and reported as
// ErrLabelMismatch; it is never given a default label.
func NewDataset(featureNames []string, vectors []features.Vector, qrels evaluation.Qrels) (Dataset, DatasetReport, error) {
	ds := Dataset{FeatureNames: append([]string(nil), featureNames...)}
	var report DatasetReport
	groupIdx := make(map[string]int)

	for _, v := range vectors {
		if len(v.Features) != len(featureNames) {
			return Dataset{}, report, apperrors.Newf(apperrors.ErrInvalidInput, "ltr.NewDataset",
				"vector %s/%s has %d features, want %d", v.QueryID, v.DocID, len(v.Features), len(featureNames))
		}
		label, ok := qrels.Label(v.QueryID, v.DocID)
		if !ok {
			report.Excluded++
			if len(report.Mismatches) < maxReportedMismatches {
				report.Mismatches = append(report.Mismatches,
					fmt.Errorf("query %s doc %s: %w", v.QueryID, v.DocID, apperrors.ErrLabelMismatch))
			}
			continue
		}
		i, seen := groupIdx[v.QueryID]
		if !seen {
			i = len(ds.Groups)
			groupIdx[v.QueryID] = i
			ds.Groups = append(ds.Groups, Group{QueryID: v.QueryID})
		}
		g := &ds.Groups[i]
		g.DocIDs = append(g.DocIDs, v.DocID)
		g.Features = append(g.Features, append([]float64(nil), v.Features...))
		g.Labels = append(g.Labels, float64(label))
	}
	report.Rows = ds.Rows()
	report.Groups = len(ds.Groups)
	return ds, report, nil
}
