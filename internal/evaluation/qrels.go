// Package evaluation holds relevance judgements and the ranking metrics
// computed against them: NDCG, MAP, recall and precision at a cutoff.
package evaluation

import (
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

// Qrel is one relevance judgement. Label 0 means judged non-relevant.
type Qrel struct {
	QueryID string `json:"query_id"`
	DocID   string `json:"doc_id"`
	Label   int    `json:"label"`
}

// Qrels indexes judgements by query id, then doc id.
type Qrels map[string]map[string]int

// FromRows indexes rows. A repeated (query, doc) pair keeps the last label;
// the number of overridden rows is returned.
func FromRows(rows []Qrel) (Qrels, int, error) {
	q := make(Qrels)
	overridden := 0
	for i, r := range rows {
		if r.QueryID == "" || r.DocID == "" {
			return nil, 0, apperrors.Newf(apperrors.ErrInvalidInput, "evaluation.FromRows", "row %d has an empty query or doc id", i)
		}
		if r.Label < 0 {
			return nil, 0, apperrors.Newf(apperrors.ErrInvalidInput, "evaluation.FromRows", "row %d has negative label %d", i, r.Label)
		}
		docs := q[r.QueryID]
		if docs == nil {
			docs = make(map[string]int)
			q[r.QueryID] = docs
		}
		if _, dup := docs[r.DocID]; dup {
			overridden++
		}
		docs[r.DocID] = r.Label
	}
	return q, overridden, nil
}

func (q Qrels) Label(queryID, docID string) (int, bool) {
	label, ok := q[queryID][docID]
	return label, ok
}

// Len counts judgements across all queries.
func (q Qrels) Len() int {
	n := 0
	for _, docs := range q {
		n += len(docs)
	}
	return n
}

// QueryIDs returns the judged query ids in ascending order.
func (q Qrels) QueryIDs() []string {
	ids := make([]string, 0, len(q))
	for id := range q {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Partition splits the judgements by query: queries listed in valIDs go to
// val, every other query goes to train. No judgement is lost or duplicated.
func (q Qrels) Partition(valIDs []string) (train, val Qrels) {
	inVal := make(map[string]struct{}, len(valIDs))
	for _, id := range valIDs {
		inVal[id] = struct{}{}
	}
	train, val = make(Qrels), make(Qrels)
	for qid, docs := range q {
		copied := make(map[string]int, len(docs))
		for d, l := range docs {
			copied[d] = l
		}
		if _, ok := inVal[qid]; ok {
			val[qid] = copied
		} else {
			train[qid] = copied
		}
	}
	return train, val
}

// Rows flattens the judgements sorted by query id then doc id.
func (q Qrels) Rows() []Qrel {
	rows := make([]Qrel, 0, q.Len())
	for _, qid := range q.QueryIDs() {
		docs := q[qid]
		ids := make([]string, 0, len(docs))
		for d := range docs {
			ids = append(ids, d)
		}
		sort.Strings(ids)
		for _, d := range ids {
			rows = append(rows, Qrel{QueryID: qid, DocID: d, Label: docs[d]})
		}
	}
	return rows
}

// Relevant counts judgements with a positive label for queryID.
func (q Qrels) Relevant(queryID string) int {
	n := 0
	for _, l := range q[queryID] {
		if l > 0 {
			n++
		}
	}
	return n
}
