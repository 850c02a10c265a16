package pipeline

import (
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/store"
)

// Emit flattens rankings into submission rows, at most OutputK per query and
// in rank order.
func (p *Pipeline) Emit(rankings []Ranking) []dataset.Row {
	k := p.cfg.Retrieval.OutputK
	rows := make([]dataset.Row, 0, len(rankings)*k)
	ids := make([]string, 0, len(rankings))
	for _, r := range rankings {
		for i, c := range r.Results {
			if i == k {
				break
			}
			rows = append(rows, dataset.Row{QueryID: r.QueryID, DocID: c.DocID})
		}
		ids = append(ids, r.QueryID)
	}
	p.advance(StageEmitted, ids...)
	return rows
}

// RunOf converts rankings to the doc-id lists the evaluator consumes.
func RunOf(rankings []Ranking) evaluation.Run {
	run := make(evaluation.Run, len(rankings))
	for _, r := range rankings {
		run[r.QueryID] = r.DocIDs()
	}
	return run
}

// Evaluate scores rankings against judgements at the configured cutoffs.
func (p *Pipeline) Evaluate(rankings []Ranking, judgements []evaluation.Qrel) (evaluation.Report, error) {
	qrels, _, err := evaluation.FromRows(judgements)
	if err != nil {
		return evaluation.Report{}, err
	}
	return evaluation.Evaluate(RunOf(rankings), qrels, p.cfg.Ranker.EvalAt), nil
}

// StoreResults numbers results from rank 1 for persistence.
func StoreResults(rankings []Ranking) []store.Result {
	var out []store.Result
	for _, r := range rankings {
		for i, c := range r.Results {
			out = append(out, store.Result{QueryID: r.QueryID, Rank: i + 1, DocID: c.DocID, Score: c.Score})
		}
	}
	return out
}
