package evaluation

import (
	"fmt"
	"sort"
	"strings"
)

// Run maps a query id to its ranked doc ids.
type Run map[string][]string

// Report averages metrics over the queries that have at least one relevant
// judgement. Such queries missing from the run score zero.
type Report struct {
	Queries int             `json:"queries"`
	MAP     float64         `json:"map"`
	NDCG    float64         `json:"ndcg"`
	NDCGAt  map[int]float64 `json:"ndcg_at"`
	Recall  map[int]float64 `json:"recall_at"`
	P10     float64         `json:"p_10"`
}

func Evaluate(run Run, qrels Qrels, cutoffs []int) Report {
	report := Report{
		NDCGAt: make(map[int]float64, len(cutoffs)),
		Recall: make(map[int]float64, len(cutoffs)),
	}
	for _, qid := range qrels.QueryIDs() {
		judged := qrels[qid]
		if qrels.Relevant(qid) == 0 {
			continue
		}
		ranked := run[qid]
		report.Queries++

		ap, _ := AveragePrecision(ranked, judged)
		report.MAP += ap
		ndcg, _ := NDCG(ranked, judged, 0)
		report.NDCG += ndcg
		for _, k := range cutoffs {
			v, _ := NDCG(ranked, judged, k)
			report.NDCGAt[k] += v
			r, _ := RecallAt(ranked, judged, k)
			report.Recall[k] += r
		}
		report.P10 += PrecisionAt(ranked, judged, 10)
	}
	if report.Queries == 0 {
		return report
	}
	n := float64(report.Queries)
	report.MAP /= n
	report.NDCG /= n
	report.P10 /= n
	for k := range report.NDCGAt {
		report.NDCGAt[k] /= n
		report.Recall[k] /= n
	}
	return report
}

func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "queries=%d map=%.4f ndcg=%.4f P@10=%.4f", r.Queries, r.MAP, r.NDCG, r.P10)
	ks := make([]int, 0, len(r.NDCGAt))
	for k := range r.NDCGAt {
		ks = append(ks, k)
	}
	sort.Ints(ks)
	for _, k := range ks {
		fmt.Fprintf(&b, " ndcg@%d=%.4f recall@%d=%.4f", k, r.NDCGAt[k], k, r.Recall[k])
	}
	return b.String()
}
