package ltr

import (
	"math"
	"math/rand/v2"
	"sort"
)

// SplitQueries partitions query ids into disjoint train and validation sets.
// Ids are de-duplicated and sorted before a seeded shuffle, so the split only
// depends on the set of ids, the ratio and the seed. With ratio > 0 and at
// least two ids, both sides are non-empty.
func SplitQueries(queryIDs []string, valRatio float64, seed uint64) (train, val []string) {
	ids := unique(queryIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	nVal := int(math.Round(float64(len(ids)) * valRatio))
	if valRatio > 0 && len(ids) > 1 {
		nVal = max(nVal, 1)
	}
	nVal = min(nVal, len(ids)-1)
	nVal = max(nVal, 0)

	rng := newRand(seed)
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	val = append([]string(nil), ids[:nVal]...)
	train = append([]string(nil), ids[nVal:]...)
	sort.Strings(val)
	sort.Strings(train)
	return train, val
}

// SplitDataset partitions groups by the query ids in valIDs.
func SplitDataset(d Dataset, valIDs []string) (train, val Dataset) {
	inVal := make(map[string]struct{}, len(valIDs))
	for _, id := range valIDs {
		inVal[id] = struct{}{}
	}
	train.FeatureNames = d.FeatureNames
	val.FeatureNames = d.FeatureNames
	for _, g := range d.Groups {
		if _, ok := inVal[g.QueryID]; ok {
			val.Groups = append(val.Groups, g)
		} else {
			train.Groups = append(train.Groups, g)
		}
	}
	return train, val
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
}
