package index

import (
	"fmt"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

// FieldIndex is an immutable field-aware inverted index.
type FieldIndex struct {
	postings [NumFields]map[string]PostingList
	docs     map[string]Lengths
	docIDs   []string

	docFreq   map[string]int
	collFreq  [NumFields]map[string]int
	totalLen  [NumFields]int64
	termCount int
}

// Assemble validates raw postings against the document table and derives
// the corpus statistics. Every posting must reference a known document,
// carry that document's field length and appear in doc id order.
func Assemble(docs map[string]Lengths, postings [NumFields]map[string]PostingList) (*FieldIndex, error) {
	idx := &FieldIndex{
		docs:    docs,
		docIDs:  make([]string, 0, len(docs)),
		docFreq: make(map[string]int),
	}
	for id, lengths := range docs {
		idx.docIDs = append(idx.docIDs, id)
		for f := range NumFields {
			idx.totalLen[f] += int64(lengths[f])
		}
	}
	sort.Strings(idx.docIDs)

	seen := make(map[string]map[string]struct{})
	terms := make(map[string]struct{})
	for f := range NumFields {
		field := Field(f)
		if postings[f] == nil {
			postings[f] = make(map[string]PostingList)
		}
		idx.collFreq[f] = make(map[string]int, len(postings[f]))
		for term, pl := range postings[f] {
			if len(pl) == 0 {
				delete(postings[f], term)
				continue
			}
			if !pl.sorted() {
				return nil, apperrors.Newf(apperrors.ErrInternal, "index.Assemble", "postings for %s/%q not sorted by doc id", field, term)
			}
			docsWithTerm := seen[term]
			if docsWithTerm == nil {
				docsWithTerm = make(map[string]struct{}, len(pl))
				seen[term] = docsWithTerm
			}
			for _, p := range pl {
				lengths, ok := docs[p.DocID]
				if !ok {
					return nil, apperrors.Newf(apperrors.ErrInternal, "index.Assemble", "posting for %s/%q references unknown doc %q", field, term, p.DocID)
				}
				if p.FieldLength != lengths[f] {
					return nil, apperrors.Newf(apperrors.ErrInternal, "index.Assemble", "posting for %s/%q doc %q has length %d, table says %d", field, term, p.DocID, p.FieldLength, lengths[f])
				}
				if p.Frequency <= 0 {
					return nil, apperrors.Newf(apperrors.ErrInternal, "index.Assemble", "posting for %s/%q doc %q has frequency %d", field, term, p.DocID, p.Frequency)
				}
				docsWithTerm[p.DocID] = struct{}{}
			}
			idx.collFreq[f][term] = pl.collectionFreq()
			terms[term] = struct{}{}
		}
	}
	for term, ids := range seen {
		if len(ids) > 0 {
			idx.docFreq[term] = len(ids)
		}
	}
	idx.postings = postings
	idx.termCount = len(terms)
	return idx, nil
}

// Lookup returns the postings of term in field, sorted by doc id. For
// FieldAll the per-field lists are merged: frequencies are summed and the
// length is the document's total length. The result must not be modified.
func (idx *FieldIndex) Lookup(term string, field Field) PostingList {
	if field != FieldAll {
		if !field.valid() {
			return nil
		}
		return idx.postings[field][term]
	}
	merged := make(map[string]int)
	for f := range NumFields {
		for _, p := range idx.postings[f][term] {
			merged[p.DocID] += p.Frequency
		}
	}
	if len(merged) == 0 {
		return nil
	}
	pl := make(PostingList, 0, len(merged))
	for id, tf := range merged {
		pl = append(pl, Posting{DocID: id, Frequency: tf, FieldLength: idx.docs[id].Total()})
	}
	sort.Slice(pl, func(i, j int) bool { return pl[i].DocID < pl[j].DocID })
	return pl
}

func (idx *FieldIndex) TotalDocs() int {
	return len(idx.docs)
}

// DocFreq counts the documents containing term in any field.
func (idx *FieldIndex) DocFreq(term string) int {
	return idx.docFreq[term]
}

// FieldDocFreq counts the documents containing term in field.
func (idx *FieldIndex) FieldDocFreq(term string, field Field) int {
	if field == FieldAll {
		return idx.DocFreq(term)
	}
	if !field.valid() {
		return 0
	}
	return len(idx.postings[field][term])
}

func (idx *FieldIndex) TermFreq(term, docID string, field Field) int {
	total := 0
	for _, f := range field.Expand() {
		if p, ok := idx.postings[f][term].Find(docID); ok {
			total += p.Frequency
		}
	}
	return total
}

// FieldLength is 0 for unknown documents.
func (idx *FieldIndex) FieldLength(docID string, field Field) int {
	return idx.docs[docID].Get(field)
}

func (idx *FieldIndex) FieldLengths(docID string) (Lengths, bool) {
	lengths, ok := idx.docs[docID]
	return lengths, ok
}

func (idx *FieldIndex) HasDoc(docID string) bool {
	_, ok := idx.docs[docID]
	return ok
}

// AvgFieldLength averages over every indexed document, including documents
// where the field is empty. It is 0 for an empty index.
func (idx *FieldIndex) AvgFieldLength(field Field) float64 {
	if len(idx.docs) == 0 {
		return 0
	}
	return float64(idx.TotalTokens(field)) / float64(len(idx.docs))
}

func (idx *FieldIndex) TotalTokens(field Field) int64 {
	var total int64
	for _, f := range field.Expand() {
		total += idx.totalLen[f]
	}
	return total
}

func (idx *FieldIndex) CollectionFreq(term string, field Field) int {
	total := 0
	for _, f := range field.Expand() {
		total += idx.collFreq[f][term]
	}
	return total
}

// DocIDs returns the indexed ids in ascending order. The slice is shared.
func (idx *FieldIndex) DocIDs() []string {
	return idx.docIDs
}

// Terms returns the terms of a stored field in ascending order.
func (idx *FieldIndex) Terms(field Field) []string {
	if !field.valid() {
		return nil
	}
	terms := make([]string, 0, len(idx.postings[field]))
	for term := range idx.postings[field] {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// NumTerms counts distinct terms across all fields.
func (idx *FieldIndex) NumTerms() int {
	return idx.termCount
}

func (idx *FieldIndex) String() string {
	return fmt.Sprintf("FieldIndex{docs=%d terms=%d}", len(idx.docs), idx.termCount)
}
