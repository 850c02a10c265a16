// Package index holds the field-aware inverted index. For every stored field
// it maps a term to a postings list sorted by document id; a global table
// keeps each document's per-field token counts. An index is immutable once
// built and is shared across goroutines through a Holder.
package index

import "sort"

// Document is one analysed entity record.
type Document struct {
	ID     string
	Fields map[Field][]string
}

// NewDocument builds a Document from pre-analysed field terms.
func NewDocument(id string, title, keywords, body []string) Document {
	return Document{
		ID: id,
		Fields: map[Field][]string{
			FieldTitle:    title,
			FieldKeywords: keywords,
			FieldBody:     body,
		},
	}
}

// Posting records one document's occurrences of a term within one field.
type Posting struct {
	DocID       string `json:"d"`
	Frequency   int    `json:"f"`
	FieldLength int    `json:"l"`
}

type PostingList []Posting

// Find returns the posting for docID using binary search.
func (pl PostingList) Find(docID string) (Posting, bool) {
	i := sort.Search(len(pl), func(i int) bool { return pl[i].DocID >= docID })
	if i < len(pl) && pl[i].DocID == docID {
		return pl[i], true
	}
	return Posting{}, false
}

func (pl PostingList) sorted() bool {
	for i := 1; i < len(pl); i++ {
		if pl[i-1].DocID >= pl[i].DocID {
			return false
		}
	}
	return true
}

func (pl PostingList) collectionFreq() int {
	total := 0
	for _, p := range pl {
		total += p.Frequency
	}
	return total
}
