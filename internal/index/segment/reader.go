package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

// Reader gives access to a verified segment held in memory. Postings are
// decoded on demand by Lookup or all at once by Index.
type Reader struct {
	path   string
	data   []byte
	header header
	docs   map[string]index.Lengths
	dict   []DictEntry
}

func Open(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", path, err)
	}
	r.path = path
	return r, nil
}

// Decode verifies and parses an encoded segment.
func Decode(data []byte) (*Reader, error) {
	if len(data) < HeaderSize+FooterSize {
		return nil, corrupt("file too short: %d bytes", len(data))
	}
	h := unmarshalHeader(data[:HeaderSize])
	if h.Magic != MagicBytes {
		return nil, corrupt("bad magic bytes %x", h.Magic)
	}
	if h.Version != FormatVersion {
		return nil, corrupt("unsupported format version %d", h.Version)
	}
	body := data[:len(data)-FooterSize]
	want := binary.LittleEndian.Uint32(data[len(body) : len(body)+4])
	if got := crc32.ChecksumIEEE(body); got != want {
		return nil, corrupt("checksum mismatch: got %08x, want %08x", got, want)
	}
	for _, s := range [][2]int64{{h.DocsOffset, h.DocsSize}, {h.PostOffset, h.PostSize}, {h.DictOffset, h.DictSize}} {
		if s[0] < int64(HeaderSize) || s[1] < 0 || s[0]+s[1] > int64(len(body)) {
			return nil, corrupt("section [%d,+%d) out of bounds", s[0], s[1])
		}
	}

	var docs []docEntry
	if err := json.Unmarshal(data[h.DocsOffset:h.DocsOffset+h.DocsSize], &docs); err != nil {
		return nil, corrupt("parsing document table: %v", err)
	}
	if len(docs) != int(h.DocCount) {
		return nil, corrupt("document table has %d entries, header says %d", len(docs), h.DocCount)
	}
	docTable := make(map[string]index.Lengths, len(docs))
	for _, d := range docs {
		docTable[d.ID] = d.Lengths
	}

	var dict []DictEntry
	if err := json.Unmarshal(data[h.DictOffset:h.DictOffset+h.DictSize], &dict); err != nil {
		return nil, corrupt("parsing dictionary: %v", err)
	}
	if len(dict) != int(h.TermCount) {
		return nil, corrupt("dictionary has %d entries, header says %d", len(dict), h.TermCount)
	}
	for _, e := range dict {
		if e.PostOffset < 0 || e.PostOffset+int64(e.PostLen) > h.PostSize {
			return nil, corrupt("postings for %s/%q out of bounds", e.Field, e.Term)
		}
	}

	return &Reader{data: data, header: h, docs: docTable, dict: dict}, nil
}

// Lookup decodes the postings of term in a stored field.
func (r *Reader) Lookup(term string, field index.Field) (index.PostingList, error) {
	i := sort.Search(len(r.dict), func(i int) bool {
		e := r.dict[i]
		if e.Field != field {
			return e.Field > field
		}
		return e.Term >= term
	})
	if i >= len(r.dict) || r.dict[i].Field != field || r.dict[i].Term != term {
		return nil, nil
	}
	return r.postings(r.dict[i])
}

func (r *Reader) postings(e DictEntry) (index.PostingList, error) {
	start := r.header.PostOffset + e.PostOffset
	var pl index.PostingList
	if err := json.Unmarshal(r.data[start:start+int64(e.PostLen)], &pl); err != nil {
		return nil, corrupt("parsing postings for %s/%q: %v", e.Field, e.Term, err)
	}
	return pl, nil
}

// Index decodes every postings list and assembles a FieldIndex.
func (r *Reader) Index() (*index.FieldIndex, error) {
	var postings [index.NumFields]map[string]index.PostingList
	for i := range postings {
		postings[i] = make(map[string]index.PostingList)
	}
	for _, e := range r.dict {
		if int(e.Field) >= len(postings) {
			return nil, corrupt("dictionary entry for unknown field %s", e.Field)
		}
		pl, err := r.postings(e)
		if err != nil {
			return nil, err
		}
		postings[e.Field][e.Term] = pl
	}
	docs := make(map[string]index.Lengths, len(r.docs))
	for id, l := range r.docs {
		docs[id] = l
	}
	idx, err := index.Assemble(docs, postings)
	if err != nil {
		return nil, fmt.Errorf("assembling index from segment: %w", err)
	}
	return idx, nil
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) DocCount() int {
	return int(r.header.DocCount)
}

// Read loads the index stored at path.
func Read(path string) (*index.FieldIndex, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	return r.Index()
}

func corrupt(format string, args ...any) error {
	return apperrors.Newf(apperrors.ErrInvalidInput, "segment.Decode", format, args...)
}
