// Package segment persists a FieldIndex to a single file and loads it back.
//
// Layout: a 64-byte header, the document table, the postings of every
// (field, term) pair, the dictionary and a 32-byte footer. The footer's
// CRC32 covers every byte before it. Sections are written in sorted order
// and the file carries no timestamps, so identical indexes produce
// identical files.
package segment

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/index"
)

const (
	MagicBytes    uint32 = 0x4C545246
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32
)

type header struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	DocsOffset int64
	DocsSize   int64
	PostOffset int64
	PostSize   int64
	DictOffset int64
	DictSize   int64
}

func (h header) marshal() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.DocsOffset))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.DocsSize))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[56:64], uint64(h.DictSize))
	return b
}

func unmarshalHeader(b []byte) header {
	return header{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		TermCount:  binary.LittleEndian.Uint32(b[8:12]),
		DocCount:   binary.LittleEndian.Uint32(b[12:16]),
		DocsOffset: int64(binary.LittleEndian.Uint64(b[16:24])),
		DocsSize:   int64(binary.LittleEndian.Uint64(b[24:32])),
		PostOffset: int64(binary.LittleEndian.Uint64(b[32:40])),
		PostSize:   int64(binary.LittleEndian.Uint64(b[40:48])),
		DictOffset: int64(binary.LittleEndian.Uint64(b[48:56])),
		DictSize:   int64(binary.LittleEndian.Uint64(b[56:64])),
	}
}

type docEntry struct {
	ID      string        `json:"id"`
	Lengths index.Lengths `json:"len"`
}

// DictEntry locates the postings of one (field, term) pair relative to the
// start of the postings section.
type DictEntry struct {
	Field      index.Field `json:"f"`
	Term       string      `json:"t"`
	PostOffset int64       `json:"o"`
	PostLen    int         `json:"l"`
	DocFreq    int         `json:"d"`
}

// Encode serialises idx into the segment format.
func Encode(idx *index.FieldIndex) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(make([]byte, HeaderSize))

	docs := make([]docEntry, 0, idx.TotalDocs())
	for _, id := range idx.DocIDs() {
		lengths, _ := idx.FieldLengths(id)
		docs = append(docs, docEntry{ID: id, Lengths: lengths})
	}
	docsData, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("marshaling document table: %w", err)
	}
	h := header{
		Magic:      MagicBytes,
		Version:    FormatVersion,
		DocCount:   uint32(len(docs)),
		DocsOffset: int64(buf.Len()),
		DocsSize:   int64(len(docsData)),
	}
	buf.Write(docsData)

	h.PostOffset = int64(buf.Len())
	var dict []DictEntry
	for _, field := range index.Fields {
		for _, term := range idx.Terms(field) {
			postings := idx.Lookup(term, field)
			data, err := json.Marshal(postings)
			if err != nil {
				return nil, fmt.Errorf("marshaling postings for %s/%q: %w", field, term, err)
			}
			dict = append(dict, DictEntry{
				Field:      field,
				Term:       term,
				PostOffset: int64(buf.Len()) - h.PostOffset,
				PostLen:    len(data),
				DocFreq:    len(postings),
			})
			buf.Write(data)
		}
	}
	h.PostSize = int64(buf.Len()) - h.PostOffset
	h.TermCount = uint32(len(dict))

	dictData, err := json.Marshal(dict)
	if err != nil {
		return nil, fmt.Errorf("marshaling dictionary: %w", err)
	}
	h.DictOffset = int64(buf.Len())
	h.DictSize = int64(len(dictData))
	buf.Write(dictData)

	out := buf.Bytes()
	copy(out[:HeaderSize], h.marshal())

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(out))
	binary.LittleEndian.PutUint32(footer[4:8], h.DocCount)
	binary.LittleEndian.PutUint64(footer[8:16], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(h.PostSize))
	return append(out, footer...), nil
}

// Write atomically replaces path with the encoded index: it writes a .tmp
// sibling, syncs it and renames it into place.
func Write(path string, idx *index.FieldIndex) error {
	data, err := Encode(idx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating segment directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp segment file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing segment: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing segment file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing segment file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming segment file: %w", err)
	}
	return nil
}
